package layoutmap

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-layoutmap/internal/clone"
	"github.com/goliatone/go-layoutmap/pkg/activity"
)

// Identity stamps activity events with who changed what in which document.
type Identity struct {
	ActorID    string
	UserID     string
	TenantID   string
	DocumentID string
}

// Store owns the layout maps of one document. Every mutation goes through
// Apply, which works on a private copy and swaps it in only on success, so
// readers never observe a half-applied command. Observers are notified after
// the swap.
type Store struct {
	mu       sync.Mutex
	maps     []LayoutMap
	loaded   bool
	token    uint64
	identity Identity

	emitter *activity.Emitter
	logger  Logger
	errs    *ErrorLog
}

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	hooks    activity.Hooks
	activity activity.Config
	logger   Logger
	errs     *ErrorLog
	identity Identity
}

// WithActivityHooks registers hooks notified after every applied command,
// load and save.
func WithActivityHooks(hooks ...activity.ActivityHook) StoreOption {
	return func(cfg *storeConfig) {
		cfg.hooks = append(cfg.hooks, hooks...)
	}
}

// WithActivityConfig overrides the emitter configuration.
func WithActivityConfig(config activity.Config) StoreOption {
	return func(cfg *storeConfig) {
		cfg.activity = config
	}
}

// WithLogger sets the logger used for command and load events.
func WithLogger(logger Logger) StoreOption {
	return func(cfg *storeConfig) {
		cfg.logger = logger
	}
}

// WithErrorLog shares an ErrorLog with the store.
func WithErrorLog(log *ErrorLog) StoreOption {
	return func(cfg *storeConfig) {
		cfg.errs = log
	}
}

// WithIdentity sets the identity stamped on emitted events.
func WithIdentity(identity Identity) StoreOption {
	return func(cfg *storeConfig) {
		cfg.identity = identity
	}
}

// NewStore returns an unloaded store. Commands applied before Load are
// ignored.
func NewStore(opts ...StoreOption) *Store {
	cfg := storeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.errs == nil {
		cfg.errs = NewErrorLog(0)
	}
	return &Store{
		identity: cfg.identity,
		emitter:  activity.NewEmitter(cfg.hooks, cfg.activity),
		logger:   loggerOrNoop(cfg.logger),
		errs:     cfg.errs,
	}
}

// Subscribe registers an observer and returns a function removing it.
func (s *Store) Subscribe(hook activity.ActivityHook) func() {
	return s.emitter.Subscribe(hook)
}

// Errors returns the log of errors reported by the store.
func (s *Store) Errors() *ErrorLog {
	return s.errs
}

// Loaded reports whether Load has completed at least once.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Snapshot returns a deep copy of the current maps.
func (s *Store) Snapshot() []LayoutMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone.Value(s.maps)
}

// LayoutMap returns a copy of the map with id.
func (s *Store) LayoutMap(id string) (LayoutMap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := FindLayoutMap(s.maps, id)
	if !ok {
		return LayoutMap{}, false
	}
	return clone.Value(m), true
}

// LoadToken starts a load. Only the load holding the most recent token may
// commit through LoadIfCurrent.
func (s *Store) LoadToken() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token++
	return s.token
}

// LoadIfCurrent replaces the state with maps when token is still the most
// recent one issued. A stale token leaves the state alone and reports
// ErrSuperseded.
func (s *Store) LoadIfCurrent(ctx context.Context, token uint64, maps []LayoutMap) error {
	started := time.Now()
	s.mu.Lock()
	if token != s.token {
		s.mu.Unlock()
		s.logger.Log(LogEvent{Op: "load", Duration: time.Since(started), Err: ErrSuperseded, Skipped: true})
		return ErrSuperseded
	}
	s.maps = canonicalMaps(clone.Value(maps))
	s.loaded = true
	count := len(s.maps)
	s.mu.Unlock()

	s.logger.Log(LogEvent{Op: "load", Duration: time.Since(started)})
	s.notify(ctx, "load", activity.BuildLoadedEvent(s.eventInput(""), count))
	return nil
}

// Load replaces the state with maps unconditionally.
func (s *Store) Load(ctx context.Context, maps []LayoutMap) error {
	return s.LoadIfCurrent(ctx, s.LoadToken(), maps)
}

// Apply runs cmd against the current state. Before the first load it is a
// no-op. On error the state is unchanged and the error is recorded.
func (s *Store) Apply(ctx context.Context, cmd Command) error {
	started := time.Now()
	op := "apply"
	target := ""
	if cmd != nil {
		op = cmd.Name()
		target = cmd.Target().String()
	}

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		s.logger.Log(LogEvent{Op: op, Target: target, Duration: time.Since(started), Skipped: true})
		return nil
	}
	next, result, err := applyCommand(s.maps, cmd)
	if err != nil {
		s.mu.Unlock()
		s.errs.Record(op, err)
		s.logger.Log(LogEvent{Op: op, Target: target, Duration: time.Since(started), Err: err})
		return err
	}
	if result == skipped {
		s.mu.Unlock()
		s.logger.Log(LogEvent{Op: op, Target: target, Duration: time.Since(started), Skipped: true})
		return nil
	}
	s.maps = next
	s.mu.Unlock()

	s.logger.Log(LogEvent{Op: op, Target: target, Duration: time.Since(started)})

	path := cmd.Target()
	input := s.eventInput(cmd.Name())
	input.MapID = path.MapID
	input.ImageVariableID = path.ImageVariableID
	input.GroupIndex = path.GroupIndex
	input.ValueIndex = path.ValueIndex
	s.notify(ctx, op, activity.BuildCommandEvent(input))
	return nil
}

func (s *Store) saved(ctx context.Context, count int) {
	s.notify(ctx, "save", activity.BuildSavedEvent(s.eventInput(""), count))
}

// notify emits outside the lock so observers may read the store. Observer
// failures are logged and recorded but never fail the mutation.
func (s *Store) notify(ctx context.Context, op string, event activity.Event) {
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.errs.Record(op+".notify", err)
		s.logger.Log(LogEvent{Op: op + ".notify", Target: event.ObjectID, Err: err})
	}
}

func (s *Store) eventInput(command string) activity.MappingEventInput {
	return activity.MappingEventInput{
		ActorID:    s.identity.ActorID,
		UserID:     s.identity.UserID,
		TenantID:   s.identity.TenantID,
		DocumentID: s.identity.DocumentID,
		Command:    command,
		GroupIndex: -1,
		ValueIndex: -1,
	}
}

// AddLayoutMap adds m, generating an id when it has none, and returns the
// map as stored, with duplicate layout ids collapsed. On an unloaded store
// nothing is added and ErrNotLoaded is returned.
func (s *Store) AddLayoutMap(ctx context.Context, m LayoutMap) (LayoutMap, error) {
	if m.ID == "" {
		m.ID = NewLayoutMap().ID
	}
	if err := s.Apply(ctx, AddLayoutMap{Map: m}); err != nil {
		return LayoutMap{}, err
	}
	stored, ok := s.LayoutMap(m.ID)
	if !ok {
		if !s.Loaded() {
			return LayoutMap{}, ErrNotLoaded
		}
		return LayoutMap{}, &NotFoundError{Segment: "map", Path: mapPath(m.ID), Detail: "removed before it could be read back"}
	}
	return stored, nil
}

// RemoveLayoutMap deletes a map. An unknown map id is a *NotFoundError.
func (s *Store) RemoveLayoutMap(ctx context.Context, mapID string) error {
	return s.Apply(ctx, RemoveLayoutMap{MapID: mapID})
}

// SetLayoutIDs replaces the layouts of a map. An unknown map id is a silent
// no-op; a layout owned by another map is a *ConflictError.
func (s *Store) SetLayoutIDs(ctx context.Context, mapID string, layoutIDs []string) error {
	return s.Apply(ctx, SetLayoutIDs{MapID: mapID, LayoutIDs: layoutIDs})
}

// AddOrReplaceImageVariable stores variable in the map, replacing one with
// the same id in place. An unknown map is a *NotFoundError.
func (s *Store) AddOrReplaceImageVariable(ctx context.Context, mapID string, variable ImageVariable) error {
	return s.Apply(ctx, AddOrReplaceImageVariable{MapID: mapID, ImageVariable: variable})
}

// RemoveImageVariable drops an image variable. A missing variable is a no-op,
// a missing map a *NotFoundError.
func (s *Store) RemoveImageVariable(ctx context.Context, mapID, imageVariableID string) error {
	return s.Apply(ctx, RemoveImageVariable{MapID: mapID, ImageVariableID: imageVariableID})
}

// AddGroup appends a dependent group to an existing image variable.
func (s *Store) AddGroup(ctx context.Context, mapID, imageVariableID string, group DependentGroup) error {
	return s.Apply(ctx, AddGroup{MapID: mapID, ImageVariableID: imageVariableID, Group: group})
}

// RemoveGroup deletes the group at groupIndex. Out of range indexes are a
// *NotFoundError.
func (s *Store) RemoveGroup(ctx context.Context, mapID, imageVariableID string, groupIndex int) error {
	return s.Apply(ctx, RemoveGroup{MapID: mapID, ImageVariableID: imageVariableID, GroupIndex: groupIndex})
}

// ReorderGroups moves a group from one index to another; both must exist.
func (s *Store) ReorderGroups(ctx context.Context, mapID, imageVariableID string, from, to int) error {
	return s.Apply(ctx, ReorderGroups{MapID: mapID, ImageVariableID: imageVariableID, FromIndex: from, ToIndex: to})
}

// AddValueToGroup appends value to an existing group. Groups are never
// created implicitly: a missing group is a *NotFoundError.
func (s *Store) AddValueToGroup(ctx context.Context, mapID, imageVariableID string, groupIndex int, value VariableValue) error {
	return s.Apply(ctx, AddValueToGroup{MapID: mapID, ImageVariableID: imageVariableID, GroupIndex: groupIndex, Value: value})
}

// InsertValueInGroup inserts value before valueIndex, which may equal the
// group length.
func (s *Store) InsertValueInGroup(ctx context.Context, mapID, imageVariableID string, groupIndex, valueIndex int, value VariableValue) error {
	return s.Apply(ctx, InsertValueInGroup{
		MapID:           mapID,
		ImageVariableID: imageVariableID,
		GroupIndex:      groupIndex,
		ValueIndex:      valueIndex,
		Value:           value,
	})
}

// RemoveValueFromGroup deletes the value at valueIndex.
func (s *Store) RemoveValueFromGroup(ctx context.Context, mapID, imageVariableID string, groupIndex, valueIndex int) error {
	return s.Apply(ctx, RemoveValueFromGroup{
		MapID:           mapID,
		ImageVariableID: imageVariableID,
		GroupIndex:      groupIndex,
		ValueIndex:      valueIndex,
	})
}

// UpdateValueInGroup replaces the value at valueIndex in place.
func (s *Store) UpdateValueInGroup(ctx context.Context, mapID, imageVariableID string, groupIndex, valueIndex int, value VariableValue) error {
	return s.Apply(ctx, UpdateValueInGroup{
		MapID:           mapID,
		ImageVariableID: imageVariableID,
		GroupIndex:      groupIndex,
		ValueIndex:      valueIndex,
		Value:           value,
	})
}

// ReorderValuesInGroup moves a value within its group; both indexes must
// exist.
func (s *Store) ReorderValuesInGroup(ctx context.Context, mapID, imageVariableID string, groupIndex, from, to int) error {
	return s.Apply(ctx, ReorderValuesInGroup{
		MapID:           mapID,
		ImageVariableID: imageVariableID,
		GroupIndex:      groupIndex,
		FromIndex:       from,
		ToIndex:         to,
	})
}

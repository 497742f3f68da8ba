package layoutmap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-layoutmap/pkg/studio"
)

const (
	// DefaultStorageKey is the private-data key holding the envelope.
	DefaultStorageKey = "toolbar"
	// DefaultDocumentID addresses the document currently open in the host.
	DefaultDocumentID = "0"
)

// Session binds a Store to the private-data slot of one document.
type Session struct {
	store      *Store
	doc        studio.Document
	codec      *Codec
	documentID string
	key        string
	logger     Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDocumentID selects the document whose private data is used.
func WithDocumentID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.documentID = id
		}
	}
}

// WithStorageKey selects the private-data key holding the envelope.
func WithStorageKey(key string) SessionOption {
	return func(s *Session) {
		if key != "" {
			s.key = key
		}
	}
}

// WithSessionLogger sets the logger for load, save and validate.
func WithSessionLogger(logger Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

func NewSession(store *Store, doc studio.Document, opts ...SessionOption) *Session {
	s := &Session{
		store:      store,
		doc:        doc,
		documentID: DefaultDocumentID,
		key:        DefaultStorageKey,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = loggerOrNoop(s.logger)
	s.codec = NewCodec(WithSource(s.documentID, s.key))
	return s
}

// Store returns the store the session loads into.
func (s *Session) Store() *Store {
	return s.store
}

// Load reads the envelope and primes the store. When nothing is stored yet
// an empty envelope is written first, keeping other keys of the slot. If a
// newer Load starts before this one finishes, this one reports ErrSuperseded
// and leaves the store alone.
func (s *Session) Load(ctx context.Context) (DecodeResult, error) {
	started := time.Now()
	token := s.store.LoadToken()

	result, err := s.load(ctx, token)
	s.logger.Log(LogEvent{
		Op:       "session.load",
		Target:   s.target(),
		Duration: time.Since(started),
		Err:      err,
		Skipped:  errors.Is(err, ErrSuperseded),
	})
	if err != nil && !errors.Is(err, ErrSuperseded) {
		s.store.errs.Record("session.load", err)
	}
	return result, err
}

func (s *Session) load(ctx context.Context, token uint64) (DecodeResult, error) {
	data, err := s.doc.PrivateData(ctx, s.documentID)
	if err != nil {
		return DecodeResult{}, wrapFacadeError("getPrivateData", s.documentID, err)
	}

	var raw *string
	if value, ok := data.Lookup(s.key); ok {
		raw = &value
	}
	result, err := s.codec.Decode(raw)
	if err != nil {
		return DecodeResult{}, err
	}

	if result.FirstUse {
		encoded, err := s.codec.EncodeEnvelope(result.Envelope)
		if err != nil {
			return DecodeResult{}, err
		}
		next := data.Clone()
		if next == nil {
			next = studio.PrivateData{}
		}
		next[s.key] = encoded
		if err := s.doc.SetPrivateData(ctx, s.documentID, next); err != nil {
			return DecodeResult{}, wrapFacadeError("setPrivateData", s.documentID, err)
		}
	}

	if err := s.store.LoadIfCurrent(ctx, token, result.Maps()); err != nil {
		return DecodeResult{}, err
	}
	return result, nil
}

// Save writes the whole collection back. Extension fields of the stored
// envelope and other private-data keys are preserved. Saving before the
// store is loaded is a no-op so an empty store never overwrites real data.
func (s *Session) Save(ctx context.Context) error {
	started := time.Now()
	if !s.store.Loaded() {
		s.logger.Log(LogEvent{Op: "session.save", Target: s.target(), Duration: time.Since(started), Skipped: true})
		return nil
	}

	count, err := s.save(ctx)
	s.logger.Log(LogEvent{Op: "session.save", Target: s.target(), Duration: time.Since(started), Err: err})
	if err != nil {
		s.store.errs.Record("session.save", err)
		return err
	}
	s.store.saved(ctx, count)
	return nil
}

func (s *Session) save(ctx context.Context) (int, error) {
	data, err := s.doc.PrivateData(ctx, s.documentID)
	if err != nil {
		return 0, wrapFacadeError("getPrivateData", s.documentID, err)
	}

	env := Envelope{}
	if raw, ok := data.Lookup(s.key); ok {
		env, err = s.codec.DecodeEnvelope([]byte(raw))
		if err != nil {
			return 0, err
		}
	}
	env.Version = CurrentVersion
	env.LayoutMaps = s.store.Snapshot()

	encoded, err := s.codec.EncodeEnvelope(env)
	if err != nil {
		return 0, err
	}
	next := data.Clone()
	if next == nil {
		next = studio.PrivateData{}
	}
	next[s.key] = encoded
	if err := s.doc.SetPrivateData(ctx, s.documentID, next); err != nil {
		return 0, wrapFacadeError("setPrivateData", s.documentID, err)
	}
	return len(env.LayoutMaps), nil
}

// Document reads the layouts and variables the presentation layer offers
// for mapping.
func (s *Session) Document(ctx context.Context) (studio.Snapshot, error) {
	snapshot, err := studio.ReadSnapshot(ctx, s.doc)
	if err != nil {
		err = wrapFacadeError("read", s.documentID, err)
		s.store.errs.Record("session.document", err)
		return studio.Snapshot{}, err
	}
	return snapshot, nil
}

// Validate checks the stored maps against the document: layouts must
// exist, image variables must name image variables and references must
// target text or list variables. Every problem is reported as a
// *NotFoundError, joined; a value outside the closed set is reported with
// ErrUnknownValue. The store is never modified.
func (s *Session) Validate(ctx context.Context) error {
	started := time.Now()
	snapshot, err := s.Document(ctx)
	if err != nil {
		return err
	}
	err = ValidateMaps(s.store.Snapshot(), snapshot)
	s.logger.Log(LogEvent{Op: "session.validate", Target: s.target(), Duration: time.Since(started), Err: err})
	return err
}

// ValidateMaps checks maps against a document snapshot. See Session.Validate.
func ValidateMaps(maps []LayoutMap, doc studio.Snapshot) error {
	var errs []error
	for _, m := range maps {
		for _, layoutID := range m.LayoutIDs {
			if _, ok := doc.Layout(layoutID); !ok {
				errs = append(errs, &NotFoundError{Segment: "layout", Path: mapPath(m.ID), Detail: fmt.Sprintf("layout %q", layoutID)})
			}
		}
		for _, iv := range m.ImageVariables {
			if v, ok := doc.Variable(iv.ID); !ok || v.Kind != studio.KindImage {
				errs = append(errs, &NotFoundError{Segment: "variable", Path: variablePath(m.ID, iv.ID), Detail: "no image variable with this id"})
			}
			for gi, g := range iv.DependentGroups {
				for vi, value := range g.Values {
					target, err := VisitValue(value,
						func(Literal) (string, error) { return "", nil },
						func(r VariableRef) (string, error) { return r.TargetID(), nil },
					)
					if err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", valuePath(m.ID, iv.ID, gi, vi), err))
						continue
					}
					if target == "" {
						continue
					}
					if v, ok := doc.Variable(target); !ok || !v.Referenceable() {
						errs = append(errs, &NotFoundError{
							Segment: "variable",
							Path:    valuePath(m.ID, iv.ID, gi, vi),
							Detail:  fmt.Sprintf("no text or list variable %q", target),
						})
					}
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Session) target() string {
	return s.documentID + "/" + s.key
}

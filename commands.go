package layoutmap

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/goliatone/go-layoutmap/internal/clone"
)

// Command is one edit of the mapping state. The set is closed: only the
// command types declared in this package satisfy it.
type Command interface {
	// Name is a stable snake_case identifier used in logs and activity verbs.
	Name() string
	// Target is the path the command addresses.
	Target() Path
	apply(maps *[]LayoutMap) (outcome, error)
}

type outcome int

const (
	applied outcome = iota
	skipped
)

// ApplyCommand returns the state produced by cmd without touching maps. On
// error the returned state is maps itself. Commands that are intentional
// no-ops return an equal copy and a nil error. The result is in the same
// canonical form Codec.Decode produces, so encoding it and decoding it back
// yields a deep-equal state.
func ApplyCommand(maps []LayoutMap, cmd Command) ([]LayoutMap, error) {
	next, _, err := applyCommand(maps, cmd)
	return next, err
}

func applyCommand(maps []LayoutMap, cmd Command) ([]LayoutMap, outcome, error) {
	if cmd == nil {
		return maps, skipped, fmt.Errorf("%w: nil command", ErrInvalidCommand)
	}
	next := clone.Value(maps)
	result, err := cmd.apply(&next)
	if err != nil {
		return maps, skipped, err
	}
	return canonicalMaps(next), result, nil
}

// NewLayoutMap returns an empty map with a generated id.
func NewLayoutMap(layoutIDs ...string) LayoutMap {
	return LayoutMap{
		ID:        uuid.NewString(),
		LayoutIDs: dedupe(layoutIDs),
	}
}

// AddLayoutMap appends a new map. The id must be set and unused; see
// NewLayoutMap. Image variables are validated as AddOrReplaceImageVariable
// would; a repeated image variable id replaces the earlier entry.
type AddLayoutMap struct {
	Map LayoutMap
}

func (AddLayoutMap) Name() string   { return "add_layout_map" }
func (c AddLayoutMap) Target() Path { return mapPath(c.Map.ID) }

func (c AddLayoutMap) apply(maps *[]LayoutMap) (outcome, error) {
	if c.Map.ID == "" {
		return skipped, fmt.Errorf("%w: layout map id is required", ErrInvalidCommand)
	}
	if layoutMapIndex(*maps, c.Map.ID) >= 0 {
		return skipped, &ConflictError{Path: c.Target(), Reason: "layout map id already exists"}
	}
	staged := []LayoutMap{{ID: c.Map.ID, LayoutIDs: dedupe(c.Map.LayoutIDs)}}
	if err := checkLayoutOwnership(*maps, c.Map.ID, staged[0].LayoutIDs); err != nil {
		return skipped, err
	}
	for _, variable := range c.Map.ImageVariables {
		if _, err := (AddOrReplaceImageVariable{MapID: c.Map.ID, ImageVariable: variable}).apply(&staged); err != nil {
			return skipped, err
		}
	}
	*maps = append(*maps, staged[0])
	return applied, nil
}

// RemoveLayoutMap deletes a map and releases its layouts.
type RemoveLayoutMap struct {
	MapID string
}

func (RemoveLayoutMap) Name() string   { return "remove_layout_map" }
func (c RemoveLayoutMap) Target() Path { return mapPath(c.MapID) }

func (c RemoveLayoutMap) apply(maps *[]LayoutMap) (outcome, error) {
	i := layoutMapIndex(*maps, c.MapID)
	if i < 0 {
		return skipped, &NotFoundError{Segment: "map", Path: c.Target()}
	}
	*maps = removeAt(*maps, i)
	return applied, nil
}

// SetLayoutIDs replaces the layouts of a map. An unknown map id is a no-op.
// Duplicate ids in LayoutIDs collapse to their first occurrence.
type SetLayoutIDs struct {
	MapID     string
	LayoutIDs []string
}

func (SetLayoutIDs) Name() string   { return "set_layout_ids" }
func (c SetLayoutIDs) Target() Path { return mapPath(c.MapID) }

func (c SetLayoutIDs) apply(maps *[]LayoutMap) (outcome, error) {
	i := layoutMapIndex(*maps, c.MapID)
	if i < 0 {
		return skipped, nil
	}
	layoutIDs := dedupe(c.LayoutIDs)
	if err := checkLayoutOwnership(*maps, c.MapID, layoutIDs); err != nil {
		return skipped, err
	}
	(*maps)[i].LayoutIDs = layoutIDs
	return applied, nil
}

// AddOrReplaceImageVariable replaces the image variable with the same id or
// appends it. The deprecated Dependents field must be empty.
type AddOrReplaceImageVariable struct {
	MapID         string
	ImageVariable ImageVariable
}

func (AddOrReplaceImageVariable) Name() string { return "add_or_replace_image_variable" }
func (c AddOrReplaceImageVariable) Target() Path {
	return variablePath(c.MapID, c.ImageVariable.ID)
}

func (c AddOrReplaceImageVariable) apply(maps *[]LayoutMap) (outcome, error) {
	if c.ImageVariable.ID == "" {
		return skipped, fmt.Errorf("%w: image variable id is required", ErrInvalidCommand)
	}
	if len(c.ImageVariable.Dependents) > 0 {
		return skipped, fmt.Errorf("%w at %s: legacy dependents are only accepted when decoding; use dependent groups", ErrInvalidCommand, c.Target())
	}
	m, err := locateMap(*maps, c.MapID)
	if err != nil {
		return skipped, err
	}
	groups, err := normalizeGroups(c.Target(), c.ImageVariable.DependentGroups)
	if err != nil {
		return skipped, err
	}
	variable := ImageVariable{ID: c.ImageVariable.ID, DependentGroups: groups}
	if i := m.imageVariableIndex(variable.ID); i >= 0 {
		m.ImageVariables[i] = variable
	} else {
		m.ImageVariables = append(m.ImageVariables, variable)
	}
	return applied, nil
}

// RemoveImageVariable removes an image variable by id. A missing image
// variable is a no-op; a missing map is not.
type RemoveImageVariable struct {
	MapID           string
	ImageVariableID string
}

func (RemoveImageVariable) Name() string   { return "remove_image_variable" }
func (c RemoveImageVariable) Target() Path { return variablePath(c.MapID, c.ImageVariableID) }

func (c RemoveImageVariable) apply(maps *[]LayoutMap) (outcome, error) {
	m, err := locateMap(*maps, c.MapID)
	if err != nil {
		return skipped, err
	}
	i := m.imageVariableIndex(c.ImageVariableID)
	if i < 0 {
		return skipped, nil
	}
	m.ImageVariables = removeAt(m.ImageVariables, i)
	return applied, nil
}

// AddGroup appends a dependent group. This is the only way groups come into
// existence; value commands never create them.
type AddGroup struct {
	MapID           string
	ImageVariableID string
	Group           DependentGroup
}

func (AddGroup) Name() string   { return "add_group" }
func (c AddGroup) Target() Path { return variablePath(c.MapID, c.ImageVariableID) }

func (c AddGroup) apply(maps *[]LayoutMap) (outcome, error) {
	v, err := locateImageVariable(*maps, c.MapID, c.ImageVariableID)
	if err != nil {
		return skipped, err
	}
	groups, err := normalizeGroups(c.Target(), []DependentGroup{c.Group})
	if err != nil {
		return skipped, err
	}
	v.DependentGroups = append(v.DependentGroups, groups...)
	return applied, nil
}

// RemoveGroup deletes the group at GroupIndex.
type RemoveGroup struct {
	MapID           string
	ImageVariableID string
	GroupIndex      int
}

func (RemoveGroup) Name() string { return "remove_group" }
func (c RemoveGroup) Target() Path {
	return groupPath(c.MapID, c.ImageVariableID, c.GroupIndex)
}

func (c RemoveGroup) apply(maps *[]LayoutMap) (outcome, error) {
	v, err := locateImageVariable(*maps, c.MapID, c.ImageVariableID)
	if err != nil {
		return skipped, err
	}
	if !inBounds(c.GroupIndex, len(v.DependentGroups)) {
		return skipped, groupNotFound(c.Target(), len(v.DependentGroups))
	}
	v.DependentGroups = removeAt(v.DependentGroups, c.GroupIndex)
	return applied, nil
}

// ReorderGroups moves one group, changing evaluation precedence.
type ReorderGroups struct {
	MapID           string
	ImageVariableID string
	FromIndex       int
	ToIndex         int
}

func (ReorderGroups) Name() string { return "reorder_groups" }
func (c ReorderGroups) Target() Path {
	return groupPath(c.MapID, c.ImageVariableID, c.FromIndex)
}

func (c ReorderGroups) apply(maps *[]LayoutMap) (outcome, error) {
	v, err := locateImageVariable(*maps, c.MapID, c.ImageVariableID)
	if err != nil {
		return skipped, err
	}
	n := len(v.DependentGroups)
	if !inBounds(c.FromIndex, n) {
		return skipped, groupNotFound(c.Target(), n)
	}
	if !inBounds(c.ToIndex, n) {
		return skipped, groupNotFound(groupPath(c.MapID, c.ImageVariableID, c.ToIndex), n)
	}
	v.DependentGroups = moveElement(v.DependentGroups, c.FromIndex, c.ToIndex)
	return applied, nil
}

// AddValueToGroup appends Value to an existing group.
type AddValueToGroup struct {
	MapID           string
	ImageVariableID string
	GroupIndex      int
	Value           VariableValue
}

func (AddValueToGroup) Name() string { return "add_value_to_group" }
func (c AddValueToGroup) Target() Path {
	return groupPath(c.MapID, c.ImageVariableID, c.GroupIndex)
}

func (c AddValueToGroup) apply(maps *[]LayoutMap) (outcome, error) {
	value, err := normalizeValue(c.Target(), c.Value)
	if err != nil {
		return skipped, err
	}
	g, err := locateGroup(*maps, c.MapID, c.ImageVariableID, c.GroupIndex)
	if err != nil {
		return skipped, err
	}
	g.Values = append(g.Values, value)
	return applied, nil
}

// InsertValueInGroup inserts Value before ValueIndex. ValueIndex may equal
// the group length to append.
type InsertValueInGroup struct {
	MapID           string
	ImageVariableID string
	GroupIndex      int
	ValueIndex      int
	Value           VariableValue
}

func (InsertValueInGroup) Name() string { return "insert_value_in_group" }
func (c InsertValueInGroup) Target() Path {
	return valuePath(c.MapID, c.ImageVariableID, c.GroupIndex, c.ValueIndex)
}

func (c InsertValueInGroup) apply(maps *[]LayoutMap) (outcome, error) {
	value, err := normalizeValue(c.Target(), c.Value)
	if err != nil {
		return skipped, err
	}
	g, err := locateGroup(*maps, c.MapID, c.ImageVariableID, c.GroupIndex)
	if err != nil {
		return skipped, err
	}
	if c.ValueIndex < 0 || c.ValueIndex > len(g.Values) {
		return skipped, valueNotFound(c.Target(), len(g.Values)+1)
	}
	g.Values = insertAt(g.Values, c.ValueIndex, value)
	return applied, nil
}

// RemoveValueFromGroup removes the value at ValueIndex.
type RemoveValueFromGroup struct {
	MapID           string
	ImageVariableID string
	GroupIndex      int
	ValueIndex      int
}

func (RemoveValueFromGroup) Name() string { return "remove_value_from_group" }
func (c RemoveValueFromGroup) Target() Path {
	return valuePath(c.MapID, c.ImageVariableID, c.GroupIndex, c.ValueIndex)
}

func (c RemoveValueFromGroup) apply(maps *[]LayoutMap) (outcome, error) {
	g, err := locateGroup(*maps, c.MapID, c.ImageVariableID, c.GroupIndex)
	if err != nil {
		return skipped, err
	}
	if !inBounds(c.ValueIndex, len(g.Values)) {
		return skipped, valueNotFound(c.Target(), len(g.Values))
	}
	g.Values = removeAt(g.Values, c.ValueIndex)
	return applied, nil
}

// UpdateValueInGroup replaces the value at ValueIndex in place.
type UpdateValueInGroup struct {
	MapID           string
	ImageVariableID string
	GroupIndex      int
	ValueIndex      int
	Value           VariableValue
}

func (UpdateValueInGroup) Name() string { return "update_value_in_group" }
func (c UpdateValueInGroup) Target() Path {
	return valuePath(c.MapID, c.ImageVariableID, c.GroupIndex, c.ValueIndex)
}

func (c UpdateValueInGroup) apply(maps *[]LayoutMap) (outcome, error) {
	value, err := normalizeValue(c.Target(), c.Value)
	if err != nil {
		return skipped, err
	}
	g, err := locateGroup(*maps, c.MapID, c.ImageVariableID, c.GroupIndex)
	if err != nil {
		return skipped, err
	}
	if !inBounds(c.ValueIndex, len(g.Values)) {
		return skipped, valueNotFound(c.Target(), len(g.Values))
	}
	g.Values[c.ValueIndex] = value
	return applied, nil
}

// ReorderValuesInGroup moves the value at FromIndex to ToIndex: it is
// removed first, then inserted at ToIndex of the shorter sequence. Other
// values keep their relative order.
type ReorderValuesInGroup struct {
	MapID           string
	ImageVariableID string
	GroupIndex      int
	FromIndex       int
	ToIndex         int
}

func (ReorderValuesInGroup) Name() string { return "reorder_values_in_group" }
func (c ReorderValuesInGroup) Target() Path {
	return valuePath(c.MapID, c.ImageVariableID, c.GroupIndex, c.FromIndex)
}

func (c ReorderValuesInGroup) apply(maps *[]LayoutMap) (outcome, error) {
	g, err := locateGroup(*maps, c.MapID, c.ImageVariableID, c.GroupIndex)
	if err != nil {
		return skipped, err
	}
	n := len(g.Values)
	if !inBounds(c.FromIndex, n) {
		return skipped, valueNotFound(c.Target(), n)
	}
	if !inBounds(c.ToIndex, n) {
		return skipped, valueNotFound(valuePath(c.MapID, c.ImageVariableID, c.GroupIndex, c.ToIndex), n)
	}
	g.Values = moveElement(g.Values, c.FromIndex, c.ToIndex)
	return applied, nil
}

func locateMap(maps []LayoutMap, mapID string) (*LayoutMap, error) {
	i := layoutMapIndex(maps, mapID)
	if i < 0 {
		return nil, &NotFoundError{Segment: "map", Path: mapPath(mapID)}
	}
	return &maps[i], nil
}

func locateImageVariable(maps []LayoutMap, mapID, imageVariableID string) (*ImageVariable, error) {
	m, err := locateMap(maps, mapID)
	if err != nil {
		return nil, err
	}
	i := m.imageVariableIndex(imageVariableID)
	if i < 0 {
		return nil, &NotFoundError{Segment: "imageVariable", Path: variablePath(mapID, imageVariableID)}
	}
	return &m.ImageVariables[i], nil
}

func locateGroup(maps []LayoutMap, mapID, imageVariableID string, groupIndex int) (*DependentGroup, error) {
	v, err := locateImageVariable(maps, mapID, imageVariableID)
	if err != nil {
		return nil, err
	}
	if !inBounds(groupIndex, len(v.DependentGroups)) {
		return nil, groupNotFound(groupPath(mapID, imageVariableID, groupIndex), len(v.DependentGroups))
	}
	return &v.DependentGroups[groupIndex], nil
}

func groupNotFound(path Path, n int) error {
	return &NotFoundError{Segment: "group", Path: path, Detail: fmt.Sprintf("image variable has %d group(s)", n)}
}

func valueNotFound(path Path, n int) error {
	return &NotFoundError{Segment: "value", Path: path, Detail: fmt.Sprintf("index out of range [0,%d)", n)}
}

// checkLayoutOwnership rejects layouts already assigned to a map other than
// mapID.
func checkLayoutOwnership(maps []LayoutMap, mapID string, layoutIDs []string) error {
	owners := AssignedLayouts(maps)
	for _, layoutID := range layoutIDs {
		if owner, ok := owners[layoutID]; ok && owner != mapID {
			return &ConflictError{
				Path:   mapPath(mapID),
				Reason: fmt.Sprintf("layout %q is already assigned to map %q", layoutID, owner),
			}
		}
	}
	return nil
}

// normalizeValue validates value and returns a detached copy in canonical
// form, so a *VariableRef is never stored.
func normalizeValue(path Path, value VariableValue) (VariableValue, error) {
	out, err := VisitValue(value,
		func(l Literal) (VariableValue, error) { return l, nil },
		func(r VariableRef) (VariableValue, error) {
			if !r.Kind.valid() {
				return nil, fmt.Errorf("%w: reference kind %q", ErrInvalidCommand, r.Kind)
			}
			return canonicalValue(clone.Value(r)), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %w", ErrInvalidCommand, path, err)
	}
	return out, nil
}

func normalizeGroups(path Path, groups []DependentGroup) ([]DependentGroup, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	out := make([]DependentGroup, len(groups))
	for gi, g := range groups {
		if len(g.Values) == 0 {
			continue
		}
		out[gi].Values = make([]VariableValue, len(g.Values))
		for vi, v := range g.Values {
			p := path
			p.GroupIndex, p.ValueIndex = gi, vi
			value, err := normalizeValue(p, v)
			if err != nil {
				return nil, err
			}
			out[gi].Values[vi] = value
		}
	}
	return out, nil
}

func inBounds(i, n int) bool {
	return i >= 0 && i < n
}

func removeAt[T any](s []T, i int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

func insertAt[T any](s []T, i int, v T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, v)
	return append(out, s[i:]...)
}

func moveElement[T any](s []T, from, to int) []T {
	if from == to {
		return s
	}
	item := s[from]
	return insertAt(removeAt(s, from), to, item)
}

func dedupe(ids []string) []string {
	if ids == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package layoutmap

import "encoding/json"

// LayoutMap binds a set of document layouts to image-variable selection
// rules.
type LayoutMap struct {
	ID             string          `json:"id"`
	LayoutIDs      []string        `json:"layoutIds"`
	ImageVariables []ImageVariable `json:"imageVariables"`
}

// MarshalJSON writes empty collections as arrays rather than null.
func (m LayoutMap) MarshalJSON() ([]byte, error) {
	type alias LayoutMap
	out := alias(m)
	if out.LayoutIDs == nil {
		out.LayoutIDs = []string{}
	}
	if out.ImageVariables == nil {
		out.ImageVariables = []ImageVariable{}
	}
	return json.Marshal(out)
}

// ImageVariable returns the image variable with id.
func (m LayoutMap) ImageVariable(id string) (ImageVariable, bool) {
	if i := m.imageVariableIndex(id); i >= 0 {
		return m.ImageVariables[i], true
	}
	return ImageVariable{}, false
}

// HasLayout reports whether layoutID is assigned to m.
func (m LayoutMap) HasLayout(layoutID string) bool {
	for _, id := range m.LayoutIDs {
		if id == layoutID {
			return true
		}
	}
	return false
}

func (m LayoutMap) imageVariableIndex(id string) int {
	for i := range m.ImageVariables {
		if m.ImageVariables[i].ID == id {
			return i
		}
	}
	return -1
}

// ImageVariable binds a document image variable to an ordered list of
// dependent groups. Group order matters: the first matching group wins.
type ImageVariable struct {
	ID              string           `json:"id"`
	DependentGroups []DependentGroup `json:"dependentGroup"`

	// Dependents is the legacy flat shape. It is upgraded into
	// DependentGroups when an envelope is decoded and is otherwise unused.
	//
	// Deprecated: use DependentGroups.
	Dependents []DependentVar `json:"dependents,omitempty"`
}

// MarshalJSON writes an empty group list as an array rather than null.
func (v ImageVariable) MarshalJSON() ([]byte, error) {
	type alias ImageVariable
	out := alias(v)
	if out.DependentGroups == nil {
		out.DependentGroups = []DependentGroup{}
	}
	return json.Marshal(out)
}

// DependentVar is the legacy dependent shape: a variable plus the values it
// was expected to take.
type DependentVar struct {
	VariableID string   `json:"variableId"`
	Values     []string `json:"values"`
}

// TransformCommand is a single find/replace rule applied to a referenced
// variable value. Rules run in order.
type TransformCommand struct {
	Find       string `json:"find"`
	Replace    string `json:"replace"`
	ReplaceAll bool   `json:"replaceAll"`
	Regex      bool   `json:"regex"`
}

// FindLayoutMap returns the map with id.
func FindLayoutMap(maps []LayoutMap, id string) (LayoutMap, bool) {
	if i := layoutMapIndex(maps, id); i >= 0 {
		return maps[i], true
	}
	return LayoutMap{}, false
}

// MapForLayout returns the map a layout is assigned to.
func MapForLayout(maps []LayoutMap, layoutID string) (LayoutMap, bool) {
	for _, m := range maps {
		if m.HasLayout(layoutID) {
			return m, true
		}
	}
	return LayoutMap{}, false
}

// AssignedLayouts indexes layout ids to the id of the map owning them.
// Presentation code uses it to disable layouts already taken by another map.
func AssignedLayouts(maps []LayoutMap) map[string]string {
	out := map[string]string{}
	for _, m := range maps {
		for _, layoutID := range m.LayoutIDs {
			out[layoutID] = m.ID
		}
	}
	return out
}

func layoutMapIndex(maps []LayoutMap, id string) int {
	for i := range maps {
		if maps[i].ID == id {
			return i
		}
	}
	return -1
}

// canonicalMaps rewrites maps in place into the form decoding produces:
// empty collections are nil and references are stored by value with a nil
// Transform when they carry no rules. The returned slice is never nil.
func canonicalMaps(maps []LayoutMap) []LayoutMap {
	if maps == nil {
		return []LayoutMap{}
	}
	for mi := range maps {
		m := &maps[mi]
		m.LayoutIDs = nilIfEmpty(m.LayoutIDs)
		m.ImageVariables = nilIfEmpty(m.ImageVariables)
		for vi := range m.ImageVariables {
			v := &m.ImageVariables[vi]
			v.Dependents = nilIfEmpty(v.Dependents)
			v.DependentGroups = canonicalGroups(v.DependentGroups)
		}
	}
	return maps
}

func canonicalGroups(groups []DependentGroup) []DependentGroup {
	groups = nilIfEmpty(groups)
	for gi := range groups {
		g := &groups[gi]
		g.Values = nilIfEmpty(g.Values)
		for i, value := range g.Values {
			g.Values[i] = canonicalValue(value)
		}
	}
	return groups
}

func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}

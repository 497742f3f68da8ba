package studio

import "context"

// Layout describes one layout of the host document.
type Layout struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
}

// IsRoot reports whether the layout has no parent.
func (l Layout) IsRoot() bool {
	return l.ParentID == ""
}

// VariableKind tags the Variable union.
type VariableKind string

const (
	KindImage     VariableKind = "image"
	KindShortText VariableKind = "shortText"
	KindList      VariableKind = "list"
	KindBoolean   VariableKind = "boolean"
)

// Valid reports whether k is one of the known kinds.
func (k VariableKind) Valid() bool {
	switch k {
	case KindImage, KindShortText, KindList, KindBoolean:
		return true
	default:
		return false
	}
}

// ListItem is one selectable entry of a list variable.
type ListItem struct {
	Value        string `json:"value"`
	DisplayValue string `json:"displayValue,omitempty"`
}

// Label returns the display value falling back to the raw value.
func (i ListItem) Label() string {
	if i.DisplayValue != "" {
		return i.DisplayValue
	}
	return i.Value
}

// Variable is a host document variable. Items is only populated for
// KindList; Value holds "true"/"false" for KindBoolean.
type Variable struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Kind      VariableKind `json:"type"`
	Value     string       `json:"value"`
	IsVisible bool         `json:"isVisible,omitempty"`
	Items     []ListItem   `json:"items,omitempty"`
}

// Bool interprets the value of a boolean variable.
func (v Variable) Bool() bool {
	return v.Kind == KindBoolean && v.Value == "true"
}

// Referenceable reports whether the variable may be the target of a
// dependent-group reference. Image and boolean variables carry no text.
func (v Variable) Referenceable() bool {
	return v.Kind == KindShortText || v.Kind == KindList
}

// NormalizeVariable coerces unknown kinds to shortText and drops items on
// non-list variables.
func NormalizeVariable(v Variable) Variable {
	if !v.Kind.Valid() {
		v.Kind = KindShortText
	}
	if v.Kind != KindList {
		v.Items = nil
	} else if v.Items != nil {
		v.Items = append([]ListItem(nil), v.Items...)
	}
	return v
}

// PrivateData is the opaque string map a document exposes for extensions.
type PrivateData map[string]string

// Clone returns a detached copy; nil stays nil.
func (p PrivateData) Clone() PrivateData {
	if p == nil {
		return nil
	}
	out := make(PrivateData, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Lookup returns the value under key and whether it was present.
func (p PrivateData) Lookup(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	value, ok := p[key]
	return value, ok
}

// Reader exposes read-only snapshots of the host document.
type Reader interface {
	Layouts(ctx context.Context) ([]Layout, error)
	Variables(ctx context.Context) ([]Variable, error)
}

// PrivateStorage reads and writes a document's private data slot. Writes
// replace the whole map.
type PrivateStorage interface {
	PrivateData(ctx context.Context, documentID string) (PrivateData, error)
	SetPrivateData(ctx context.Context, documentID string, data PrivateData) error
}

// Document is the full facade consumed by the layoutmap session.
type Document interface {
	Reader
	PrivateStorage
}

// Snapshot captures layouts and variables read together.
type Snapshot struct {
	Layouts   []Layout   `json:"layouts"`
	Variables []Variable `json:"variables"`
}

// Variable returns the variable with id.
func (s Snapshot) Variable(id string) (Variable, bool) {
	for _, v := range s.Variables {
		if v.ID == id {
			return v, true
		}
	}
	return Variable{}, false
}

// Layout returns the layout with id.
func (s Snapshot) Layout(id string) (Layout, bool) {
	for _, l := range s.Layouts {
		if l.ID == id {
			return l, true
		}
	}
	return Layout{}, false
}

// VariablesOfKind filters variables by kind, preserving order.
func (s Snapshot) VariablesOfKind(kind VariableKind) []Variable {
	var out []Variable
	for _, v := range s.Variables {
		if v.Kind == kind {
			out = append(out, v)
		}
	}
	return out
}

// Values flattens variables into an id -> value map.
func (s Snapshot) Values() map[string]string {
	out := make(map[string]string, len(s.Variables))
	for _, v := range s.Variables {
		out[v.ID] = v.Value
	}
	return out
}

// ReadSnapshot reads layouts then variables from r, normalizing variables.
func ReadSnapshot(ctx context.Context, r Reader) (Snapshot, error) {
	layouts, err := r.Layouts(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	variables, err := r.Variables(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	normalized := make([]Variable, len(variables))
	for i, v := range variables {
		normalized[i] = NormalizeVariable(v)
	}
	return Snapshot{Layouts: append([]Layout(nil), layouts...), Variables: normalized}, nil
}

type composed struct {
	Reader
	PrivateStorage
}

// Compose joins a Reader and a PrivateStorage into a Document.
func Compose(reader Reader, storage PrivateStorage) Document {
	return composed{Reader: reader, PrivateStorage: storage}
}

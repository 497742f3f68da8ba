package layoutmap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// VariableValue is one element of a dependent group. It is a closed union:
// the only implementations are Literal and VariableRef. Use VisitValue to
// handle both variants.
type VariableValue interface {
	isVariableValue()
}

// Literal is a fixed string segment.
type Literal string

func (Literal) isVariableValue() {}

// RefKind tags the kind of variable a reference expects.
type RefKind string

const (
	RefText RefKind = "StudioText"
	RefList RefKind = "StudioList"
)

func (k RefKind) valid() bool {
	return k == RefText || k == RefList
}

// VariableRef points at another document variable whose current value is
// run through Transform. A nil ID marks a reference still waiting for the
// user to pick its target.
type VariableRef struct {
	ID        *string
	Kind      RefKind
	Transform []TransformCommand
}

func (VariableRef) isVariableValue() {}

// NewListRef returns a pending list reference.
func NewListRef() VariableRef {
	return VariableRef{Kind: RefList}
}

// RefTo returns a reference to variable id.
func RefTo(id string, kind RefKind, transforms ...TransformCommand) VariableRef {
	ref := VariableRef{ID: &id, Kind: kind}
	if len(transforms) > 0 {
		ref.Transform = append([]TransformCommand(nil), transforms...)
	}
	return ref
}

// Pending reports whether no target variable has been chosen.
func (r VariableRef) Pending() bool {
	return r.ID == nil
}

// TargetID returns the referenced id or "" when pending.
func (r VariableRef) TargetID() string {
	if r.ID == nil {
		return ""
	}
	return *r.ID
}

// WithTarget returns a copy of r pointing at id.
func (r VariableRef) WithTarget(id string) VariableRef {
	r.ID = &id
	return r
}

// ErrUnknownValue is returned when a VariableValue is nil or of a type
// outside the closed set.
var ErrUnknownValue = errors.New("layoutmap: unknown variable value")

// VisitValue dispatches v to the handler for its variant. A non-nil
// *VariableRef is accepted and handled as the reference it points to.
func VisitValue[T any](v VariableValue, literal func(Literal) (T, error), ref func(VariableRef) (T, error)) (T, error) {
	var zero T
	switch typed := v.(type) {
	case Literal:
		return literal(typed)
	case VariableRef:
		return ref(typed)
	case *VariableRef:
		if typed == nil {
			return zero, ErrUnknownValue
		}
		return ref(*typed)
	default:
		return zero, fmt.Errorf("%w: %T", ErrUnknownValue, v)
	}
}

// DependentGroup is one ordered sequence of values forming a selection rule.
type DependentGroup struct {
	Values []VariableValue
}

// NewDependentGroup builds a group from values.
func NewDependentGroup(values ...VariableValue) DependentGroup {
	if len(values) == 0 {
		return DependentGroup{}
	}
	return DependentGroup{Values: append([]VariableValue(nil), values...)}
}

// References returns the targets of all non-pending references, in order.
func (g DependentGroup) References() []string {
	var ids []string
	for _, v := range g.Values {
		id, _ := VisitValue(v,
			func(Literal) (string, error) { return "", nil },
			func(r VariableRef) (string, error) { return r.TargetID(), nil },
		)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// canonicalValue returns v in its stored form. A *VariableRef is
// dereferenced and an empty Transform becomes nil; anything else is
// returned unchanged.
func canonicalValue(v VariableValue) VariableValue {
	switch typed := v.(type) {
	case *VariableRef:
		if typed == nil {
			return v
		}
		ref := *typed
		ref.Transform = nilIfEmpty(ref.Transform)
		return ref
	case VariableRef:
		typed.Transform = nilIfEmpty(typed.Transform)
		return typed
	default:
		return v
	}
}

type wireRef struct {
	ID        *string            `json:"id"`
	Type      RefKind            `json:"type"`
	Transform []TransformCommand `json:"transform"`
}

type wireGroup struct {
	VariableValue []json.RawMessage `json:"variableValue"`
}

func (g DependentGroup) MarshalJSON() ([]byte, error) {
	out := wireGroup{VariableValue: make([]json.RawMessage, 0, len(g.Values))}
	for i, v := range g.Values {
		raw, err := VisitValue(v,
			func(l Literal) ([]byte, error) {
				return json.Marshal(string(l))
			},
			func(r VariableRef) ([]byte, error) {
				transform := r.Transform
				if transform == nil {
					transform = []TransformCommand{}
				}
				return json.Marshal(wireRef{ID: r.ID, Type: r.Kind, Transform: transform})
			},
		)
		if err != nil {
			return nil, fmt.Errorf("layoutmap: encode value %d: %w", i, err)
		}
		out.VariableValue = append(out.VariableValue, raw)
	}
	return json.Marshal(out)
}

func (g *DependentGroup) UnmarshalJSON(data []byte) error {
	var wire wireGroup
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	g.Values = nil
	for i, raw := range wire.VariableValue {
		value, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("layoutmap: decode value %d: %w", i, err)
		}
		g.Values = append(g.Values, value)
	}
	return nil
}

func decodeValue(raw json.RawMessage) (VariableValue, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrUnknownValue
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		return Literal(s), nil
	case '{':
		var ref wireRef
		if err := json.Unmarshal(trimmed, &ref); err != nil {
			return nil, err
		}
		if ref.Type == "" {
			ref.Type = RefList
		}
		if !ref.Type.valid() {
			return nil, fmt.Errorf("%w: reference type %q", ErrUnknownValue, ref.Type)
		}
		if len(ref.Transform) == 0 {
			ref.Transform = nil
		}
		return VariableRef{ID: ref.ID, Kind: ref.Type, Transform: ref.Transform}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownValue, string(trimmed))
	}
}

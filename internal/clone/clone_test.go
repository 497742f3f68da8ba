package clone

import (
	"reflect"
	"testing"
)

type tagged interface{ tag() }

type word string

func (word) tag() {}

type ref struct {
	ID    *string
	Steps []string
}

func (ref) tag() {}

type tree struct {
	Name     string
	Children []tree
	Values   []tagged
	Labels   map[string]string
	Missing  []string
}

func TestValueDeepCopiesNestedState(t *testing.T) {
	id := "list1"
	original := []tree{{
		Name: "root",
		Children: []tree{
			{Name: "leaf", Values: []tagged{word("a"), ref{ID: &id, Steps: []string{"x"}}}},
		},
		Labels: map[string]string{"k": "v"},
	}}

	copied := Value(original)
	if !reflect.DeepEqual(original, copied) {
		t.Fatalf("expected deep equal copy\nwant: %#v\n got: %#v", original, copied)
	}

	copied[0].Children[0].Name = "changed"
	copied[0].Labels["k"] = "changed"
	copiedRef := copied[0].Children[0].Values[1].(ref)
	*copiedRef.ID = "other"
	copiedRef.Steps[0] = "y"

	if original[0].Children[0].Name != "leaf" {
		t.Fatalf("nested slice shared with copy")
	}
	if original[0].Labels["k"] != "v" {
		t.Fatalf("map shared with copy")
	}
	if id != "list1" {
		t.Fatalf("pointer target shared with copy")
	}
	if original[0].Children[0].Values[1].(ref).Steps[0] != "x" {
		t.Fatalf("interface payload shared with copy")
	}
}

func TestValuePreservesNil(t *testing.T) {
	var maps []tree
	if got := Value(maps); got != nil {
		t.Fatalf("expected nil slice, got %#v", got)
	}
	got := Value(tree{Name: "x"})
	if got.Children != nil || got.Labels != nil || got.Missing != nil {
		t.Fatalf("expected nil fields to stay nil, got %#v", got)
	}
}

func TestValueWithInterfaceTypeParameter(t *testing.T) {
	var v tagged = word("a")
	if got := Value(v); got != word("a") {
		t.Fatalf("expected word copy, got %#v", got)
	}
	var empty tagged
	if got := Value(empty); got != nil {
		t.Fatalf("expected nil interface, got %#v", got)
	}
}

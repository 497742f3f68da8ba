//go:build js_eval

package layoutmap

import (
	"strings"
	"testing"
)

func TestJSMatchRule(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("upper", func(args ...any) (any, error) {
		s, _ := args[0].(string)
		return strings.ToUpper(s), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	resolver, err := NewResolver(
		WithEngine("js"),
		WithFunctionRegistry(registry),
		WithMatchRule(`resolved && upper(values["size"]) === "M" && segments.length === 2`),
	)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	selection, err := resolver.Select(ImageVariable{ID: "hero", DependentGroups: []DependentGroup{
		NewDependentGroup(Literal("only")),
		NewDependentGroup(Literal("size-"), RefTo("size", RefList)),
	}}, map[string]string{"size": "m"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if selection.GroupIndex != 1 || selection.Value != "size-m" {
		t.Fatalf("unexpected selection %+v", selection)
	}
}

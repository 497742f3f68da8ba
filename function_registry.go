package layoutmap

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Function is a helper callable from match rules.
type Function func(args ...any) (any, error)

// FunctionRegistry holds the helpers match rules may call. Names are case
// insensitive. Most helpers take the strings a rule sees (result, segments,
// values) so RegisterString and RegisterTransform cover the common cases.
type FunctionRegistry struct {
	mu          sync.RWMutex
	functions   map[string]Function
	transformer *Transformer
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{}}
}

// Register adds fn under name. Names must be unique.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := strings.ToLower(strings.TrimSpace(name))
	switch {
	case key == "":
		return fmt.Errorf("layoutmap: function name must not be empty")
	case key == "call":
		return fmt.Errorf("layoutmap: function name %q is reserved", name)
	case fn == nil:
		return fmt.Errorf("layoutmap: function %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]Function{}
	}
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("layoutmap: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// RegisterString adds a helper taking one string, such as a variable value
// or the rendered result, and returning a string.
func (r *FunctionRegistry) RegisterString(name string, fn func(string) string) error {
	if fn == nil {
		return r.Register(name, nil)
	}
	return r.Register(name, func(args ...any) (any, error) {
		s, err := stringArg(name, args)
		if err != nil {
			return nil, err
		}
		return fn(s), nil
	})
}

// RegisterTransform adds a helper running transforms over its one string
// argument with the same semantics as reference transforms. Regex patterns
// are compiled here so a bad pattern fails registration.
func (r *FunctionRegistry) RegisterTransform(name string, transforms ...TransformCommand) error {
	if len(transforms) == 0 {
		return fmt.Errorf("layoutmap: function %q: no transforms", name)
	}
	r.mu.Lock()
	if r.transformer == nil {
		r.transformer = NewTransformer(0)
	}
	transformer := r.transformer
	r.mu.Unlock()

	if _, err := transformer.Apply("", transforms); err != nil {
		return fmt.Errorf("layoutmap: function %q: %w", name, err)
	}
	chain := append([]TransformCommand(nil), transforms...)
	return r.Register(name, func(args ...any) (any, error) {
		s, err := stringArg(name, args)
		if err != nil {
			return nil, err
		}
		return transformer.Apply(s, chain)
	})
}

// Clone returns a registry with the same functions.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &FunctionRegistry{functions: maps.Clone(r.functions), transformer: r.transformer}
}

// Call runs the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("layoutmap: no functions registered")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("layoutmap: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns the registered names, sorted.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.functions))
}

func stringArg(name string, args []any) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("layoutmap: function %q takes 1 argument, got %d", name, len(args))
	}
	switch v := args[0].(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("layoutmap: function %q: argument must be a string, got %T", name, args[0])
	}
}

package layoutmap

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-layoutmap/pkg/studio"
)

// ResolvedGroup is a dependent group rendered against variable values.
type ResolvedGroup struct {
	Segments []string
	Value    string
	// Resolved is false when a reference is pending or its target is not
	// among the values.
	Resolved bool
	Missing  []string
}

// Selection is the outcome of choosing a group for one image variable.
// GroupIndex is -1 when no group matched.
type Selection struct {
	ImageVariableID string
	GroupIndex      int
	Value           string
	Matched         bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*resolverConfig)

type resolverConfig struct {
	evaluator    Evaluator
	engine       string
	cache        ProgramCache
	functions    *FunctionRegistry
	rule         string
	logger       EvaluatorLogger
	regexTimeout time.Duration
	err          error
}

// WithEvaluator sets the evaluator used for custom match rules.
func WithEvaluator(evaluator Evaluator) ResolverOption {
	return func(cfg *resolverConfig) {
		cfg.evaluator = evaluator
	}
}

// WithEngine picks a built-in evaluator by name when none is set explicitly.
func WithEngine(engine string) ResolverOption {
	return func(cfg *resolverConfig) {
		cfg.engine = engine
	}
}

// WithProgramCache shares compiled programs across resolvers.
func WithProgramCache(cache ProgramCache) ResolverOption {
	return func(cfg *resolverConfig) {
		cfg.cache = cache
	}
}

// WithMatchRule replaces the default match rule with expr. The expression
// must produce a bool.
func WithMatchRule(expr string) ResolverOption {
	return func(cfg *resolverConfig) {
		cfg.rule = strings.TrimSpace(expr)
	}
}

// WithFunctionRegistry makes the functions of registry callable from match
// rules. It replaces functions added by earlier options.
func WithFunctionRegistry(registry *FunctionRegistry) ResolverOption {
	return func(cfg *resolverConfig) {
		if registry != nil {
			cfg.functions = registry.Clone()
		}
	}
}

// WithCustomFunction registers fn under name for the resolver's rules. A
// registration error is returned by NewResolver.
func WithCustomFunction(name string, fn Function) ResolverOption {
	return func(cfg *resolverConfig) {
		cfg.register(func(r *FunctionRegistry) error { return r.Register(name, fn) })
	}
}

// WithTransformFunction registers a rule helper running transforms over its
// argument, e.g. a slug() built from find/replace rules.
func WithTransformFunction(name string, transforms ...TransformCommand) ResolverOption {
	return func(cfg *resolverConfig) {
		cfg.register(func(r *FunctionRegistry) error { return r.RegisterTransform(name, transforms...) })
	}
}

func (cfg *resolverConfig) register(fn func(*FunctionRegistry) error) {
	if cfg.functions == nil {
		cfg.functions = NewFunctionRegistry()
	}
	if err := fn(cfg.functions); err != nil && cfg.err == nil {
		cfg.err = err
	}
}

// WithRegexTimeout bounds regex transforms.
func WithRegexTimeout(timeout time.Duration) ResolverOption {
	return func(cfg *resolverConfig) {
		cfg.regexTimeout = timeout
	}
}

// Resolver picks, for an image variable, the first dependent group whose
// match rule holds. Without a custom rule a group matches when all its
// references resolve and the rendered value is not empty.
type Resolver struct {
	evaluator   Evaluator
	rule        CompiledRule
	expr        string
	logger      EvaluatorLogger
	transformer *Transformer
}

// NewResolver builds a resolver. A custom match rule is compiled up front so
// syntax errors surface here rather than per group.
func NewResolver(opts ...ResolverOption) (*Resolver, error) {
	cfg := resolverConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.err != nil {
		return nil, cfg.err
	}
	r := &Resolver{
		expr:        cfg.rule,
		logger:      cfg.logger,
		transformer: NewTransformer(cfg.regexTimeout),
	}
	if r.logger == nil {
		r.logger = noopEvaluatorLogger{}
	}
	if cfg.rule == "" {
		return r, nil
	}

	evaluator := cfg.evaluator
	if evaluator == nil {
		var err error
		evaluator, err = NewEvaluator(cfg.engine, WithRuleCache(cfg.cache), WithRuleFunctions(cfg.functions))
		if err != nil {
			return nil, err
		}
	}
	rule, err := evaluator.Compile(cfg.rule)
	if err != nil {
		return nil, compileError(evaluatorEngineName(evaluator), cfg.rule, err)
	}
	r.evaluator = evaluator
	r.rule = rule
	return r, nil
}

// ResolveGroup renders group against values. Literals are used verbatim,
// references are looked up and run through their transforms.
func (r *Resolver) ResolveGroup(group DependentGroup, values map[string]string) (ResolvedGroup, error) {
	out := ResolvedGroup{Segments: make([]string, 0, len(group.Values)), Resolved: true}
	for i, value := range group.Values {
		segment, err := VisitValue(value,
			func(l Literal) (string, error) {
				return string(l), nil
			},
			func(ref VariableRef) (string, error) {
				if ref.Pending() {
					out.Resolved = false
					return "", nil
				}
				raw, ok := values[*ref.ID]
				if !ok {
					out.Resolved = false
					out.Missing = append(out.Missing, *ref.ID)
					return "", nil
				}
				return r.transformer.Apply(raw, ref.Transform)
			},
		)
		if err != nil {
			return ResolvedGroup{}, fmt.Errorf("layoutmap: resolve value %d: %w", i, err)
		}
		out.Segments = append(out.Segments, segment)
	}
	out.Value = strings.Join(out.Segments, "")
	return out, nil
}

// Select evaluates the groups of variable in order and returns the first
// match.
func (r *Resolver) Select(variable ImageVariable, values map[string]string) (Selection, error) {
	selection := Selection{ImageVariableID: variable.ID, GroupIndex: -1}
	for gi, group := range variable.DependentGroups {
		resolved, err := r.ResolveGroup(group, values)
		if err != nil {
			return Selection{}, err
		}
		matched, err := r.matches(RuleContext{
			ImageVariableID: variable.ID,
			GroupIndex:      gi,
			Values:          values,
			Segments:        resolved.Segments,
			Result:          resolved.Value,
			Resolved:        resolved.Resolved,
		})
		if err != nil {
			return Selection{}, err
		}
		if matched {
			selection.GroupIndex = gi
			selection.Value = resolved.Value
			selection.Matched = true
			return selection, nil
		}
	}
	return selection, nil
}

// SelectForLayout resolves every image variable of the map owning layoutID
// against the document's current values. A layout no map owns yields no
// selections.
func (r *Resolver) SelectForLayout(maps []LayoutMap, layoutID string, doc studio.Snapshot) ([]Selection, error) {
	m, ok := MapForLayout(maps, layoutID)
	if !ok {
		return nil, nil
	}
	values := doc.Values()
	selections := make([]Selection, 0, len(m.ImageVariables))
	for _, variable := range m.ImageVariables {
		selection, err := r.Select(variable, values)
		if err != nil {
			return nil, err
		}
		selections = append(selections, selection)
	}
	return selections, nil
}

func (r *Resolver) matches(ctx RuleContext) (bool, error) {
	if r.rule == nil {
		return ctx.Resolved && ctx.Result != "", nil
	}

	engine := evaluatorEngineName(r.evaluator)
	start := time.Now()
	value, err := r.rule.Evaluate(ctx)
	matched := false
	if err == nil {
		var ok bool
		matched, ok = value.(bool)
		if !ok {
			err = fmt.Errorf("match rule must produce a bool, got %T", value)
		}
	}
	err = ruleError(engine, r.expr, ctx, err)
	r.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     r.expr,
		Target:   ctx.label(),
		Matched:  matched,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return false, err
	}
	return matched, nil
}

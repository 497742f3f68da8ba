package layoutmap

import (
	"reflect"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. The rule
// variables are declared with concrete types so expressions are type checked
// at compile time. Registry functions are reachable through
// call(name, [args]).
func NewCELEvaluator(opts ...EvaluatorOption) Evaluator {
	cfg := newEvaluatorConfig(opts)
	return &celEvaluator{cache: cfg.cache, registry: cfg.functions}
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, compileError("cel", "", ErrEmptyRule)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, compileError("cel", expression, err)
	}
	return &celCompiledRule{program: program, expression: expression}, nil
}

func (e *celEvaluator) loadOrCompile(expression string) (celgo.Program, error) {
	key := "cel:" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return program, nil
}

func (e *celEvaluator) buildEnv() (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("values", celgo.MapType(celgo.StringType, celgo.StringType)),
		celgo.Variable("segments", celgo.ListType(celgo.StringType)),
		celgo.Variable("result", celgo.StringType),
		celgo.Variable("resolved", celgo.BoolType),
		celgo.Variable("imageVariable", celgo.StringType),
		celgo.Variable("group", celgo.IntType),
		celgo.Variable("metadata", celgo.MapType(celgo.StringType, celgo.DynType)),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string",
				[]*celgo.Type{celgo.StringType},
				celgo.DynType,
				celgo.UnaryBinding(func(name ref.Val) ref.Val {
					return e.call(name, nil)
				}),
			),
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(e.call),
			),
		))
	}
	return celgo.NewEnv(opts...)
}

var anySliceType = reflect.TypeOf([]any{})

func (e *celEvaluator) call(name ref.Val, list ref.Val) ref.Val {
	fn, ok := name.Value().(string)
	if !ok {
		return types.NewErr("layoutmap: call name must be string")
	}
	var args []any
	if list != nil {
		native, err := list.ConvertToNative(anySliceType)
		if err != nil {
			return types.NewErr("layoutmap: call arguments: %v", err)
		}
		args, _ = native.([]any)
	}
	result, err := e.registry.Call(fn, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

type celCompiledRule struct {
	program    celgo.Program
	expression string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	activation := map[string]any{
		"now":           ctx.timestamp(),
		"values":        ctx.Values,
		"segments":      ctx.Segments,
		"result":        ctx.Result,
		"resolved":      ctx.Resolved,
		"imageVariable": ctx.ImageVariableID,
		"group":         int64(ctx.GroupIndex),
		"metadata":      ctx.Metadata,
	}
	out, _, err := r.program.Eval(activation)
	if err != nil {
		return nil, ruleError("cel", r.expression, ctx, err)
	}
	return out.Value(), nil
}

package varref

import (
	"sync"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

type celEvaluator struct {
	evaluatorConfig

	envOnce sync.Once
	env     *celgo.Env
	envErr  error
}

// NewCELEvaluator returns an Evaluator for CEL expressions, e.g.
// `source.startsWith("Quest")`. Registered functions are reached through
// call("name", [args]).
func NewCELEvaluator(opts ...EvaluatorOption) Evaluator {
	return &celEvaluator{evaluatorConfig: applyEvaluatorOptions(opts)}
}

func (e *celEvaluator) Engine() string { return EngineCEL }

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	return compileAndRun(e, ctx, expression)
}

func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	if err := checkExpression(EngineCEL, expression); err != nil {
		return nil, err
	}
	program, err := cachedProgram(e.cache, EngineCEL, expression, e.compile)
	if err != nil {
		return nil, err
	}
	return compiledRule{
		engine:     EngineCEL,
		expression: expression,
		run: func(ctx RuleContext) (any, error) {
			out, _, err := program.Eval(ctx.bindings())
			if err != nil {
				return nil, err
			}
			return out.Value(), nil
		},
	}, nil
}

func (e *celEvaluator) compile(expression string) (celgo.Program, error) {
	env, err := e.environment()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return env.Program(ast)
}

// environment declares the rule variables once; they do not vary per call.
func (e *celEvaluator) environment() (*celgo.Env, error) {
	e.envOnce.Do(func() {
		opts := []celgo.EnvOption{
			celgo.Variable("source", celgo.StringType),
			celgo.Variable("field", celgo.StringType),
			celgo.Variable("id", celgo.StringType),
			celgo.Variable("identifier", celgo.StringType),
			celgo.Variable("metadata", celgo.MapType(celgo.StringType, celgo.DynType)),
			celgo.Variable("now", celgo.TimestampType),
		}
		if e.functions != nil {
			opts = append(opts, celgo.Function("call",
				celgo.Overload("call_string",
					[]*celgo.Type{celgo.StringType},
					celgo.DynType,
					celgo.UnaryBinding(func(name ref.Val) ref.Val {
						return e.invoke(name, nil)
					}),
				),
				celgo.Overload("call_string_list",
					[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
					celgo.DynType,
					celgo.BinaryBinding(e.invoke),
				),
			))
		}
		e.env, e.envErr = celgo.NewEnv(opts...)
	})
	return e.env, e.envErr
}

func (e *celEvaluator) invoke(name ref.Val, list ref.Val) ref.Val {
	fn, ok := name.Value().(string)
	if !ok {
		return types.NewErr("varref: call name must be a string")
	}
	var args []any
	if lister, ok := list.(traits.Lister); ok {
		size, _ := lister.Size().(types.Int)
		for i := types.Int(0); i < size; i++ {
			args = append(args, lister.Get(i).Value())
		}
	}
	result, err := e.functions.Call(fn, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

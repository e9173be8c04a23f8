package varref

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

type exprEvaluator struct {
	evaluatorConfig
}

// NewExprEvaluator returns an Evaluator for github.com/expr-lang/expr
// expressions, e.g. `source contains "Boss" && field == "hp"`.
func NewExprEvaluator(opts ...EvaluatorOption) Evaluator {
	return &exprEvaluator{evaluatorConfig: applyEvaluatorOptions(opts)}
}

func (e *exprEvaluator) Engine() string { return EngineExpr }

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	return compileAndRun(e, ctx, expression)
}

func (e *exprEvaluator) Compile(expression string) (CompiledRule, error) {
	if err := checkExpression(EngineExpr, expression); err != nil {
		return nil, err
	}
	program, err := cachedProgram(e.cache, EngineExpr, expression, e.compile)
	if err != nil {
		return nil, err
	}
	return compiledRule{
		engine:     EngineExpr,
		expression: expression,
		run: func(ctx RuleContext) (any, error) {
			return exprlang.Run(program, ctx.bindings())
		},
	}, nil
}

// compile declares registered functions; variables stay untyped so rules
// may reference metadata keys freely.
func (e *exprEvaluator) compile(expression string) (*exprvm.Program, error) {
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	functionBindings(e.functions, func(name string, fn any) {
		switch fn := fn.(type) {
		case func(...any) (any, error):
			options = append(options, exprlang.Function(name, fn))
		case func(string, ...any) (any, error):
			options = append(options, exprlang.Function(name, func(args ...any) (any, error) {
				if len(args) == 0 {
					return nil, fmt.Errorf("call expects a function name")
				}
				target, _ := args[0].(string)
				return fn(target, args[1:]...)
			}))
		}
	})
	return exprlang.Compile(expression, options...)
}

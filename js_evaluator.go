//go:build js_eval

package varref

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	evaluatorConfig
}

// NewJSEvaluator returns an Evaluator running JavaScript expressions with
// goja, e.g. `source.indexOf("Boss") >= 0`. Each run gets a fresh runtime.
func NewJSEvaluator(opts ...EvaluatorOption) Evaluator {
	return &jsEvaluator{evaluatorConfig: applyEvaluatorOptions(opts)}
}

func (e *jsEvaluator) Engine() string { return EngineJS }

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	return compileAndRun(e, ctx, expression)
}

func (e *jsEvaluator) Compile(expression string) (CompiledRule, error) {
	if err := checkExpression(EngineJS, expression); err != nil {
		return nil, err
	}
	program, err := cachedProgram(e.cache, EngineJS, expression, compileJS)
	if err != nil {
		return nil, err
	}
	return compiledRule{
		engine:     EngineJS,
		expression: expression,
		run: func(ctx RuleContext) (any, error) {
			vm := goja.New()
			for name, value := range ctx.bindings() {
				if err := vm.Set(name, value); err != nil {
					return nil, err
				}
			}
			functionBindings(e.functions, func(name string, fn any) {
				_ = vm.Set(name, fn)
			})
			value, err := vm.RunProgram(program)
			if err != nil {
				return nil, err
			}
			return value.Export(), nil
		},
	}, nil
}

func compileJS(expression string) (*goja.Program, error) {
	return goja.Compile("rule", fmt.Sprintf("(function(){ return (%s); })()", expression), false)
}

func jsEvaluatorAvailable() bool {
	return true
}

package varref

import "fmt"

const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// Evaluator compiles and runs type rule expressions. Expressions see the
// RuleContext as the variables source, field, id, identifier, metadata and
// now, plus any registered functions.
type Evaluator interface {
	Engine() string
	Evaluate(ctx RuleContext, expression string) (any, error)
	Compile(expression string) (CompiledRule, error)
}

// CompiledRule is an expression compiled once and run per context.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// EvaluatorOption configures any of the evaluators.
type EvaluatorOption func(*evaluatorConfig)

type evaluatorConfig struct {
	cache     ProgramCache
	functions *FunctionRegistry
}

// EvaluatorWithProgramCache shares compiled programs through cache. Keys
// are prefixed with the engine name.
func EvaluatorWithProgramCache(cache ProgramCache) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.cache = cache
	}
}

// EvaluatorWithFunctions exposes a copy of functions to expressions.
func EvaluatorWithFunctions(functions *FunctionRegistry) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.functions = functions.Clone()
	}
}

func applyEvaluatorOptions(opts []EvaluatorOption) evaluatorConfig {
	var cfg evaluatorConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// cachedProgram returns the program for expression, compiling and caching
// it on a miss. A cached value of the wrong type is recompiled.
func cachedProgram[P any](cache ProgramCache, engine, expression string, compile func(string) (P, error)) (P, error) {
	key := engine + ":" + expression
	if cache != nil {
		if cached, ok := cache.Get(key); ok {
			if program, ok := cached.(P); ok {
				return program, nil
			}
		}
	}
	program, err := compile(expression)
	if err != nil {
		var zero P
		return zero, wrapEvaluationError(engine, expression, "", err)
	}
	if cache != nil {
		cache.Set(key, program)
	}
	return program, nil
}

// compiledRule runs a compiled program against a context.
type compiledRule struct {
	engine     string
	expression string
	run        func(ctx RuleContext) (any, error)
}

func (r compiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.run == nil {
		return nil, wrapEvaluatorError(r.engine, fmt.Errorf("compiled rule has no program"))
	}
	ctx = ctx.withDefaults()
	out, err := r.run(ctx)
	if err != nil {
		return nil, wrapEvaluationError(r.engine, r.expression, ctx.label(), err)
	}
	return out, nil
}

// compileAndRun backs Evaluator.Evaluate for every engine.
func compileAndRun(e Evaluator, ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func checkExpression(engine, expression string) error {
	if expression == "" {
		return wrapEvaluatorError(engine, ErrEmptyExpression)
	}
	return nil
}

// functionBindings exposes functions by name and through call(name, ...).
func functionBindings(functions *FunctionRegistry, set func(name string, fn any)) {
	if functions == nil {
		return
	}
	set("call", func(name string, args ...any) (any, error) {
		return functions.Call(name, args...)
	})
	for _, name := range functions.Names() {
		name := name
		set(name, func(args ...any) (any, error) {
			return functions.Call(name, args...)
		})
	}
}

package varref

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// RuleMatcher decides whether a type rule applies to a source.
type RuleMatcher interface {
	Match(ctx RuleContext) (bool, error)
}

// RuleMatcherFunc adapts a function to RuleMatcher.
type RuleMatcherFunc func(ctx RuleContext) (bool, error)

// Match implements RuleMatcher.
func (f RuleMatcherFunc) Match(ctx RuleContext) (bool, error) {
	if f == nil {
		return false, nil
	}
	return f(ctx)
}

// TypeRule maps a heuristic match on an identifier to a variable type. Rules
// are only consulted when the registry cannot type the identifier.
type TypeRule struct {
	Name  string
	Type  VariableType
	Match RuleMatcher
}

// DefaultTypeRules returns the built-in ordered keyword table.
func DefaultTypeRules() []TypeRule {
	return []TypeRule{
		{Name: "workflow", Type: TypeWorkflow, Match: ContainsAny("工作流", "workflow")},
		{Name: "task", Type: TypeTask, Match: ContainsAny("任务", "task")},
		{Name: "npc", Type: TypeNPC, Match: ContainsAny("npc")},
		{Name: "file", Type: TypeFile, Match: ContainsAny("文件", "file")},
	}
}

// ContainsAny matches when the source name contains any keyword, ignoring
// case.
func ContainsAny(keywords ...string) RuleMatcher {
	folded := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" {
			folded = append(folded, keyword)
		}
	}
	return RuleMatcherFunc(func(ctx RuleContext) (bool, error) {
		source := strings.ToLower(ctx.Source)
		for _, keyword := range folded {
			if strings.Contains(source, keyword) {
				return true, nil
			}
		}
		return false, nil
	})
}

// ExpressionMatcher matches when expression evaluates to true. The
// expression is compiled on first use.
func ExpressionMatcher(evaluator Evaluator, expression string) RuleMatcher {
	return &expressionMatcher{evaluator: evaluator, expression: expression}
}

type expressionMatcher struct {
	evaluator  Evaluator
	expression string

	once     sync.Once
	compiled CompiledRule
	err      error
}

func (m *expressionMatcher) Match(ctx RuleContext) (bool, error) {
	if m.evaluator == nil {
		return false, ErrNoEvaluator
	}
	m.once.Do(func() {
		m.compiled, m.err = m.evaluator.Compile(m.expression)
	})
	if m.err != nil {
		return false, m.err
	}
	result, err := m.compiled.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	matched, ok := result.(bool)
	if !ok {
		return false, &EvaluationError{
			Expr: m.expression,
			Rule: ctx.label(),
			Err:  fmt.Errorf("expected bool result, got %T", result),
		}
	}
	return matched, nil
}

// InferType applies the default keyword table to a source name and falls
// back to TypeCustom.
func InferType(source string) VariableType {
	c := typeClassifier{rules: DefaultTypeRules(), log: newComponentLogger(nil, "rules"), now: time.Now}
	if t, ok := c.classify(RuleContext{Source: source}); ok {
		return t
	}
	return TypeCustom
}

type typeClassifier struct {
	rules []TypeRule
	log   componentLogger
	now   func() time.Time
}

// classify returns the type of the first matching rule. Failing rules are
// logged and skipped.
func (c typeClassifier) classify(ctx RuleContext) (VariableType, bool) {
	if ctx.Now == nil && c.now != nil {
		now := c.now()
		ctx.Now = &now
	}
	for _, rule := range c.rules {
		if rule.Match == nil {
			continue
		}
		started := time.Now()
		matched, err := rule.Match.Match(ctx)
		if err != nil {
			err = wrapEvaluationError("", "", rule.Name, err)
			c.log.timed(LevelWarn, "type rule failed", started, err, map[string]any{
				"rule":   rule.Name,
				"source": ctx.Source,
			})
			continue
		}
		if matched {
			return rule.Type, true
		}
	}
	return "", false
}

// buildTypeRules turns declarative rule configs into rules. Invalid entries
// are logged and dropped.
func buildTypeRules(cfg settings, configs []TypeRuleConfig) []TypeRule {
	log := newComponentLogger(cfg.logger, "rules")
	rules := make([]TypeRule, 0, len(configs))
	for _, rc := range configs {
		rule, err := rc.build(cfg)
		if err != nil {
			log.warn("type rule skipped", err, map[string]any{"rule": rc.Name})
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}

func (rc TypeRuleConfig) build(cfg settings) (TypeRule, error) {
	rule := TypeRule{Name: rc.Name, Type: ParseVariableType(rc.Type)}
	if rule.Type == TypeUnknown && !strings.EqualFold(strings.TrimSpace(rc.Type), string(TypeUnknown)) {
		return TypeRule{}, fmt.Errorf("varref: rule %q has invalid type %q", rc.Name, rc.Type)
	}
	switch {
	case strings.TrimSpace(rc.Expr) != "":
		evaluator, err := cfg.evaluatorFor(rc.Engine)
		if err != nil {
			return TypeRule{}, err
		}
		rule.Match = ExpressionMatcher(evaluator, rc.Expr)
	case len(rc.Contains) > 0:
		rule.Match = ContainsAny(rc.Contains...)
	default:
		return TypeRule{}, fmt.Errorf("varref: rule %q needs contains or expr", rc.Name)
	}
	return rule, nil
}

func (cfg settings) evaluatorFor(engine string) (Evaluator, error) {
	functions := cfg.functions
	if functions == nil {
		functions = DefaultFunctions()
	}
	opts := []EvaluatorOption{EvaluatorWithProgramCache(cfg.programCache), EvaluatorWithFunctions(functions)}
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr:
		return NewExprEvaluator(opts...), nil
	case EngineCEL:
		return NewCELEvaluator(opts...), nil
	case EngineJS, "javascript":
		if !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("js engine needs the js_eval build tag: %w", ErrNoEvaluator)
		}
		return NewJSEvaluator(opts...), nil
	default:
		return nil, fmt.Errorf("varref: unknown rule engine %q", engine)
	}
}

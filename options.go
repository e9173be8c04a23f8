package varref

import (
	"time"

	"github.com/goliatone/go-varref/grammar"
	"github.com/goliatone/go-varref/pkg/activity"
)

const (
	// DefaultShortIDLength is the short-id length written by ToDisplayForm.
	DefaultShortIDLength = grammar.MinShortIDLength
	// DefaultDebounceWindow coalesces editor re-synchronisation requests.
	DefaultDebounceWindow = 200 * time.Millisecond
)

// Option configures registries, translators, resolvers, converters and
// editors. Components ignore options that do not apply to them.
type Option func(*settings)

type settings struct {
	logger         Logger
	shortIDLength  int
	debounceWindow time.Duration
	markup         MarkupConfig
	typeRules      []TypeRule
	broadcaster    *Broadcaster
	activityHooks  activity.Hooks
	activityConfig activity.Config
	activityActor  activity.Actor
	typeRuleSpecs  []TypeRuleConfig
	programCache   ProgramCache
	functions      *FunctionRegistry
	now            func() time.Time
}

func applyOptions(opts []Option) settings {
	cfg := settings{
		logger:         noopLogger{},
		shortIDLength:  DefaultShortIDLength,
		debounceWindow: DefaultDebounceWindow,
		markup:         DefaultMarkupConfig(),
		typeRules:      DefaultTypeRules(),
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithShortIDLength sets the short-id length used when rewriting system
// identifiers into display form. Values are clamped to 4..6.
func WithShortIDLength(n int) Option {
	return func(cfg *settings) {
		if n < grammar.MinShortIDLength {
			n = grammar.MinShortIDLength
		}
		if n > grammar.MaxShortIDLength {
			n = grammar.MaxShortIDLength
		}
		cfg.shortIDLength = n
	}
}

// WithDebounceWindow sets the editor re-synchronisation window.
func WithDebounceWindow(window time.Duration) Option {
	return func(cfg *settings) {
		if window > 0 {
			cfg.debounceWindow = window
		}
	}
}

// WithMarkup overrides the variable-tag markers recognised and written by
// the converter.
func WithMarkup(markup MarkupConfig) Option {
	return func(cfg *settings) {
		cfg.markup = markup.withDefaults()
	}
}

// WithTypeRules replaces the ordered heuristic type rules.
func WithTypeRules(rules ...TypeRule) Option {
	return func(cfg *settings) {
		cfg.typeRules = append([]TypeRule(nil), rules...)
	}
}

// WithBroadcaster publishes identifier rewrites on b.
func WithBroadcaster(b *Broadcaster) Option {
	return func(cfg *settings) {
		cfg.broadcaster = b
	}
}

// WithActivityHooks forwards notifications to activity hooks. Hooks are
// cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks, config activity.Config) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *settings) {
		cfg.activityHooks = normalized
		cfg.activityConfig = config
	}
}

// WithActivityActor sets the identity fields stamped on activity events.
func WithActivityActor(actor activity.Actor) Option {
	return func(cfg *settings) {
		actor.Recipients = append([]string(nil), actor.Recipients...)
		cfg.activityActor = actor
	}
}

// WithClock overrides the time source used for rule contexts and events.
func WithClock(now func() time.Time) Option {
	return func(cfg *settings) {
		if now != nil {
			cfg.now = now
		}
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}

// effectiveTypeRules puts configured rules ahead of the programmatic ones.
func (cfg settings) effectiveTypeRules() []TypeRule {
	if len(cfg.typeRuleSpecs) == 0 {
		return cfg.typeRules
	}
	rules := buildTypeRules(cfg, cfg.typeRuleSpecs)
	return append(rules, cfg.typeRules...)
}

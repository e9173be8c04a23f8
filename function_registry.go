package varref

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Function is callable from type rule expressions.
type Function func(args ...any) (any, error)

// functionName is the identifier shape every expression engine accepts.
var functionName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// FunctionRegistry holds the functions type rule expressions may call.
// Names are case-insensitive. It is safe for concurrent use; a nil registry
// has no functions.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]Function)}
}

// DefaultFunctions returns a registry with the helpers rules get when none
// is configured:
//
//	fold(s)  s with width, compatibility forms, case and whitespace folded,
//	         as used for fuzzy source/field lookups
//	han(s)   whether s contains a Han ideograph
func DefaultFunctions() *FunctionRegistry {
	r := NewFunctionRegistry()
	_ = r.Register("fold", func(args ...any) (any, error) {
		s, err := stringArg("fold", args)
		if err != nil {
			return nil, err
		}
		return fuzzyKey(s), nil
	})
	_ = r.Register("han", func(args ...any) (any, error) {
		s, err := stringArg("han", args)
		if err != nil {
			return nil, err
		}
		return strings.IndexFunc(s, func(r rune) bool { return unicode.Is(unicode.Han, r) }) >= 0, nil
	})
	return r
}

// Register adds fn under name. Names must be identifiers and unique.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := strings.ToLower(strings.TrimSpace(name))
	switch {
	case fn == nil:
		return fmt.Errorf("varref: function %q is nil", name)
	case key == "":
		return fmt.Errorf("varref: function name must not be empty")
	case key == "call" || !functionName.MatchString(key):
		return fmt.Errorf("varref: invalid function name %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("varref: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Call runs the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	var fn Function
	if r != nil {
		r.mu.RLock()
		fn = r.functions[strings.ToLower(strings.TrimSpace(name))]
		r.mu.RUnlock()
	}
	if fn == nil {
		return nil, fmt.Errorf("varref: function %q not registered", name)
	}
	return fn(args...)
}

// Names lists the registered names in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Clone returns an independent copy. Cloning nil yields nil.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewFunctionRegistry()
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

// WithFunctionRegistry replaces the functions available to expression type
// rules, defaults included.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *settings) {
		if registry != nil {
			cfg.functions = registry.Clone()
		}
	}
}

// WithCustomFunction adds fn to the functions available to expression type
// rules, on top of DefaultFunctions. Invalid or duplicate names are
// ignored.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *settings) {
		if cfg.functions == nil {
			cfg.functions = DefaultFunctions()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

func stringArg(fn string, args []any) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("varref: %s expects one argument, got %d", fn, len(args))
	}
	s, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("varref: %s expects a string, got %T", fn, args[0])
	}
	return s, nil
}

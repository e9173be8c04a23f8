package activity

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Event is one activity record: an identifier rewrite or a catalog load.
// Verb, ObjectType and ObjectID are required; events missing any of them
// are dropped by Hooks.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Complete reports whether the required fields are set.
func (e Event) Complete() bool {
	return strings.TrimSpace(e.Verb) != "" &&
		strings.TrimSpace(e.ObjectType) != "" &&
		strings.TrimSpace(e.ObjectID) != ""
}

// ActivityHook receives normalized events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify implements ActivityHook.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// VerbFilter wraps hook so that it only sees the listed verbs. A nil hook
// stays nil.
func VerbFilter(hook ActivityHook, verbs ...string) ActivityHook {
	if hook == nil {
		return nil
	}
	allowed := verbSet(verbs)
	return HookFunc(func(ctx context.Context, event Event) error {
		if _, ok := allowed[strings.TrimSpace(event.Verb)]; !ok {
			return nil
		}
		return hook.Notify(ctx, event)
	})
}

// Hooks notifies every hook in order.
type Hooks []ActivityHook

// Enabled reports whether there is at least one hook.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes event once and hands it to each hook. Incomplete events
// are dropped silently. Every hook runs even when an earlier one fails; the
// failures are joined, each tagged with the hook position.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 || !event.Complete() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	event = NormalizeEvent(event)

	var errs []error
	for i, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("activity hook %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// NormalizeEvent trims the string fields, copies Metadata and Recipients so
// hooks cannot alias the caller's data, and stamps OccurredAt when unset.
func NormalizeEvent(event Event) Event {
	for _, field := range []*string{
		&event.Verb, &event.ActorID, &event.UserID, &event.TenantID,
		&event.ObjectType, &event.ObjectID, &event.Channel, &event.DefinitionCode,
	} {
		*field = strings.TrimSpace(*field)
	}
	event.Metadata = cloneMap(event.Metadata)
	if len(event.Recipients) > 0 {
		event.Recipients = slices.Clone(event.Recipients)
	} else {
		event.Recipients = nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return event
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}

func verbSet(verbs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(verbs))
	for _, verb := range verbs {
		if verb = strings.TrimSpace(verb); verb != "" {
			set[verb] = struct{}{}
		}
	}
	return set
}

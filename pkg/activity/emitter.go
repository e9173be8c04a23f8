package activity

import (
	"context"
	"strings"
)

// DefaultChannel is stamped on events emitted without a channel.
const DefaultChannel = "varref"

// Config is the activity section of the varref config file.
type Config struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Channel string `json:"channel" yaml:"channel"`
	// Verbs limits emission to the listed verbs. Empty emits every verb.
	Verbs []string `json:"verbs" yaml:"verbs"`
}

// Emitter sends events to hooks when enabled, applying the configured
// channel and verb allow-list.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	verbs   map[string]struct{}
}

// NewEmitter drops nil hooks. An emitter without hooks is disabled
// whatever cfg says.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	var live Hooks
	for _, hook := range hooks {
		if hook != nil {
			live = append(live, hook)
		}
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	e := &Emitter{
		hooks:   live,
		enabled: cfg.Enabled && len(live) > 0,
		channel: channel,
	}
	if len(cfg.Verbs) > 0 {
		e.verbs = verbSet(cfg.Verbs)
	}
	return e
}

// Enabled reports whether Emit will reach any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Channel returns the channel applied to events without one.
func (e *Emitter) Channel() string {
	if e == nil {
		return DefaultChannel
	}
	return e.channel
}

// Emit forwards event to the hooks. Disabled emitters and filtered verbs
// return nil.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if e.verbs != nil {
		if _, ok := e.verbs[strings.TrimSpace(event.Verb)]; !ok {
			return nil
		}
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}

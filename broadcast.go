package varref

import (
	"context"
	"sync"

	"github.com/goliatone/go-varref/pkg/activity"
)

// EventIdentifiersUpdated names the notification raised when identifiers in
// a text were rewritten.
const EventIdentifiersUpdated = activity.VerbIdentifiersUpdated

// Direction tells which translation produced an update.
type Direction string

const (
	DirectionToSystem  Direction = "to_system"
	DirectionToDisplay Direction = "to_display"
)

// IdentifiersUpdate is the payload of EventIdentifiersUpdated.
type IdentifiersUpdate struct {
	OriginalText string    `json:"original_text"`
	UpdatedText  string    `json:"updated_text"`
	Direction    Direction `json:"direction,omitempty"`
}

// Broadcaster delivers identifier updates to subscribers and, when
// configured, to activity hooks. The zero value is not usable; use
// NewBroadcaster.
type Broadcaster struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    []subscriber
	emitter *activity.Emitter
	actor   activity.Actor
	log     componentLogger
	cfg     settings
}

type subscriber struct {
	id uint64
	fn func(context.Context, IdentifiersUpdate)
}

// NewBroadcaster builds a broadcaster. WithActivityHooks enables activity
// emission; WithActivityActor stamps identity fields on emitted events.
func NewBroadcaster(opts ...Option) *Broadcaster {
	cfg := applyOptions(opts)
	return &Broadcaster{
		emitter: activity.NewEmitter(cfg.activityHooks, cfg.activityConfig),
		actor:   cfg.activityActor,
		log:     newComponentLogger(cfg.logger, "broadcast"),
		cfg:     cfg,
	}
}

// Subscribe registers fn. Subscribers run synchronously, in registration
// order, on the publishing goroutine. The returned func unsubscribes.
func (b *Broadcaster) Subscribe(fn func(context.Context, IdentifiersUpdate)) (cancel func()) {
	if b == nil || fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, sub := range b.subs {
				if sub.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers update to every subscriber and emits the matching
// activity event. Updates whose text did not change are dropped.
func (b *Broadcaster) Publish(ctx context.Context, update IdentifiersUpdate) {
	if b == nil || update.OriginalText == update.UpdatedText {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	b.mu.RLock()
	subs := append([]subscriber(nil), b.subs...)
	b.mu.RUnlock()
	for _, sub := range subs {
		sub.fn(ctx, update)
	}

	b.log.debug("identifiers updated", map[string]any{
		"direction":   string(update.Direction),
		"subscribers": len(subs),
	})
	if !b.emitter.Enabled() {
		return
	}
	event := activity.BuildIdentifiersUpdatedEvent(activity.IdentifiersEventInput{
		Actor:        b.actor,
		OriginalText: update.OriginalText,
		UpdatedText:  update.UpdatedText,
		Direction:    string(update.Direction),
		OccurredAt:   b.cfg.now(),
	})
	if err := b.emitter.Emit(ctx, event); err != nil {
		b.log.warn("activity emit failed", err, map[string]any{"verb": event.Verb})
	}
}

// Subscribers reports the number of registered subscribers.
func (b *Broadcaster) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// catalogRefreshed emits the catalog activity event. Subscribers are not
// notified.
func (b *Broadcaster) catalogRefreshed(ctx context.Context, records, entries int) {
	if b == nil || !b.emitter.Enabled() {
		return
	}
	event := activity.BuildCatalogRefreshedEvent(activity.CatalogEventInput{
		Actor:      b.actor,
		Records:    records,
		Entries:    entries,
		OccurredAt: b.cfg.now(),
	})
	if err := b.emitter.Emit(ctx, event); err != nil {
		b.log.warn("activity emit failed", err, map[string]any{"verb": event.Verb})
	}
}

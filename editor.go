package varref

import (
	"context"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/goliatone/go-varref/internal/debounce"
)

// Editor holds one document in its three projections and exposes the
// operations an editing surface binds to. It is safe for concurrent use.
type Editor struct {
	reg        *Registry
	translator *Translator
	resolver   *Resolver
	converter  *Converter
	shortIDLen int
	debouncer  *debounce.Debouncer
	log        componentLogger

	mu       sync.Mutex
	content  ContentTriple
	unfollow []func()
}

// NewEditor returns an empty editor backed by reg. A nil registry leaves
// every identifier unresolved.
func NewEditor(reg *Registry, opts ...Option) *Editor {
	cfg := applyOptions(opts)
	var src RecordSource
	if reg != nil {
		src = reg
	}
	return &Editor{
		reg:        reg,
		translator: NewTranslator(src, opts...),
		resolver:   NewResolver(src, opts...),
		converter:  NewConverter(src, opts...),
		shortIDLen: cfg.shortIDLength,
		debouncer:  debounce.New(cfg.debounceWindow),
		log:        newComponentLogger(cfg.logger, "editor"),
	}
}

// InsertVariable appends the display identifier of rec to the document,
// separated from preceding text by a space.
func (e *Editor) InsertVariable(ctx context.Context, rec VariableRecord) ContentTriple {
	identifier := rec.DisplayIdentifier(e.shortIDLen)

	raw := e.RawContent()
	if raw != "" && !endsWithSpace(raw) {
		raw += " "
	}
	triple := e.converter.Triple(ctx, raw+identifier)
	e.store(triple)
	e.log.debug("variable inserted", map[string]any{"identifier": identifier})
	return triple
}

// ParseExternalContent replaces the document with pasted or programmatic
// input, which may be raw text, HTML or a mix. Identifiers are brought to
// their current display form before rendering.
func (e *Editor) ParseExternalContent(ctx context.Context, input string) ContentTriple {
	raw := e.converter.ExtractRaw(input)
	display := e.translator.ToDisplayForm(ctx, raw)
	triple := e.converter.Triple(ctx, display)
	e.store(triple)
	return triple
}

// RawContent returns the raw identifier text.
func (e *Editor) RawContent() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.content.RawText
}

// StorageContent returns the raw text with identifiers in system form, the
// shape persisted by API callers.
func (e *Editor) StorageContent(ctx context.Context) string {
	return e.translator.ToSystemForm(ctx, e.RawContent())
}

// ResolvedContent clears the registry cache and returns the raw text with
// every identifier replaced by its current value.
func (e *Editor) ResolvedContent(ctx context.Context) string {
	if e.reg != nil {
		e.reg.ClearCache()
	}
	return e.resolver.Resolve(ctx, e.RawContent())
}

// RichContent returns all three projections.
func (e *Editor) RichContent() ContentTriple {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.content
}

// UpdateRichContent replaces the document from a triple. HTML wins when
// present, otherwise the raw text is used; the other projections are
// recomputed.
func (e *Editor) UpdateRichContent(ctx context.Context, content ContentTriple) ContentTriple {
	raw := content.RawText
	if strings.TrimSpace(content.HTML) != "" {
		raw = e.converter.ExtractRaw(content.HTML)
	}
	triple := e.converter.Triple(ctx, raw)
	e.store(triple)
	return triple
}

// ScheduleSync parses input after the debounce window. Calls arriving
// within the window replace each other; only the last input is parsed.
func (e *Editor) ScheduleSync(ctx context.Context, input string) {
	e.debouncer.Trigger(func() {
		e.ParseExternalContent(ctx, input)
	})
}

// Flush runs a scheduled sync now. It reports whether one was pending.
func (e *Editor) Flush() bool {
	return e.debouncer.Flush()
}

// Follow adopts display-form rewrites published on b for the text this
// editor currently holds. The returned func stops following.
func (e *Editor) Follow(b *Broadcaster) (cancel func()) {
	cancel = b.Subscribe(func(ctx context.Context, update IdentifiersUpdate) {
		if update.Direction != DirectionToDisplay || e.RawContent() != update.OriginalText {
			return
		}
		triple := e.converter.Triple(ctx, update.UpdatedText)

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.content.RawText != update.OriginalText {
			return
		}
		e.content = triple
		e.log.debug("followed identifier update", nil)
	})
	e.mu.Lock()
	e.unfollow = append(e.unfollow, cancel)
	e.mu.Unlock()
	return cancel
}

// Close drops any scheduled sync and stops following broadcasters.
func (e *Editor) Close() {
	e.debouncer.Close()
	e.mu.Lock()
	unfollow := e.unfollow
	e.unfollow = nil
	e.mu.Unlock()
	for _, cancel := range unfollow {
		cancel()
	}
}

func (e *Editor) store(triple ContentTriple) {
	e.mu.Lock()
	e.content = triple
	e.mu.Unlock()
}

func endsWithSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(r)
}

package varref

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-varref/grammar"
)

// Translator rewrites identifiers between display and system form.
// Identifiers it cannot resolve are left untouched.
type Translator struct {
	src         RecordSource
	shortIDLen  int
	broadcaster *Broadcaster
	log         componentLogger
}

// NewTranslator returns a translator reading records from src. Rewrites are
// published on the broadcaster set with WithBroadcaster.
func NewTranslator(src RecordSource, opts ...Option) *Translator {
	cfg := applyOptions(opts)
	return &Translator{
		src:         src,
		shortIDLen:  cfg.shortIDLength,
		broadcaster: cfg.broadcaster,
		log:         newComponentLogger(cfg.logger, "translator"),
	}
}

// ToSystemForm rewrites display identifiers as @gv_<id>_<field>. System
// identifiers and unresolved display identifiers are kept.
func (t *Translator) ToSystemForm(ctx context.Context, text string) string {
	return t.translate(ctx, text, DirectionToSystem, t.systemSpan)
}

// ToDisplayForm rewrites system identifiers as @<source>.<field>#<short> and
// refreshes display identifiers whose source was renamed, keeping field and
// short id. Records of type custom keep the label the author wrote.
func (t *Translator) ToDisplayForm(ctx context.Context, text string) string {
	return t.translate(ctx, text, DirectionToDisplay, t.displaySpan)
}

// spanRewriter returns the replacement for id. rest is the text following
// the span.
type spanRewriter func(s *Snapshot, id grammar.Identifier, rest string) (string, bool)

// translate rewrites the normalized text. When nothing is rewritten the
// input is returned as given.
func (t *Translator) translate(ctx context.Context, text string, dir Direction, rewrite spanRewriter) string {
	if !strings.Contains(text, "@") {
		return text
	}
	started := time.Now()
	normalized, ids := grammar.Tokenize(text)
	if len(ids) == 0 {
		return text
	}
	snap := snapshotOf(ctx, t.src)

	var b strings.Builder
	b.Grow(len(normalized) + len(ids)*8)
	last, rewritten := 0, 0
	for _, id := range ids {
		b.WriteString(normalized[last:id.Start])
		if out, ok := rewrite(snap, id, normalized[id.End:]); ok && out != id.Match {
			b.WriteString(out)
			rewritten++
		} else {
			b.WriteString(id.Match)
		}
		last = id.End
	}
	if rewritten == 0 {
		return text
	}
	b.WriteString(normalized[last:])
	out := b.String()

	t.log.timed(LevelDebug, "identifiers translated", started, nil, map[string]any{
		"direction":   string(dir),
		"identifiers": len(ids),
		"rewritten":   rewritten,
	})
	if out != text {
		t.broadcaster.Publish(ctx, IdentifiersUpdate{OriginalText: text, UpdatedText: out, Direction: dir})
	}
	return out
}

// systemSpan keeps the display form when the system form would run into
// the following text and change meaning, e.g. "@npc.name.x".
func (t *Translator) systemSpan(s *Snapshot, id grammar.Identifier, rest string) (string, bool) {
	if s == nil || id.IsSystem() || grammar.ExtendsAsSource(rest) {
		return "", false
	}
	rec, _, ok := matchIdentifier(s, id)
	if !ok {
		rec, ok = s.first(s.byFuzzy, pairKey(fuzzyKey(id.Source), fuzzyKey(id.Field)))
	}
	if !ok {
		return "", false
	}
	return grammar.FormatSystem(rec.ID, rec.Field), true
}

func (t *Translator) displaySpan(s *Snapshot, id grammar.Identifier, _ string) (string, bool) {
	if id.IsSystem() {
		rec, ok := s.FindSystem(id.ID, id.Field)
		if !ok {
			return "", false
		}
		return grammar.FormatDisplay(rec.SourceName, rec.Field, grammar.ShortID(rec.ID, t.shortIDLen)), true
	}

	rec, ok := t.resolveDisplay(s, id)
	if !ok || rec.IsCustom() || rec.SourceName == id.Source {
		return "", false
	}
	return grammar.FormatDisplay(rec.SourceName, id.Field, id.ShortID), true
}

// resolveDisplay prefers the short id, since it survives source renames,
// then falls back to the written source and field.
func (t *Translator) resolveDisplay(s *Snapshot, id grammar.Identifier) (VariableRecord, bool) {
	if s == nil {
		return VariableRecord{}, false
	}
	if id.ShortID != "" {
		if rec, ok := matchShortID(s, id); ok {
			return rec, true
		}
	}
	return s.FindBySourceField(id.Source, id.Field)
}

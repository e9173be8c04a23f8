package varref

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-varref/grammar"
)

// Resolver substitutes identifiers with their current values.
type Resolver struct {
	src RecordSource
	log componentLogger
}

// NewResolver returns a resolver reading records from src.
func NewResolver(src RecordSource, opts ...Option) *Resolver {
	cfg := applyOptions(opts)
	return &Resolver{src: src, log: newComponentLogger(cfg.logger, "resolver")}
}

// Resolve replaces every identifier in text with its record value.
// Identifiers that match no record are left verbatim; the result is always
// defined.
func (r *Resolver) Resolve(ctx context.Context, text string) string {
	out, _ := r.ResolveWithTrace(ctx, text)
	return out
}

// ResolveWithTrace resolves text and reports the outcome per identifier.
// Resolution runs on the normalized text, so touching identifiers come back
// separated by a space.
func (r *Resolver) ResolveWithTrace(ctx context.Context, text string) (string, Trace) {
	trace := Trace{Input: text, Normalized: text, Output: text}
	if !strings.Contains(text, "@") {
		return text, trace
	}
	started := time.Now()
	normalized, ids := grammar.Tokenize(text)
	trace.Normalized = normalized
	if len(ids) == 0 {
		trace.Output = normalized
		return normalized, trace
	}

	snap := snapshotOf(ctx, r.src)
	var b strings.Builder
	b.Grow(len(normalized))
	last := 0
	for _, id := range ids {
		rec, strategy, ok := matchIdentifier(snap, id)
		prov := Provenance{
			Identifier: id.Match,
			Kind:       id.Kind,
			Start:      id.Start,
			End:        id.End,
			Found:      ok,
		}
		b.WriteString(normalized[last:id.Start])
		if ok {
			prov.Strategy = strategy
			prov.RecordID = rec.ID
			prov.Value = rec.Value
			b.WriteString(rec.Value)
		} else {
			b.WriteString(id.Match)
		}
		last = id.End
		trace.Identifiers = append(trace.Identifiers, prov)
	}
	b.WriteString(normalized[last:])
	trace.Output = b.String()

	r.log.timed(LevelDebug, "identifiers resolved", started, nil, map[string]any{
		"identifiers": len(ids),
		"resolved":    trace.Resolved(),
	})
	return trace.Output, trace
}

func snapshotOf(ctx context.Context, src RecordSource) *Snapshot {
	if src == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return src.Snapshot(ctx)
}

package varref

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// RecordSource hands out the records lookups run against. *Registry loads
// lazily; *Snapshot returns itself.
type RecordSource interface {
	Snapshot(ctx context.Context) *Snapshot
}

// Snapshot is an immutable, indexed view of registry records in catalog
// order. A nil *Snapshot behaves as an empty one.
type Snapshot struct {
	records    []VariableRecord
	byID       map[string]int
	byPair     map[string][]int
	byFold     map[string][]int
	byFuzzy    map[string][]int
	bySourceID map[string][]int
	compactIDs []string
	log        componentLogger
}

// NewSnapshot indexes records. Records sharing an id keep the first
// occurrence.
func NewSnapshot(records []VariableRecord, opts ...Option) *Snapshot {
	cfg := applyOptions(opts)
	return newSnapshot(mergeRecords(nil, records), newComponentLogger(cfg.logger, "registry"))
}

func newSnapshot(records []VariableRecord, log componentLogger) *Snapshot {
	s := &Snapshot{
		records:    records,
		byID:       make(map[string]int, len(records)),
		byPair:     make(map[string][]int, len(records)),
		byFold:     make(map[string][]int, len(records)),
		byFuzzy:    make(map[string][]int, len(records)),
		bySourceID: make(map[string][]int),
		compactIDs: make([]string, len(records)),
		log:        log,
	}
	for i, record := range records {
		s.byID[record.ID] = i
		s.byPair[pairKey(record.SourceName, record.Field)] = append(s.byPair[pairKey(record.SourceName, record.Field)], i)
		fold := pairKey(strings.ToLower(record.SourceName), strings.ToLower(record.Field))
		s.byFold[fold] = append(s.byFold[fold], i)
		fz := pairKey(fuzzyKey(record.SourceName), fuzzyKey(record.Field))
		s.byFuzzy[fz] = append(s.byFuzzy[fz], i)
		if record.SourceID != "" {
			s.bySourceID[record.SourceID] = append(s.bySourceID[record.SourceID], i)
		}
		s.compactIDs[i] = compactID(record.ID)
	}
	return s
}

// Snapshot implements RecordSource.
func (s *Snapshot) Snapshot(context.Context) *Snapshot {
	return s
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Records returns a copy of the records in catalog order.
func (s *Snapshot) Records() []VariableRecord {
	if s == nil || len(s.records) == 0 {
		return []VariableRecord{}
	}
	out := make([]VariableRecord, len(s.records))
	copy(out, s.records)
	return out
}

// FindByID returns the record with exactly this id.
func (s *Snapshot) FindByID(id string) (VariableRecord, bool) {
	if s == nil || id == "" {
		return VariableRecord{}, false
	}
	i, ok := s.byID[id]
	if !ok {
		return VariableRecord{}, false
	}
	return s.records[i], true
}

// FindBySourceField looks up a (source, field) pair: exact match first, then
// case-insensitive, then a fuzzy match that also ignores whitespace and
// Unicode width/compatibility differences.
func (s *Snapshot) FindBySourceField(source, field string) (VariableRecord, bool) {
	if s == nil {
		return VariableRecord{}, false
	}
	if rec, ok := s.first(s.byPair, pairKey(source, field)); ok {
		return rec, true
	}
	if rec, ok := s.first(s.byFold, pairKey(strings.ToLower(source), strings.ToLower(field))); ok {
		return rec, true
	}
	return s.first(s.byFuzzy, pairKey(fuzzyKey(source), fuzzyKey(field)))
}

// FindExact returns the first record whose source and field match exactly.
func (s *Snapshot) FindExact(source, field string) (VariableRecord, bool) {
	if s == nil {
		return VariableRecord{}, false
	}
	return s.first(s.byPair, pairKey(source, field))
}

// FindFold returns the first record whose source and field match ignoring
// case.
func (s *Snapshot) FindFold(source, field string) (VariableRecord, bool) {
	if s == nil {
		return VariableRecord{}, false
	}
	return s.first(s.byFold, pairKey(strings.ToLower(source), strings.ToLower(field)))
}

// FindByShortID returns the first record, in catalog order, whose id starts
// with shortID ignoring case and separators. When several records match the
// ambiguity is logged and the first one is still returned; content written
// against the catalog relies on that tie-break.
func (s *Snapshot) FindByShortID(shortID string) (VariableRecord, bool) {
	matches := s.shortIDMatches(shortID, -1)
	if len(matches) == 0 {
		return VariableRecord{}, false
	}
	if len(matches) > 1 {
		candidates := make([]string, len(matches))
		for i, idx := range matches {
			candidates[i] = s.records[idx].ID
		}
		s.log.warn("ambiguous short id", &AmbiguousShortIDError{ShortID: shortID, Candidates: candidates}, map[string]any{
			"short_id": shortID,
			"matches":  len(matches),
		})
	}
	return s.records[matches[0]], true
}

// shortIDMatches returns record indexes whose compact id starts with shortID.
// limit < 0 returns all matches.
func (s *Snapshot) shortIDMatches(shortID string, limit int) []int {
	if s == nil {
		return nil
	}
	prefix := compactID(shortID)
	if prefix == "" {
		return nil
	}
	var out []int
	for i, id := range s.compactIDs {
		if strings.HasPrefix(id, prefix) {
			out = append(out, i)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

// FindSystem resolves the id and field of a system identifier. The id is
// matched against record ids first (the field must agree when given), then
// against source ids together with the field.
func (s *Snapshot) FindSystem(id, field string) (VariableRecord, bool) {
	if s == nil || id == "" {
		return VariableRecord{}, false
	}
	if rec, ok := s.FindByID(id); ok && (field == "" || rec.Field == field) {
		return rec, true
	}
	for _, i := range s.bySourceID[id] {
		if field == "" || s.records[i].Field == field {
			return s.records[i], true
		}
	}
	return VariableRecord{}, false
}

// Search ranks records by fuzzy similarity of "source.field" to query and
// returns at most limit of them (all when limit <= 0).
func (s *Snapshot) Search(query string, limit int) []VariableRecord {
	if s == nil || len(s.records) == 0 {
		return nil
	}
	query = strings.TrimPrefix(strings.TrimSpace(query), "@")
	targets := make([]string, len(s.records))
	for i, record := range s.records {
		targets[i] = record.SourceName + "." + record.Field
	}
	ranks := fuzzy.RankFindNormalizedFold(query, targets)
	sort.Stable(ranks)
	if limit > 0 && len(ranks) > limit {
		ranks = ranks[:limit]
	}
	out := make([]VariableRecord, 0, len(ranks))
	for _, rank := range ranks {
		out = append(out, s.records[rank.OriginalIndex])
	}
	return out
}

func (s *Snapshot) first(index map[string][]int, key string) (VariableRecord, bool) {
	positions := index[key]
	if len(positions) == 0 {
		return VariableRecord{}, false
	}
	return s.records[positions[0]], true
}

func pairKey(source, field string) string {
	return source + "\x00" + field
}

// fuzzyKey folds width and compatibility forms, drops whitespace and lower
// cases.
func fuzzyKey(s string) string {
	s = norm.NFKC.String(width.Fold.String(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// compactID keeps the ASCII letters and digits of an id, lower cased, so a
// short id matches ids written with separators.
func compactID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

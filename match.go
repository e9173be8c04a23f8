package varref

import (
	"strings"

	"github.com/goliatone/go-varref/grammar"
)

// Strategy names the rule that matched an identifier to a record.
type Strategy string

const (
	// StrategyTriple matches source, field and short id exactly.
	StrategyTriple Strategy = "triple"
	// StrategyPair matches source and field exactly, ignoring the short id.
	StrategyPair Strategy = "pair"
	// StrategyPairFold matches source and field ignoring case.
	StrategyPairFold Strategy = "pair_fold"
	// StrategyShortID resolves the short id to a record with the same field.
	StrategyShortID Strategy = "short_id"
	// StrategySystemID matches the id of a system identifier.
	StrategySystemID Strategy = "system_id"
	// StrategyFuzzy matches source and field after Unicode and whitespace
	// folding. Only translation uses it.
	StrategyFuzzy Strategy = "fuzzy"
)

type matchFunc func(s *Snapshot, id grammar.Identifier) (VariableRecord, bool)

type matchRule struct {
	strategy Strategy
	match    matchFunc
}

// displayChain is evaluated in order; the first hit wins and ties inside a
// rule go to catalog order.
var displayChain = []matchRule{
	{strategy: StrategyTriple, match: matchTriple},
	{strategy: StrategyPair, match: func(s *Snapshot, id grammar.Identifier) (VariableRecord, bool) {
		return s.FindExact(id.Source, id.Field)
	}},
	{strategy: StrategyPairFold, match: func(s *Snapshot, id grammar.Identifier) (VariableRecord, bool) {
		return s.FindFold(id.Source, id.Field)
	}},
	{strategy: StrategyShortID, match: matchShortID},
}

// matchIdentifier resolves id against s.
func matchIdentifier(s *Snapshot, id grammar.Identifier) (VariableRecord, Strategy, bool) {
	if s == nil {
		return VariableRecord{}, "", false
	}
	if id.IsSystem() {
		rec, ok := s.FindSystem(id.ID, id.Field)
		return rec, StrategySystemID, ok
	}
	for _, rule := range displayChain {
		if rec, ok := rule.match(s, id); ok {
			return rec, rule.strategy, true
		}
	}
	return VariableRecord{}, "", false
}

func matchTriple(s *Snapshot, id grammar.Identifier) (VariableRecord, bool) {
	if id.ShortID == "" {
		return VariableRecord{}, false
	}
	prefix := compactID(id.ShortID)
	for _, i := range s.byPair[pairKey(id.Source, id.Field)] {
		if strings.HasPrefix(s.compactIDs[i], prefix) {
			return s.records[i], true
		}
	}
	return VariableRecord{}, false
}

// matchShortID picks the first record, in catalog order, whose id starts
// with the short id and whose field equals the identifier's field.
func matchShortID(s *Snapshot, id grammar.Identifier) (VariableRecord, bool) {
	if id.ShortID == "" {
		return VariableRecord{}, false
	}
	var found []int
	for _, i := range s.shortIDMatches(id.ShortID, -1) {
		if s.records[i].Field == id.Field {
			found = append(found, i)
		}
	}
	if len(found) == 0 {
		return VariableRecord{}, false
	}
	if len(found) > 1 {
		candidates := make([]string, len(found))
		for n, i := range found {
			candidates[n] = s.records[i].ID
		}
		s.log.warn("ambiguous short id", &AmbiguousShortIDError{ShortID: id.ShortID, Candidates: candidates}, map[string]any{
			"short_id": id.ShortID,
			"field":    id.Field,
		})
	}
	return s.records[found[0]], true
}

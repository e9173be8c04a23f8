package varref

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-varref/grammar"
	"github.com/goliatone/go-varref/pkg/catalog"
	"github.com/google/uuid"
)

// syntheticIDSpace namespaces ids derived for catalog entries without one.
var syntheticIDSpace = uuid.MustParse("6f1c8f0e-4a57-4d8e-9c2b-6a0d7c1e5b21")

// recordFromEntry normalizes a catalog entry. Source comes from the entry's
// source reference or its identifier; field from the identifier or name.
// Entries without a source or a field cannot be referenced and are rejected.
func recordFromEntry(entry catalog.Entry) (VariableRecord, bool) {
	source, field := splitIdentifier(entry.Identifier)
	if name := strings.TrimSpace(entry.SourceName()); name != "" {
		source = name
	}
	if field == "" {
		field = strings.TrimSpace(entry.Name)
	}
	if source == "" || field == "" {
		return VariableRecord{}, false
	}

	record := VariableRecord{
		ID:         strings.TrimSpace(entry.ID),
		SourceName: source,
		Field:      field,
		Type:       ParseVariableType(entry.Type),
		Value:      stringifyValue(entry.Value),
	}
	if entry.Source != nil {
		record.SourceID = strings.TrimSpace(entry.Source.ID)
	}
	if record.ID == "" {
		record.ID = syntheticID(source, field)
	}
	return record, true
}

// splitIdentifier reads "source.field", "@source.field" or a full display
// identifier with a short id.
func splitIdentifier(identifier string) (string, string) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", ""
	}
	if id, ok := grammar.Parse(identifier); ok && !id.IsSystem() {
		return id.Source, id.Field
	}
	source, field, ok := strings.Cut(strings.TrimPrefix(identifier, "@"), ".")
	if !ok {
		return "", ""
	}
	return strings.TrimSpace(source), strings.TrimSpace(field)
}

func syntheticID(source, field string) string {
	return uuid.NewSHA1(syntheticIDSpace, []byte(source+"\x00"+field)).String()
}

func stringifyValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool, int, int64, int32, uint, uint64:
		return fmt.Sprint(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}

// mergeRecords folds incoming into existing without duplicating ids:
// existing order is kept, known ids are replaced in place and new ids are
// appended. Within incoming the first occurrence of an id wins.
func mergeRecords(existing, incoming []VariableRecord) []VariableRecord {
	out := make([]VariableRecord, len(existing), len(existing)+len(incoming))
	copy(out, existing)
	index := make(map[string]int, len(out)+len(incoming))
	for i, record := range out {
		index[record.ID] = i
	}
	seen := make(map[string]struct{}, len(incoming))
	for _, record := range incoming {
		if _, dup := seen[record.ID]; dup {
			continue
		}
		seen[record.ID] = struct{}{}
		if i, ok := index[record.ID]; ok {
			out[i] = record
			continue
		}
		index[record.ID] = len(out)
		out = append(out, record)
	}
	return out
}

package grammar

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// FindIdentifiers returns every identifier in text, in order of appearance.
// The text is scanned as given; use Tokenize to apply the hygiene passes
// first.
func FindIdentifiers(text string) []Identifier {
	if !strings.Contains(text, "@") {
		return nil
	}

	runes := []rune(text)
	offsets := byteOffsets(text, len(runes))

	var out []Identifier
	m, err := IdentifierPattern.FindRunesMatch(runes)
	for m != nil && err == nil {
		out = append(out, identifierFromMatch(text, m, offsets))
		m, err = IdentifierPattern.FindNextMatch(m)
	}
	return out
}

// Tokenize normalizes text and returns the normalized text together with the
// identifiers found in it. Offsets refer to the normalized text.
func Tokenize(text string) (string, []Identifier) {
	normalized := Normalize(text)
	return normalized, FindIdentifiers(normalized)
}

func identifierFromMatch(text string, m *regexp2.Match, offsets []int) Identifier {
	start := offsets[m.Index]
	end := offsets[m.Index+m.Length]
	id := Identifier{
		Match: text[start:end],
		Start: start,
		End:   end,
	}
	if value, ok := group(m, "id"); ok {
		id.Kind = KindSystem
		id.ID = value
		id.Field, _ = group(m, "sfield")
		return id
	}
	id.Kind = KindDisplay
	id.Source, _ = group(m, "source")
	id.Field, _ = group(m, "field")
	id.ShortID, _ = group(m, "short")
	return id
}

func group(m *regexp2.Match, name string) (string, bool) {
	g := m.GroupByName(name)
	if g == nil || len(g.Captures) == 0 {
		return "", false
	}
	return g.String(), true
}

// byteOffsets maps rune indexes (as reported by regexp2) to byte offsets.
// Ranging over a string yields one position per rune, including one per
// invalid byte, which matches the []rune conversion.
func byteOffsets(text string, runeCount int) []int {
	offsets := make([]int, 0, runeCount+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	return append(offsets, len(text))
}

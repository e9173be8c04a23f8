package grammar

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// zeroWidth lists invisible characters rich-text editors leave around atomic
// nodes.
var zeroWidth = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")

// Normalize applies the identifier hygiene passes: tag fragments inside
// identifiers are stripped, then touching identifiers are separated by a
// single space.
func Normalize(text string) string {
	return SeparateAdjacent(StripEmbeddedMarkup(text))
}

// SeparateAdjacent inserts one space between identifiers written without a
// separator, so "@a.b@c.d" becomes "@a.b @c.d".
func SeparateAdjacent(text string) string {
	if strings.Count(text, "@") < 2 {
		return text
	}
	// Each pass separates at least one pair; chains need several passes
	// because the lookbehind sees the unmodified input.
	for i := strings.Count(text, "@"); i > 0; i-- {
		next, err := AdjacentPattern.Replace(text, "$1 ", -1, -1)
		if err != nil || next == text {
			return text
		}
		text = next
	}
	return text
}

// StripEmbeddedMarkup removes tag fragments from @-runs whose cleaned form
// starts with a valid identifier, e.g. "@npc<b>.name</b>" -> "@npc.name".
// Runs that do not clean up into an identifier are left untouched.
func StripEmbeddedMarkup(text string) string {
	if !strings.Contains(text, "@") || !strings.Contains(text, "<") {
		return text
	}
	out, err := MarkupRunPattern.ReplaceFunc(text, func(m regexp2.Match) string {
		run := m.String()
		cleaned := StripTags(run)
		ids := FindIdentifiers(cleaned)
		if len(ids) == 0 || ids[0].Start != 0 {
			return run
		}
		return cleaned
	}, -1, -1)
	if err != nil {
		return text
	}
	return out
}

// StripTags removes every tag fragment from s.
func StripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	out, err := TagPattern.Replace(s, "", -1, -1)
	if err != nil {
		return s
	}
	return out
}

// CleanIdentifier normalizes a single stored identifier string, typically
// read from a markup attribute. Tags and zero-width characters are removed,
// a leading @ is ensured, and an identifier pasted twice onto itself
// ("@a.b@a.b") collapses to one occurrence.
func CleanIdentifier(s string) string {
	s = strings.TrimSpace(zeroWidth.Replace(StripTags(s)))
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "@") {
		s = "@" + s
	}
	return collapseRepeats(s)
}

func collapseRepeats(s string) string {
	for len(s) > 1 && len(s)%2 == 0 {
		half := len(s) / 2
		if s[:half] != s[half:] || !strings.HasPrefix(s[half:], "@") {
			break
		}
		s = s[:half]
	}
	return s
}

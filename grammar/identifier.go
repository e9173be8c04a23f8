// Package grammar recognizes variable references inside free text.
//
// Two syntaxes are supported:
//
//	@source.field            display identifier
//	@source.field#abc1       display identifier with a short-id hint
//	@gv_<id>_<field>         system identifier
//	@gv_<id>                 legacy system identifier without field
//
// All functions are pure and safe for concurrent use.
package grammar

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind classifies an identifier occurrence.
type Kind string

const (
	KindDisplay Kind = "display"
	KindSystem  Kind = "system"
)

const (
	// SystemPrefix starts every system identifier after the @ sign.
	SystemPrefix = "gv_"

	MinShortIDLength = 4
	MaxShortIDLength = 6
)

// Identifier is one reference found in text. Start and End are byte offsets
// into the scanned text so that text[Start:End] == Match.
type Identifier struct {
	Match   string
	Start   int
	End     int
	Kind    Kind
	Source  string
	Field   string
	ShortID string
	ID      string
}

// IsSystem reports whether the identifier uses the @gv_ syntax.
func (id Identifier) IsSystem() bool {
	return id.Kind == KindSystem
}

// String renders the identifier in canonical form.
func (id Identifier) String() string {
	if id.Kind == KindSystem {
		return FormatSystem(id.ID, id.Field)
	}
	return FormatDisplay(id.Source, id.Field, id.ShortID)
}

// FormatDisplay renders @source.field or @source.field#short.
func FormatDisplay(source, field, shortID string) string {
	var b strings.Builder
	b.Grow(len(source) + len(field) + len(shortID) + 3)
	b.WriteByte('@')
	b.WriteString(source)
	b.WriteByte('.')
	b.WriteString(field)
	if shortID != "" {
		b.WriteByte('#')
		b.WriteString(shortID)
	}
	return b.String()
}

// FormatSystem renders @gv_<id>_<field>, or @gv_<id> when field is empty.
func FormatSystem(id, field string) string {
	if field == "" {
		return "@" + SystemPrefix + id
	}
	return "@" + SystemPrefix + id + "_" + field
}

// ShortID returns the first n alphanumeric characters of id. n is clamped to
// the 4..6 range accepted by the grammar.
func ShortID(id string, n int) string {
	if n < MinShortIDLength {
		n = MinShortIDLength
	}
	if n > MaxShortIDLength {
		n = MaxShortIDLength
	}
	var b strings.Builder
	for _, r := range id {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		b.WriteRune(r)
		if b.Len() == n {
			break
		}
	}
	return b.String()
}

// Parse reads s as exactly one identifier. The leading @ is optional and
// surrounding whitespace is ignored.
func Parse(s string) (Identifier, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Identifier{}, false
	}
	if !strings.HasPrefix(s, "@") {
		s = "@" + s
	}
	ids := FindIdentifiers(s)
	if len(ids) != 1 || ids[0].Start != 0 || ids[0].End != len(s) {
		return Identifier{}, false
	}
	return ids[0], true
}

// ExtendsAsSource reports whether rest, the text right after an identifier,
// starts with "." and a source character. A system identifier written in
// front of such text reads back as the source of a display identifier.
func ExtendsAsSource(rest string) bool {
	if !strings.HasPrefix(rest, ".") {
		return false
	}
	r, _ := utf8.DecodeRuneInString(rest[1:])
	return isSourceRune(r)
}

// IsIdentifier reports whether s is exactly one identifier.
func IsIdentifier(s string) bool {
	_, ok := Parse(s)
	return ok
}

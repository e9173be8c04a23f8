package grammar

import (
	"time"

	"github.com/dlclark/regexp2"
)

// sourceClass lists the characters allowed in a display identifier source:
// ASCII word characters plus the CJK ideograph blocks.
const sourceClass = `A-Za-z0-9_\u3400-\u4DBF\u4E00-\u9FFF\uF900-\uFAFF`

func isSourceRune(r rune) bool {
	switch {
	case r == '_', r >= '0' && r <= '9', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		return true
	case r >= 0x3400 && r <= 0x4DBF, r >= 0x4E00 && r <= 0x9FFF, r >= 0xF900 && r <= 0xFAFF:
		return true
	}
	return false
}

// fieldClass lists the characters allowed in a field name.
const fieldClass = `A-Za-z0-9_`

// matchTimeout bounds a single scan. The patterns are linear for well-formed
// input, the timeout only protects against pathological pastes.
const matchTimeout = 500 * time.Millisecond

// IdentifierPattern matches display identifiers (@source.field#short) and
// system identifiers (@gv_<id>_<field> and the legacy @gv_<id>).
// The system branch refuses candidates followed by ".<source char>" so that
// @gv_x.name is read as a display identifier with source "gv_x".
var IdentifierPattern = compile(
	`(?<![A-Za-z0-9_])@(?:` +
		`gv_(?<id>[A-Za-z0-9-]+)(?:_(?<sfield>[` + fieldClass + `]+))?(?!\.[` + sourceClass + `])(?![` + fieldClass + `])` +
		`|` +
		`(?<source>[` + sourceClass + `]+)\.(?<field>[` + fieldClass + `]+)(?:#(?<short>[A-Za-z0-9]{4,6}))?(?![` + fieldClass + `])` +
		`)`,
)

// AdjacentPattern captures an identifier that is immediately followed by the
// start of another identifier, e.g. "@a.b@c.d".
var AdjacentPattern = compile(
	`(?<![A-Za-z0-9_])(@(?:gv_[A-Za-z0-9-]+(?:_[` + fieldClass + `]+)?|[` + sourceClass + `]+\.[` + fieldClass + `]+(?:#[A-Za-z0-9]{4,6})?))` +
		`(?=@(?:gv_[A-Za-z0-9-]|[` + sourceClass + `]+\.[` + fieldClass + `]))`,
)

// MarkupRunPattern matches an @-run that contains tag fragments, e.g.
// "@npc<span>.name</span>".
var MarkupRunPattern = compile(`@(?:[^\s@<]|<[^<>]*>)*<[^<>]*>(?:[^\s@<]|<[^<>]*>)*`)

// TagPattern matches a single opening, closing or self-closing tag.
var TagPattern = compile(`</?[A-Za-z][^<>]*>`)

func compile(expr string) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, regexp2.None)
	re.MatchTimeout = matchTimeout
	return re
}

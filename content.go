package varref

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-varref/grammar"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxMarkupDepth bounds recursion into nested markup.
const maxMarkupDepth = 256

// Converter moves content between the HTML, raw and plain projections.
// Variable tags in HTML map to identifiers in raw text; plain text shows
// the tag labels.
type Converter struct {
	src        RecordSource
	markup     MarkupConfig
	classifier typeClassifier
	log        componentLogger
}

// NewConverter returns a converter. src may be nil, in which case types
// come from the heuristic rules only and identifiers render unresolved.
func NewConverter(src RecordSource, opts ...Option) *Converter {
	cfg := applyOptions(opts)
	return &Converter{
		src:    src,
		markup: cfg.markup,
		classifier: typeClassifier{
			rules: cfg.effectiveTypeRules(),
			log:   newComponentLogger(cfg.logger, "rules"),
			now:   cfg.now,
		},
		log: newComponentLogger(cfg.logger, "content"),
	}
}

// ExtractRaw returns the raw identifier text of an HTML fragment: variable
// tags become their stored identifier, block elements and <br> become line
// breaks, scripts and styles are dropped. Markup that cannot be parsed is
// logged and reduced to its text.
func (c *Converter) ExtractRaw(fragment string) string {
	nodes, err := parseFragment(fragment)
	if err != nil {
		c.log.warn("extract fell back to tag stripping", &MalformedMarkupError{Err: err}, nil)
		return grammar.Normalize(strings.TrimSpace(grammar.StripTags(fragment)))
	}
	w := &lineWriter{}
	for _, n := range nodes {
		c.flatten(w, n, true, 0)
	}
	if w.truncated {
		c.log.warn("extract truncated deep markup", &MalformedMarkupError{Err: errMarkupTooDeep}, map[string]any{"max_depth": maxMarkupDepth})
	}
	return grammar.Normalize(w.String())
}

// ToPlainText returns the visible text of an HTML fragment. Variable tags
// contribute their label.
func (c *Converter) ToPlainText(fragment string) string {
	nodes, err := parseFragment(fragment)
	if err != nil {
		c.log.warn("plain text fell back to tag stripping", &MalformedMarkupError{Err: err}, nil)
		return strings.TrimSpace(grammar.StripTags(fragment))
	}
	w := &lineWriter{}
	for _, n := range nodes {
		c.flatten(w, n, false, 0)
	}
	return w.String()
}

// RenderHTML renders raw text as an HTML fragment with every identifier as
// an atomic, non-editable variable tag. Plain text becomes one paragraph per
// line. Raw text that already carries markup keeps its blocks; inline runs
// outside blocks are wrapped in a paragraph.
func (c *Converter) RenderHTML(ctx context.Context, raw string) string {
	started := time.Now()
	r := renderer{c: c, snap: snapshotOf(ctx, c.src)}

	var out []*html.Node
	if strings.TrimSpace(grammar.StripTags(raw)) != strings.TrimSpace(raw) {
		nodes, err := parseFragment(raw)
		switch {
		case err != nil:
			c.log.warn("render fell back to plain text", &MalformedMarkupError{Err: err}, nil)
			out = r.paragraphs(raw)
		case c.isMarkup(nodes, 0):
			out = r.blocks(nodes)
		default:
			out = r.paragraphs(raw)
		}
	} else {
		out = r.paragraphs(raw)
	}

	var b strings.Builder
	for _, n := range out {
		if err := html.Render(&b, n); err != nil {
			c.log.warn("render failed", err, nil)
			return html.EscapeString(raw)
		}
	}
	c.log.timed(LevelDebug, "content rendered", started, nil, map[string]any{
		"variables": r.tags,
		"resolved":  r.resolved,
	})
	return b.String()
}

// Triple renders raw text into all three projections.
func (c *Converter) Triple(ctx context.Context, raw string) ContentTriple {
	rendered := c.RenderHTML(ctx, raw)
	return ContentTriple{
		HTML:      rendered,
		RawText:   c.ExtractRaw(rendered),
		PlainText: c.ToPlainText(rendered),
	}
}

var errMarkupTooDeep = fmt.Errorf("markup nested deeper than %d levels", maxMarkupDepth)

// isMarkup reports whether every element in nodes is a known HTML element
// with known attributes, or a variable tag. Text such as "a<b and c>d"
// parses into made-up elements and is rendered as text instead.
func (c *Converter) isMarkup(nodes []*html.Node, depth int) bool {
	if depth > maxMarkupDepth {
		return true
	}
	elements := 0
	for _, n := range nodes {
		if n.Type != html.ElementNode {
			if n.FirstChild != nil && !c.isMarkup(children(n), depth+1) {
				return false
			}
			continue
		}
		elements++
		if c.markup.isVariableTag(n) {
			continue
		}
		if n.DataAtom == 0 || !knownAttributes(n) {
			return false
		}
		if n.FirstChild != nil && !c.isMarkup(children(n), depth+1) {
			return false
		}
	}
	return depth > 0 || elements > 0
}

func knownAttributes(n *html.Node) bool {
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		if atom.Lookup([]byte(key)) == 0 && !strings.HasPrefix(key, "data-") && !strings.HasPrefix(key, "aria-") {
			return false
		}
	}
	return true
}

func children(n *html.Node) []*html.Node {
	var out []*html.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		out = append(out, child)
	}
	return out
}

func parseFragment(fragment string) ([]*html.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	return html.ParseFragment(strings.NewReader(fragment), body)
}

// flatten writes the raw (raw == true) or plain projection of n.
func (c *Converter) flatten(w *lineWriter, n *html.Node, raw bool, depth int) {
	if depth > maxMarkupDepth {
		w.truncated = true
		return
	}
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
	default:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			c.flatten(w, child, raw, depth+1)
		}
		return
	}

	switch {
	case skippedElements[n.DataAtom]:
		return
	case c.markup.isVariableTag(n):
		w.inline(c.variableText(n, raw))
		return
	case n.DataAtom == atom.Br:
		if !isPlaceholderBreak(n) {
			w.lineBreak()
		}
		return
	}

	block := isBlock(n)
	var mark int
	if block {
		mark = w.openBlock()
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.flatten(w, child, raw, depth+1)
	}
	if block {
		w.closeBlock(mark)
	}
}

func (c *Converter) variableText(n *html.Node, raw bool) string {
	if !raw {
		if label := strings.TrimSpace(textContent(n)); label != "" {
			return label
		}
	}
	identifier := grammar.CleanIdentifier(c.markup.storedIdentifier(n))
	if identifier == "" || identifier == "@" {
		return strings.TrimSpace(textContent(n))
	}
	return identifier
}

// lineWriter assembles text line by line so that block boundaries map to
// exactly one line break.
type lineWriter struct {
	lines     []string
	current   strings.Builder
	indent    string
	open      bool
	truncated bool
}

// text writes s. Whitespace at the start of a line is held back until
// content follows on the same line; runs holding a line break are source
// formatting between blocks and are dropped.
func (w *lineWriter) text(s string) {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	if !w.open && strings.TrimSpace(s) == "" {
		if !strings.ContainsAny(s, "\r\n") {
			w.indent += s
		}
		return
	}
	w.inline(s)
}

func (w *lineWriter) inline(s string) {
	if !w.open {
		w.current.WriteString(w.indent)
		w.indent = ""
	}
	w.current.WriteString(s)
	w.open = true
}

func (w *lineWriter) lineBreak() {
	w.endLine()
	w.open = true
}

func (w *lineWriter) openBlock() int {
	if w.open {
		w.endLine()
	}
	w.indent = ""
	return len(w.lines)
}

func (w *lineWriter) closeBlock(mark int) {
	if w.open || len(w.lines) == mark {
		w.endLine()
	}
	w.indent = ""
}

// endLine closes the current line. Trailing newlines are source formatting
// next to a boundary and are dropped.
func (w *lineWriter) endLine() {
	w.lines = append(w.lines, strings.TrimRight(w.current.String(), "\r\n"))
	w.current.Reset()
	w.indent = ""
	w.open = false
}

func (w *lineWriter) String() string {
	if w.open {
		w.endLine()
	}
	return strings.Join(w.lines, "\n")
}

// renderer builds variable-tag markup for one RenderHTML call.
type renderer struct {
	c        *Converter
	snap     *Snapshot
	tags     int
	resolved int
}

// paragraphs renders plain text, one paragraph per line.
func (r *renderer) paragraphs(text string) []*html.Node {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := make([]*html.Node, 0, len(lines))
	for _, line := range lines {
		p := newElement(atom.P)
		if line == "" {
			p.AppendChild(newElement(atom.Br))
		} else {
			r.appendInline(p, line)
		}
		out = append(out, p)
	}
	return out
}

// blocks renders parsed markup. Block elements are kept; consecutive inline
// nodes at the top level are wrapped in a paragraph.
func (r *renderer) blocks(nodes []*html.Node) []*html.Node {
	var out []*html.Node
	var run []*html.Node
	flush := func() {
		if len(run) == 0 {
			return
		}
		blank := true
		for _, n := range run {
			if n.Type != html.TextNode || strings.TrimSpace(n.Data) != "" {
				blank = false
				break
			}
		}
		if !blank {
			p := newElement(atom.P)
			for _, n := range run {
				r.appendNode(p, n, 0)
			}
			out = append(out, p)
		}
		run = nil
	}
	for _, n := range nodes {
		if isBlock(n) {
			flush()
			r.rewrite(n, 0)
			out = append(out, n)
			continue
		}
		if n.Type == html.TextNode && strings.Contains(strings.Trim(n.Data, " \t"), "\n") {
			flush()
			for _, line := range strings.Split(strings.Trim(n.Data, "\n"), "\n") {
				if strings.TrimSpace(line) == "" {
					continue
				}
				p := newElement(atom.P)
				r.appendInline(p, line)
				out = append(out, p)
			}
			continue
		}
		run = append(run, n)
	}
	flush()
	return out
}

// appendNode moves n under parent, rewriting identifiers inside it.
func (r *renderer) appendNode(parent, n *html.Node, depth int) {
	if n.Type == html.TextNode {
		r.appendInline(parent, n.Data)
		return
	}
	if r.c.markup.isVariableTag(n) {
		parent.AppendChild(r.tagFor(r.c.markup.storedIdentifier(n)))
		return
	}
	r.rewrite(n, depth)
	parent.AppendChild(n)
}

// rewrite replaces identifiers in the text below n in place.
func (r *renderer) rewrite(n *html.Node, depth int) {
	if depth > maxMarkupDepth || skippedElements[n.DataAtom] {
		return
	}
	var children []*html.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		children = append(children, child)
	}
	for _, child := range children {
		switch {
		case child.Type == html.TextNode && strings.Contains(child.Data, "@"):
			holder := newElement(atom.Span)
			r.appendInline(holder, child.Data)
			for holder.FirstChild != nil {
				moved := holder.FirstChild
				holder.RemoveChild(moved)
				n.InsertBefore(moved, child)
			}
			n.RemoveChild(child)
		case r.c.markup.isVariableTag(child):
			n.InsertBefore(r.tagFor(r.c.markup.storedIdentifier(child)), child)
			n.RemoveChild(child)
		case child.Type == html.ElementNode:
			r.rewrite(child, depth+1)
		}
	}
}

// appendInline appends text with identifiers replaced by variable tags and
// newlines by <br>.
func (r *renderer) appendInline(parent *html.Node, text string) {
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			parent.AppendChild(newElement(atom.Br))
		}
		normalized, ids := grammar.Tokenize(strings.TrimSuffix(line, "\r"))
		last := 0
		for _, id := range ids {
			if id.Start > last {
				parent.AppendChild(&html.Node{Type: html.TextNode, Data: normalized[last:id.Start]})
			}
			parent.AppendChild(r.tagForIdentifier(id))
			last = id.End
		}
		if last < len(normalized) {
			parent.AppendChild(&html.Node{Type: html.TextNode, Data: normalized[last:]})
		}
	}
}

// tagFor renders a stored identifier. Strings that do not parse as an
// identifier are kept as text.
func (r *renderer) tagFor(stored string) *html.Node {
	cleaned := grammar.CleanIdentifier(stored)
	id, ok := grammar.Parse(cleaned)
	if !ok {
		return &html.Node{Type: html.TextNode, Data: strings.TrimSpace(stored)}
	}
	id.Match = cleaned
	return r.tagForIdentifier(id)
}

func (r *renderer) tagForIdentifier(id grammar.Identifier) *html.Node {
	r.tags++
	rec, _, found := matchIdentifier(r.snap, id)
	if found {
		r.resolved++
	}

	a := tagAttrs{
		identifier: id.Match,
		source:     id.Source,
		field:      id.Field,
		id:         id.ID,
		label:      id.Match,
	}
	if found {
		a.id = rec.ID
		if id.IsSystem() {
			a.source = rec.SourceName
			a.field = rec.Field
			a.label = grammar.FormatDisplay(rec.SourceName, rec.Field, "")
		}
	}
	a.varType = r.c.classify(id, rec, found, a.source)
	return r.c.markup.tagNode(a)
}

// classify derives the type of a variable tag: the record type when known,
// then the heuristic rules on the source name, then custom without a
// registry and unknown for identifiers a registry could not resolve.
func (c *Converter) classify(id grammar.Identifier, rec VariableRecord, found bool, source string) VariableType {
	if found && rec.Type != "" && rec.Type != TypeUnknown {
		return rec.Type
	}
	if t, ok := c.classifier.classify(RuleContext{
		Source:     source,
		Field:      id.Field,
		ID:         rec.ID,
		Identifier: id.Match,
	}); ok {
		return t
	}
	if found || c.src == nil {
		return TypeCustom
	}
	return TypeUnknown
}

func newElement(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
}

package varref

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MarkupConfig lists the markers that identify variable tags in HTML.
// Historical editors wrote several variants; all listed variants are
// recognised and the first entry of each list is the one written.
type MarkupConfig struct {
	// MarkerAttributes flag an element as a variable tag by presence.
	MarkerAttributes []string `json:"marker_attributes" yaml:"marker_attributes"`
	// MarkerClasses flag an element as a variable tag by class name.
	MarkerClasses []string `json:"marker_classes" yaml:"marker_classes"`
	// IdentifierAttributes hold the stored identifier, checked in order.
	// The text content is used when none is set.
	IdentifierAttributes []string `json:"identifier_attributes" yaml:"identifier_attributes"`
	// Tag is the element rendered for variables.
	Tag string `json:"tag" yaml:"tag"`
}

// DefaultMarkupConfig returns the markers written by current and past
// editors.
func DefaultMarkupConfig() MarkupConfig {
	return MarkupConfig{
		MarkerAttributes:     []string{"data-variable", "data-variable-tag", "data-var", "variable"},
		MarkerClasses:        []string{"variable-tag", "variable-node", "var-tag"},
		IdentifierAttributes: []string{"data-identifier", "data-variable-identifier", "identifier", "data-value"},
		Tag:                  "span",
	}
}

// withDefaults fills empty lists from DefaultMarkupConfig and lower cases
// attribute names, matching what the HTML parser produces.
func (m MarkupConfig) withDefaults() MarkupConfig {
	def := DefaultMarkupConfig()
	m.MarkerAttributes = lowerNonEmpty(m.MarkerAttributes, def.MarkerAttributes)
	m.MarkerClasses = lowerNonEmpty(m.MarkerClasses, def.MarkerClasses)
	m.IdentifierAttributes = lowerNonEmpty(m.IdentifierAttributes, def.IdentifierAttributes)
	m.Tag = strings.ToLower(strings.TrimSpace(m.Tag))
	if m.Tag == "" {
		m.Tag = def.Tag
	}
	return m
}

func lowerNonEmpty(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" {
			out = append(out, value)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}

// isVariableTag reports whether n carries one of the variable markers.
func (m MarkupConfig) isVariableTag(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, attr := range n.Attr {
		for _, marker := range m.MarkerAttributes {
			if attr.Key == marker {
				return true
			}
		}
		if attr.Key != "class" {
			continue
		}
		for _, class := range strings.Fields(attr.Val) {
			for _, marker := range m.MarkerClasses {
				if strings.EqualFold(class, marker) {
					return true
				}
			}
		}
	}
	return false
}

// storedIdentifier returns the identifier a variable tag stands for.
func (m MarkupConfig) storedIdentifier(n *html.Node) string {
	for _, key := range m.IdentifierAttributes {
		if value, ok := attr(n, key); ok && strings.TrimSpace(value) != "" {
			return value
		}
	}
	return textContent(n)
}

// tagAttrs lists the attributes written on a rendered variable tag.
type tagAttrs struct {
	identifier string
	varType    VariableType
	source     string
	field      string
	id         string
	label      string
}

func (m MarkupConfig) tagNode(a tagAttrs) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     m.Tag,
		DataAtom: atom.Lookup([]byte(m.Tag)),
		Attr: []html.Attribute{
			{Key: m.MarkerAttributes[0]},
			{Key: m.IdentifierAttributes[0], Val: a.identifier},
			{Key: "data-type", Val: string(a.varType)},
			{Key: "data-source", Val: a.source},
			{Key: "data-field", Val: a.field},
			{Key: "data-variable-id", Val: a.id},
			{Key: "contenteditable", Val: "false"},
			{Key: "class", Val: m.MarkerClasses[0]},
		},
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: a.label})
	return n
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// blockElements start a new line in the raw and plain projections.
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Table: true, atom.Thead: true, atom.Tbody: true,
	atom.Tr: true, atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Figure: true, atom.Dl: true, atom.Dt: true, atom.Dd: true, atom.Hr: true,
}

// skippedElements never contribute visible text.
var skippedElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true, atom.Head: true,
}

func isBlock(n *html.Node) bool {
	return n.Type == html.ElementNode && blockElements[n.DataAtom]
}

// isPlaceholderBreak reports a <br> that only keeps an empty or trailing
// line open in the editor.
func isPlaceholderBreak(n *html.Node) bool {
	if n.DataAtom != atom.Br || n.NextSibling != nil {
		return false
	}
	return n.Parent != nil && isBlock(n.Parent)
}

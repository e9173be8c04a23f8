package varref

import (
	"strings"
	"time"

	"github.com/goliatone/go-varref/grammar"
)

// VariableType classifies a catalog variable.
type VariableType string

const (
	TypeNPC      VariableType = "npc"
	TypeTask     VariableType = "task"
	TypeCustom   VariableType = "custom"
	TypeFile     VariableType = "file"
	TypeWorkflow VariableType = "workflow"
	TypeUnknown  VariableType = "unknown"
)

// ParseVariableType folds case and surrounding whitespace. Unrecognised
// values map to TypeUnknown.
func ParseVariableType(value string) VariableType {
	switch VariableType(strings.ToLower(strings.TrimSpace(value))) {
	case TypeNPC:
		return TypeNPC
	case TypeTask:
		return TypeTask
	case TypeCustom:
		return TypeCustom
	case TypeFile:
		return TypeFile
	case TypeWorkflow:
		return TypeWorkflow
	default:
		return TypeUnknown
	}
}

// VariableRecord is a normalized catalog entry.
type VariableRecord struct {
	ID         string       `json:"id"`
	SourceID   string       `json:"source_id,omitempty"`
	SourceName string       `json:"source_name"`
	Field      string       `json:"field"`
	Type       VariableType `json:"type"`
	Value      string       `json:"value"`
}

// IsCustom reports whether the record is a user-authored custom variable.
func (r VariableRecord) IsCustom() bool {
	return r.Type == TypeCustom
}

// DisplayIdentifier renders @source.field#short with a short id of n
// characters.
func (r VariableRecord) DisplayIdentifier(n int) string {
	return grammar.FormatDisplay(r.SourceName, r.Field, grammar.ShortID(r.ID, n))
}

// SystemIdentifier renders @gv_<id>_<field>.
func (r VariableRecord) SystemIdentifier() string {
	return grammar.FormatSystem(r.ID, r.Field)
}

// ContentTriple holds the three projections of one document.
type ContentTriple struct {
	HTML      string `json:"html"`
	RawText   string `json:"raw_text"`
	PlainText string `json:"plain_text"`
}

// RuleContext carries the inputs available to type rule expressions.
type RuleContext struct {
	Source     string
	Field      string
	ID         string
	Identifier string
	Metadata   map[string]any
	Now        *time.Time
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) label() string {
	if ctx.Identifier != "" {
		return ctx.Identifier
	}
	if ctx.Source != "" {
		return ctx.Source
	}
	return "unknown"
}

// bindings exposes the context as expression variables.
func (ctx RuleContext) bindings() map[string]any {
	return map[string]any{
		"source":     ctx.Source,
		"field":      ctx.Field,
		"id":         ctx.ID,
		"identifier": ctx.Identifier,
		"metadata":   ctx.Metadata,
		"now":        ctx.timestamp(),
	}
}

package usersink

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/goliatone/go-varref/pkg/activity"
	"github.com/google/uuid"
)

// DefaultMaxTextLength bounds the original/updated text copied into
// activity records, in runes.
const DefaultMaxTextLength = 512

var textKeys = []string{"original_text", "updated_text"}

// Hook adapts varref activity events to a go-users ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
	// MaxTextLength truncates content text in record data. Zero uses
	// DefaultMaxTextLength; negative keeps the full text.
	MaxTextLength int
}

// Notify maps the event into an ActivityRecord and forwards it to the sink.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}

	normalized := activity.NormalizeEvent(event)
	if normalized.Verb == "" || normalized.ObjectType == "" || normalized.ObjectID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	record := usertypes.ActivityRecord{
		ActorID:    parseUUID(normalized.ActorID),
		UserID:     parseUUID(normalized.UserID),
		TenantID:   parseUUID(normalized.TenantID),
		Verb:       normalized.Verb,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Data:       h.recordData(normalized),
		OccurredAt: normalized.OccurredAt,
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now()
	}

	return h.Sink.Log(ctx, record)
}

func (h Hook) recordData(event activity.Event) map[string]any {
	data := map[string]any{}
	for key, value := range event.Metadata {
		data[key] = value
	}
	if event.Verb == activity.VerbIdentifiersUpdated {
		limit := h.MaxTextLength
		if limit == 0 {
			limit = DefaultMaxTextLength
		}
		for _, key := range textKeys {
			text, ok := data[key].(string)
			if !ok {
				continue
			}
			data[key] = truncate(text, limit)
		}
	}
	if event.DefinitionCode != "" {
		data["definition_code"] = event.DefinitionCode
	}
	if len(event.Recipients) > 0 {
		data["recipients"] = append([]string{}, event.Recipients...)
	}
	if len(data) == 0 {
		return nil
	}
	return data
}

func truncate(text string, limit int) string {
	if limit < 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "…"
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}

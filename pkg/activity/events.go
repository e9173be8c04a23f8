package activity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// VerbIdentifiersUpdated is emitted when identifiers in a text were
	// rewritten.
	VerbIdentifiersUpdated = "variable-identifiers-updated"
	// VerbCatalogRefreshed is emitted after the variable catalog loaded.
	VerbCatalogRefreshed = "variable-catalog.refreshed"

	ObjectTypeContent = "variable.content"
	ObjectTypeCatalog = "variable.catalog"
)

// contentSpace namespaces content object ids derived from text.
var contentSpace = uuid.MustParse("0b7d4c52-9f3e-4c1a-8e55-2f6a1d9b3c70")

// Actor carries the identity fields shared by all events.
type Actor struct {
	ActorID        string
	UserID         string
	TenantID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
}

// IdentifiersEventInput describes an identifier rewrite.
type IdentifiersEventInput struct {
	Actor
	ObjectID     string
	OriginalText string
	UpdatedText  string
	Direction    string
	Metadata     map[string]any
	OccurredAt   time.Time
}

// CatalogEventInput describes a catalog load.
type CatalogEventInput struct {
	Actor
	ObjectID   string
	Records    int
	Entries    int
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildIdentifiersUpdatedEvent constructs the activity event for an
// identifier rewrite. Without an explicit object id the id is derived from
// the original text, so repeated rewrites of one text share an object.
func BuildIdentifiersUpdatedEvent(input IdentifiersEventInput) Event {
	metadata := cloneMap(input.Metadata)
	metadata = ensureMetadata(metadata)
	metadata["original_text"] = input.OriginalText
	metadata["updated_text"] = input.UpdatedText
	if input.Direction != "" {
		metadata["direction"] = input.Direction
	}

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" && input.OriginalText != "" {
		objectID = uuid.NewSHA1(contentSpace, []byte(input.OriginalText)).String()
	}
	if objectID == "" {
		objectID = ObjectTypeContent
	}
	return buildEvent(VerbIdentifiersUpdated, ObjectTypeContent, objectID, input.Actor, metadata, input.OccurredAt)
}

// BuildCatalogRefreshedEvent constructs the activity event for a catalog
// load.
func BuildCatalogRefreshedEvent(input CatalogEventInput) Event {
	metadata := ensureMetadata(cloneMap(input.Metadata))
	metadata["records"] = input.Records
	metadata["entries"] = input.Entries

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = ObjectTypeCatalog
	}
	return buildEvent(VerbCatalogRefreshed, ObjectTypeCatalog, objectID, input.Actor, metadata, input.OccurredAt)
}

func buildEvent(verb, objectType, objectID string, actor Actor, metadata map[string]any, occurredAt time.Time) Event {
	recipients := actor.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, actor.Recipients...)
	}
	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(actor.ActorID),
		UserID:         strings.TrimSpace(actor.UserID),
		TenantID:       strings.TrimSpace(actor.TenantID),
		ObjectType:     objectType,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(actor.Channel),
		DefinitionCode: strings.TrimSpace(actor.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     occurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}

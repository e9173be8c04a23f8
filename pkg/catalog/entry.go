// Package catalog reads the variable catalog: the list of variables content
// may reference. Entries arrive from an HTTP service, a local JSON or YAML
// file, or memory, in any of the envelope shapes the service has used.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-varref/internal/hydrate"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedPayload is returned when a payload is neither a list of
// entries nor a {data: ...} envelope around one.
var ErrUnsupportedPayload = errors.New("catalog: unsupported payload shape")

// maxEnvelopeDepth bounds {data:{data:[...]}} unwrapping.
const maxEnvelopeDepth = 3

// SourceRef names the entity that owns a variable.
type SourceRef struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Entry is one catalog item as served.
type Entry struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Identifier string     `json:"identifier,omitempty" yaml:"identifier,omitempty"`
	Type       string     `json:"type,omitempty" yaml:"type,omitempty"`
	Source     *SourceRef `json:"source,omitempty" yaml:"source,omitempty"`
	Value      any        `json:"value,omitempty" yaml:"value,omitempty"`
}

// SourceName returns the owning source name, or "".
func (e Entry) SourceName() string {
	if e.Source == nil {
		return ""
	}
	return e.Source.Name
}

// Catalog serves the current variable set. Entries returned with a
// *PartialError are usable; any other error means nothing was fetched.
type Catalog interface {
	GetVariables(ctx context.Context) ([]Entry, error)
}

// DecodeJSON decodes a JSON catalog payload.
func DecodeJSON(origin string, data []byte) ([]Entry, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", origin, err)
	}
	return Decode(origin, payload)
}

// DecodeYAML decodes a YAML catalog payload.
func DecodeYAML(origin string, data []byte) ([]Entry, error) {
	var payload any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", origin, err)
	}
	return Decode(origin, payload)
}

// PartialError reports items that were skipped while the rest of a payload
// decoded. It is returned together with the decoded entries.
type PartialError struct {
	Origin  string
	Skipped int
	Err     error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("catalog: %s: skipped %d item(s): %v", e.Origin, e.Skipped, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Decode unwraps a bare list, {data: [...]} or {data: {data: [...]}} and
// decodes each item. An unusable envelope fails the whole payload. Items
// that are not objects or fail to decode are skipped and reported through
// a *PartialError returned alongside the other entries.
func Decode(origin string, payload any) ([]Entry, error) {
	items, err := unwrap(payload, 0)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", origin, err)
	}
	objects := make([]map[string]any, len(items))
	for i, item := range items {
		// Non-objects stay nil and fail as missing payloads.
		objects[i], _ = item.(map[string]any)
	}
	entries, errs := entryDecoder.DecodeAll(origin, objects)
	if len(errs) > 0 {
		return entries, &PartialError{Origin: origin, Skipped: len(errs), Err: errors.Join(errs...)}
	}
	return entries, nil
}

func unwrap(payload any, depth int) ([]any, error) {
	switch value := payload.(type) {
	case nil:
		return nil, nil
	case []any:
		return value, nil
	case map[string]any:
		data, ok := value["data"]
		if !ok || depth >= maxEnvelopeDepth {
			return nil, ErrUnsupportedPayload
		}
		return unwrap(data, depth+1)
	default:
		return nil, ErrUnsupportedPayload
	}
}

var entryDecoder = hydrate.NewDecoder[Entry](
	hydrate.WithUseNumber[Entry](),
	hydrate.WithPreHook[Entry](aliasFields),
	hydrate.WithPreHook[Entry](coerceIDs),
	hydrate.WithPostHook[Entry](trimEntry),
)

// aliasFields maps historical field names onto the current shape.
func aliasFields(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	if _, ok := payload["id"]; !ok {
		if id, ok := payload["variable_id"]; ok {
			payload["id"] = id
		}
	}
	if _, ok := payload["identifier"]; !ok {
		for _, key := range []string{"variable_identifier", "key"} {
			if value, ok := payload[key]; ok {
				payload["identifier"] = value
				break
			}
		}
	}
	switch source := payload["source"].(type) {
	case string:
		payload["source"] = map[string]any{"name": source}
	case nil:
		name := firstString(payload, "source_name", "sourceName")
		id := payload["source_id"]
		if id == nil {
			id = payload["sourceId"]
		}
		if name != "" || id != nil {
			ref := map[string]any{"name": name}
			if id != nil {
				ref["id"] = id
			}
			payload["source"] = ref
		}
	}
	return payload, nil
}

// coerceIDs stringifies numeric ids.
func coerceIDs(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	payload["id"] = stringify(payload["id"])
	if source, ok := payload["source"].(map[string]any); ok {
		if id, ok := source["id"]; ok {
			source["id"] = stringify(id)
		}
		if name, ok := source["name"]; ok {
			source["name"] = stringify(name)
		}
	}
	for _, key := range []string{"name", "identifier", "type"} {
		if value, ok := payload[key]; ok {
			payload[key] = stringify(value)
		}
	}
	return payload, nil
}

func trimEntry(_ hydrate.Context, entry *Entry) error {
	entry.ID = strings.TrimSpace(entry.ID)
	entry.Name = strings.TrimSpace(entry.Name)
	entry.Identifier = strings.TrimSpace(entry.Identifier)
	entry.Type = strings.TrimSpace(entry.Type)
	if entry.Source != nil {
		entry.Source.ID = strings.TrimSpace(entry.Source.ID)
		entry.Source.Name = strings.TrimSpace(entry.Source.Name)
		if entry.Source.ID == "" && entry.Source.Name == "" {
			entry.Source = nil
		}
	}
	if number, ok := entry.Value.(json.Number); ok {
		entry.Value = number.String()
	}
	return nil
}

func stringify(value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64, float32, int, int64, int32, uint, uint64, bool:
		return fmt.Sprint(v)
	default:
		return v
	}
}

func firstString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := payload[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

package varref

import (
	"encoding/json"

	"github.com/goliatone/go-varref/grammar"
)

// Trace records how each identifier in a text was resolved.
type Trace struct {
	Input       string       `json:"input"`
	Normalized  string       `json:"normalized"`
	Output      string       `json:"output"`
	Identifiers []Provenance `json:"identifiers"`
}

// Provenance details the outcome for one identifier occurrence. Start and
// End are byte offsets into the normalized text.
type Provenance struct {
	Identifier string       `json:"identifier"`
	Kind       grammar.Kind `json:"kind"`
	Start      int          `json:"start"`
	End        int          `json:"end"`
	Strategy   Strategy     `json:"strategy,omitempty"`
	RecordID   string       `json:"record_id,omitempty"`
	Value      string       `json:"value,omitempty"`
	Found      bool         `json:"found"`
}

// Resolved counts identifiers that matched a record.
func (t Trace) Resolved() int {
	n := 0
	for _, p := range t.Identifiers {
		if p.Found {
			n++
		}
	}
	return n
}

// Unresolved lists the identifiers left verbatim.
func (t Trace) Unresolved() []string {
	var out []string
	for _, p := range t.Identifiers {
		if !p.Found {
			out = append(out, p.Identifier)
		}
	}
	return out
}

// ToJSON serialises the trace for logging or transport.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

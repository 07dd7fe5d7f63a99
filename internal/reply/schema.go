package reply

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	// SchemaVersion is the only contract revision this service emits or accepts.
	SchemaVersion = "npc_reply@1"
	APIVersion    = "2025-08-30"

	// IntentFallback is used whenever the model could not settle on an intent.
	IntentFallback = "unknown"

	DefaultConfidence = 0.6
	DefaultNode       = "start"
	DefaultTone       = "neutral"
)

// Reply is the NPC answer returned to callers and stored in the cache.
type Reply struct {
	APIVersion    string   `json:"api_version"`
	SchemaVersion string   `json:"schema_version"`
	SessionID     string   `json:"session_id"`
	MessageID     string   `json:"message_id"`
	NPC           NPC      `json:"npc"`
	Reply         string   `json:"reply"`
	Intent        string   `json:"intent"`
	Tone          string   `json:"tone"`
	Confidence    float64  `json:"confidence"`
	FactsUsed     []string `json:"facts_used"`
	State         State    `json:"state"`
	Choices       []Choice `json:"choices,omitempty"`
}

type NPC struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// State is the NPC's position in its dialogue graph plus the narrative flags raised so far.
type State struct {
	Node  string   `json:"node"`
	Flags []string `json:"flags"`
}

type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Hint  string `json:"hint,omitempty"`
}

// Clone returns a deep copy so cached replies are never shared with callers.
func (r Reply) Clone() Reply {
	out := r
	out.FactsUsed = append([]string{}, r.FactsUsed...)
	out.State.Flags = append([]string{}, r.State.Flags...)
	if r.Choices != nil {
		out.Choices = append([]Choice{}, r.Choices...)
	}
	return out
}

// JSONSchema is the contract. It is handed to providers as the tool/response schema
// and compiled for the validator.
const JSONSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "api_version": {"type": "string"},
    "schema_version": {"type": "string", "const": "npc_reply@1"},
    "session_id": {"type": "string"},
    "message_id": {"type": "string"},
    "npc": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "id": {"type": "string"},
        "name": {"type": "string"},
        "role": {"type": "string"}
      },
      "required": ["id", "name", "role"]
    },
    "reply": {"type": "string"},
    "intent": {"type": "string"},
    "tone": {"type": "string"},
    "confidence": {"type": "number"},
    "facts_used": {"type": "array", "items": {"type": "string"}, "default": []},
    "state": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "node": {"type": "string"},
        "flags": {"type": "array", "items": {"type": "string"}, "default": []}
      },
      "required": ["node", "flags"]
    },
    "choices": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string"},
          "label": {"type": "string"},
          "hint": {"type": "string"}
        },
        "required": ["id", "label"]
      }
    }
  },
  "required": [
    "api_version", "schema_version", "session_id", "message_id", "npc", "reply",
    "intent", "tone", "confidence", "facts_used", "state"
  ]
}`

const schemaURL = "npc_reply.schema.json"

// node is the subset of JSON Schema the coercion pass understands.
type node struct {
	Type       string           `json:"type"`
	Properties map[string]*node `json:"properties"`
	Items      *node            `json:"items"`
	Required   []string         `json:"required"`
	Default    json.RawMessage  `json:"default"`
}

var (
	contract = mustParseNode(JSONSchema)
	compiled = jsonschema.MustCompileString(schemaURL, JSONSchema)
)

// Keys returns the declared property names at the given path ("" for root,
// "npc", "state", "choices").
func Keys(path string) []string {
	n := contract
	if path != "" {
		for _, part := range strings.Split(path, ".") {
			child, ok := n.Properties[part]
			if !ok {
				return nil
			}
			n = child
			if n.Items != nil {
				n = n.Items
			}
		}
	}
	out := make([]string, 0, len(n.Properties))
	for k := range n.Properties {
		out = append(out, k)
	}
	return out
}

func mustParseNode(src string) *node {
	var n node
	if err := json.Unmarshal([]byte(src), &n); err != nil {
		panic("reply: contract schema does not parse: " + err.Error())
	}
	return &n
}

package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolName is the function the model is forced to call with its reply.
const ToolName = "return_npc_reply"

const outputRules = `OUTPUT RULES:
- You MUST call the ` + "`" + ToolName + "`" + ` tool.
- All keys must be snake_case exactly as the schema.
- Always include ` + "`state`" + ` with both ` + "`node`" + ` and ` + "`flags`" + ` (use [] if none).
- Do NOT add fields outside the schema.
- If unsure, return safe defaults that satisfy the schema.`

func playerTurn(text string) string {
	return "[PLAYER]: " + text
}

// decodePayload parses the model's structured output. Anything that is not a
// JSON object is a malformed payload.
func decodePayload(text string) (map[string]any, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, ErrNoStructuredCall
	}
	s = stripFence(s)

	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("%w: %v (payload %q)", ErrMalformedPayload, err, crop(s, 200))
	}
	if out == nil {
		return nil, fmt.Errorf("%w: payload is null", ErrMalformedPayload)
	}
	return out, nil
}

// stripFence removes a ```json ... ``` wrapper some models add in JSON mode.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func crop(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

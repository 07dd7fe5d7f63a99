package reply

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestNormalize_ProviderDrift(t *testing.T) {
	raw := decode(t, `{"reply": 42, "confidence": "0.95", "state": {"node": "deny"}}`)

	got := Normalize(raw)

	assert.Equal(t, "42", got["reply"])
	assert.Equal(t, 0.95, got["confidence"])
	st := got["state"].(map[string]any)
	assert.Equal(t, "deny", st["node"])
	assert.Equal(t, []any{}, st["flags"])

	out, err := Validate(got)
	require.NoError(t, err)
	assert.Equal(t, "42", out.Reply)
	assert.Equal(t, 0.95, out.Confidence)
	assert.Equal(t, State{Node: "deny", Flags: []string{}}, out.State)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		`{}`,
		`"just text"`,
		`null`,
		`[1, 2]`,
		`{"reply": {"line": "hm"}, "confidence": 3, "facts_used": "e-cctv", "extra": true}`,
		`{"apiVersion": "x", "schemaVersion": "npc_reply@9", "sessionId": "s1", "factsUsed": ["a", 1, "b"]}`,
		`{"npc": {"id": "n", "name": 5, "mood": "angry"}, "state": {"node": 1, "flags": "met"}}`,
		`{"choices": [{"id": "a", "label": "A", "hint": "h", "x": 1}, {"id": 2, "label": "B"}, "c"]}`,
		`{"intent": "  ", "tone": "", "confidence": "abc", "reply": null}`,
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			once := Normalize(decode(t, in))
			twice := Normalize(once)
			if diff := cmp.Diff(once, twice); diff != "" {
				t.Fatalf("second pass changed the candidate (-once +twice):\n%s", diff)
			}
		})
	}
}

func TestNormalize_PinsSchemaVersion(t *testing.T) {
	for _, in := range []string{
		`{"schema_version": "npc_reply@2"}`,
		`{"schema_version": 1}`,
		`{"schemaVersion": "legacy"}`,
		`{}`,
	} {
		got := Normalize(decode(t, in))
		assert.Equal(t, SchemaVersion, got["schema_version"], in)
	}
}

func TestNormalize_ConfidenceClamp(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{0.3, 0.3},
		{1.7, 1},
		{-2.0, 0},
		{"0.25", 0.25},
		{" 0.5 ", 0.5},
		{"7", 1},
		{"-1", 0},
		{"abc", DefaultConfidence},
		{"", DefaultConfidence},
		{true, DefaultConfidence},
		{nil, DefaultConfidence},
		{json.Number("0.8"), 0.8},
	}
	for _, tt := range tests {
		got := Normalize(map[string]any{"confidence": tt.in})
		c := got["confidence"].(float64)
		assert.Equal(t, tt.want, c, "input %#v", tt.in)
		assert.True(t, c >= 0 && c <= 1)
	}
}

func TestNormalize_KeyCasingRepair(t *testing.T) {
	got := Normalize(decode(t, `{
		"sessionId": "s-1",
		"messageId": "m-1",
		"factsUsed": ["e-cctv"],
		"apiVersion": "2024-01-01",
		"facts_used_extra": 1
	}`))

	assert.Equal(t, "s-1", got["session_id"])
	assert.Equal(t, "m-1", got["message_id"])
	assert.Equal(t, []any{"e-cctv"}, got["facts_used"])
	assert.Equal(t, "2024-01-01", got["api_version"])
	assert.NotContains(t, got, "sessionId")
	assert.NotContains(t, got, "facts_used_extra")

	canonicalWins := Normalize(decode(t, `{"facts_used": ["a"], "factsUsed": ["b"]}`))
	assert.Equal(t, []any{"a"}, canonicalWins["facts_used"])
	assert.NotContains(t, canonicalWins, "factsUsed")
}

func TestNormalize_NonObjectHasNoCandidate(t *testing.T) {
	for _, raw := range []string{`"oops"`, `42`, `[{"reply": "hi"}]`, `null`} {
		got := Normalize(decode(t, raw))
		assert.Nil(t, got, raw)

		_, err := Validate(got)
		assert.ErrorIs(t, err, ErrSchemaInvalid, raw)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	got := Normalize(map[string]any{})

	assert.Equal(t, APIVersion, got["api_version"])
	assert.Equal(t, map[string]any{"id": "unknown", "name": "NPC", "role": "npc"}, got["npc"])
	assert.Equal(t, map[string]any{"node": "start", "flags": []any{}}, got["state"])
	assert.Equal(t, IntentFallback, got["intent"])
	assert.Equal(t, DefaultTone, got["tone"])
	assert.Equal(t, "", got["reply"])
	assert.Equal(t, DefaultConfidence, got["confidence"])
	assert.Equal(t, []any{}, got["facts_used"])
	assert.NotContains(t, got, "choices")
}

func TestNormalize_ReplyStringification(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"reply": "hi"}`, "hi"},
		{`{"reply": 3.5}`, "3.5"},
		{`{"reply": true}`, "true"},
		{`{"reply": null}`, ""},
		{`{}`, ""},
		{`{"reply": {"line": "hm"}}`, `{"line":"hm"}`},
		{`{"reply": ["a", "b"]}`, `["a","b"]`},
	}
	for _, tt := range tests {
		got := Normalize(decode(t, tt.raw))
		assert.Equal(t, tt.want, got["reply"], tt.raw)
	}
}

func TestNormalize_SequenceCoercion(t *testing.T) {
	got := Normalize(decode(t, `{"facts_used": "e-cctv", "state": {"node": "deny", "flags": ["met", 3, null, "pressed"]}}`))
	assert.Equal(t, []any{"e-cctv"}, got["facts_used"])
	assert.Equal(t, []any{"met", "pressed"}, got["state"].(map[string]any)["flags"])

	got = Normalize(decode(t, `{"facts_used": {"id": "e"}, "state": {"flags": 7}}`))
	assert.Equal(t, []any{}, got["facts_used"])
	assert.Equal(t, []any{}, got["state"].(map[string]any)["flags"])
}

func TestNormalize_ChoicesDropMalformed(t *testing.T) {
	got := Normalize(decode(t, `{"choices": [
		{"id": "ask-cctv", "label": "CCTV?", "hint": "press", "score": 9},
		{"id": 1, "label": "bad id"},
		{"id": "no-label"},
		{"id": "hinted", "label": "Hint?", "hint": {"text": "x"}},
		{"id": "null-hint", "label": "Hint?", "hint": null},
		"string entry"
	]}`))

	assert.Equal(t, []any{
		map[string]any{"id": "ask-cctv", "label": "CCTV?", "hint": "press"},
	}, got["choices"])

	notList := Normalize(decode(t, `{"choices": "pick one"}`))
	assert.NotContains(t, notList, "choices")
}

func TestNormalize_ChoicesKeepReplyValid(t *testing.T) {
	got := Normalize(decode(t, `{"choices": [{"id": "a", "label": "b", "hint": {}}, {"id": "c", "label": "d"}]}`))

	out, err := Validate(got)
	require.NoError(t, err)
	assert.Equal(t, []Choice{{ID: "c", Label: "d"}}, out.Choices)
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	raw := map[string]any{
		"npc":   map[string]any{"id": "n", "extra": 1},
		"bogus": true,
	}
	_ = Normalize(raw)

	assert.Contains(t, raw, "bogus")
	assert.Contains(t, raw["npc"].(map[string]any), "extra")
}

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Vovarama1992/npc-dialogue/internal/reply"
)

func TestDecodePayload(t *testing.T) {
	out, err := decodePayload("```json\n{\"reply\":\"hi\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"reply": "hi"}, out)

	_, err = decodePayload("   ")
	assert.ErrorIs(t, err, ErrNoStructuredCall)

	for _, bad := range []string{"not json", "[1,2]", "\"text\"", "null", "42"} {
		_, err := decodePayload(bad)
		assert.ErrorIs(t, err, ErrMalformedPayload, bad)
	}
}

func TestDebugClientSatisfiesContract(t *testing.T) {
	raw, err := DebugClient{}.Invoke(context.Background(), "sys", "dev", " 안녕 ")
	require.NoError(t, err)

	r, err := reply.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "(안녕) 에 대한 테스트 응답입니다.", r.Reply)
	assert.Equal(t, "deny", r.State.Node)
}

func TestDebugClientHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DebugClient{}.Invoke(ctx, "", "", "x")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestMissingKeysAreUnavailable(t *testing.T) {
	o := NewOpenAIClient(OpenAIOptions{}, zap.NewNop())
	_, err := o.Invoke(context.Background(), "s", "d", "u")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, "openai:"+DefaultOpenAIModel, o.Name())

	g, err := NewGeminiClient(context.Background(), GeminiOptions{}, nil)
	require.NoError(t, err)
	_, err = g.Invoke(context.Background(), "s", "d", "u")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, "gemini:"+DefaultGeminiModel, g.Name())
}

// fakeOpenAI answers chat completions with the given assistant message and
// records the last request body.
func fakeOpenAI(t *testing.T, message string, last *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if last != nil {
			_ = json.Unmarshal(body, last)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"tool_calls","message":`+message+`}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func toolCallMessage(name, args string) string {
	a, _ := json.Marshal(args)
	return `{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function",
		"function":{"name":"` + name + `","arguments":` + string(a) + `}}]}`
}

func TestOpenAIForcesToolCall(t *testing.T) {
	var req map[string]any
	srv := fakeOpenAI(t, toolCallMessage(ToolName, `{"reply":"몰라요","state":{"node":"deny"}}`), &req)
	c := NewOpenAIClient(OpenAIOptions{APIKey: "k", BaseURL: srv.URL + "/v1", Timeout: time.Second}, zap.NewNop())

	out, err := c.Invoke(context.Background(), "SYSTEM", "DEV", "너 어디 있었어?")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"reply": "몰라요", "state": map[string]any{"node": "deny"}}, out)

	msgs := req["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, "developer", msgs[1].(map[string]any)["role"])
	assert.Equal(t, "DEV", msgs[1].(map[string]any)["content"])
	assert.Equal(t, "[PLAYER]: 너 어디 있었어?", msgs[2].(map[string]any)["content"])
	assert.Contains(t, msgs[0].(map[string]any)["content"], "OUTPUT RULES:")

	choice := req["tool_choice"].(map[string]any)
	assert.Equal(t, ToolName, choice["function"].(map[string]any)["name"])
	assert.InDelta(t, 0.6, req["temperature"], 1e-6)
}

func TestOpenAIStructuredCallErrors(t *testing.T) {
	cases := map[string]struct {
		message string
		want    error
	}{
		"plain text":      {`{"role":"assistant","content":"hello"}`, ErrNoStructuredCall},
		"other tool":      {toolCallMessage("something_else", `{}`), ErrNoStructuredCall},
		"broken args":     {toolCallMessage(ToolName, `{"reply":`), ErrMalformedPayload},
		"array arguments": {toolCallMessage(ToolName, `["reply"]`), ErrMalformedPayload},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := fakeOpenAI(t, tc.message, nil)
			c := NewOpenAIClient(OpenAIOptions{APIKey: "k", BaseURL: srv.URL + "/v1"}, zap.NewNop())
			_, err := c.Invoke(context.Background(), "s", "d", "u")
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestOpenAITransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIOptions{APIKey: "k", BaseURL: srv.URL + "/v1"}, zap.NewNop())
	_, err := c.Invoke(context.Background(), "s", "d", "u")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

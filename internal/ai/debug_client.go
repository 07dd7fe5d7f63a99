package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/Vovarama1992/npc-dialogue/internal/reply"
)

// DebugClient answers with a canned reply that already satisfies the
// contract. It is used with DEBUG_AI=1 and never touches the network.
type DebugClient struct{}

func (DebugClient) Name() string { return "debug" }

func (DebugClient) Invoke(ctx context.Context, _, _, userText string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	text := "테스트 응답입니다."
	if t := strings.TrimSpace(userText); t != "" {
		text = "(" + t + ") 에 대한 테스트 응답입니다."
	}
	return map[string]any{
		"api_version":    reply.APIVersion,
		"schema_version": reply.SchemaVersion,
		"session_id":     "debug-session",
		"message_id":     "debug-message",
		"npc":            map[string]any{"id": "suspect-minseo", "name": "박민서", "role": "용의자"},
		"reply":          text,
		"intent":         "greet",
		"tone":           reply.DefaultTone,
		"confidence":     0.7,
		"facts_used":     []any{},
		"state":          map[string]any{"node": "deny", "flags": []any{}},
		"choices":        []any{},
	}, nil
}

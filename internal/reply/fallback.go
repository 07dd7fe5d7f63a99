package reply

import "github.com/google/uuid"

// User-facing fallback texts.
const (
	MessageApology        = "오류가 발생했어요. 잠시 후 다시 시도해 주세요. (임시 답변)"
	MessageBadRequest     = "요청 형식이 올바르지 않습니다."
	MessageUnknownSubject = "해당 인물/상태를 찾을 수 없습니다."
)

// FallbackParams describes the best context known when the pipeline gave up.
// Empty fields fall back to neutral defaults.
type FallbackParams struct {
	SessionID string
	NPCID     string
	UserText  string
	Node      string
	Flags     []string
	Message   string
	NPCName   string
	NPCRole   string
}

// Fallback builds a contract-valid, zero-confidence reply. It keeps the prior
// node and flags so the conversation does not silently reset.
func Fallback(p FallbackParams) Reply {
	return Reply{
		APIVersion:    APIVersion,
		SchemaVersion: SchemaVersion,
		SessionID:     p.SessionID,
		MessageID:     uuid.NewString(),
		NPC: NPC{
			ID:   firstNonEmpty(p.NPCID, "unknown"),
			Name: firstNonEmpty(p.NPCName, "NPC"),
			Role: firstNonEmpty(p.NPCRole, "npc"),
		},
		Reply:      firstNonEmpty(p.Message, MessageApology),
		Intent:     IntentFallback,
		Tone:       DefaultTone,
		Confidence: 0,
		FactsUsed:  []string{},
		State: State{
			Node:  firstNonEmpty(p.Node, DefaultNode),
			Flags: append([]string{}, p.Flags...),
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

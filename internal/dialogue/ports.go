package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Vovarama1992/npc-dialogue/internal/ai"
	"github.com/Vovarama1992/npc-dialogue/internal/casebook"
	"github.com/Vovarama1992/npc-dialogue/internal/reply"
	"github.com/Vovarama1992/npc-dialogue/internal/session"
)

// Kind classifies why a request ended on the fallback path. None of them
// reach the caller as an error.
type Kind string

const (
	KindNone                Kind = ""
	KindBadRequest          Kind = "BAD_REQUEST_SHAPE"
	KindUnknownSubject      Kind = "UNKNOWN_SUBJECT"
	KindProviderUnavailable Kind = "PROVIDER_UNAVAILABLE"
	KindNoStructuredCall    Kind = "NO_STRUCTURED_CALL"
	KindMalformedPayload    Kind = "MALFORMED_PAYLOAD"
	KindSchemaInvalid       Kind = "SCHEMA_INVALID"
	KindStoreWriteFailed    Kind = "STORE_WRITE_FAILED"
)

var (
	ErrBadRequest = errors.New("BAD_REQUEST_SHAPE")
	ErrStoreWrite = errors.New("STORE_WRITE_FAILED")
)

func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	case errors.Is(err, casebook.ErrUnknownSubject):
		return KindUnknownSubject
	case errors.Is(err, ai.ErrNoStructuredCall):
		return KindNoStructuredCall
	case errors.Is(err, ai.ErrMalformedPayload):
		return KindMalformedPayload
	case errors.Is(err, reply.ErrSchemaInvalid):
		return KindSchemaInvalid
	case errors.Is(err, ErrStoreWrite):
		return KindStoreWriteFailed
	default:
		// transport errors, timeouts and anything else the provider surfaced
		return KindProviderUnavailable
	}
}

// MessageRequest is one player utterance addressed to an NPC of a case.
type MessageRequest struct {
	Text   string `json:"text"`
	CaseID string `json:"caseId"`
	NPCID  string `json:"npcId"`
}

func (m MessageRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(m.Text) == "" {
		missing = append(missing, "text")
	}
	if strings.TrimSpace(m.CaseID) == "" {
		missing = append(missing, "caseId")
	}
	if strings.TrimSpace(m.NPCID) == "" {
		missing = append(missing, "npcId")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrBadRequest, strings.Join(missing, ", "))
	}
	return nil
}

// ParseMessageRequest decodes a request body. Wrong field types are a bad
// request just like missing fields.
func ParseMessageRequest(data []byte) (MessageRequest, error) {
	var m MessageRequest
	if err := json.Unmarshal(data, &m); err != nil {
		return MessageRequest{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return m, m.Validate()
}

// Service is the caller-facing entry point. Reply never fails: every internal
// error is turned into a contract-valid fallback.
type Service interface {
	Reply(ctx context.Context, sessionID string, req MessageRequest) reply.Reply
	Open(ctx context.Context) (session.Session, error)
	Session(ctx context.Context, id string) (session.Session, error)
	// Drain waits for queued session writes.
	Drain()
}

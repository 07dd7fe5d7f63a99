package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback_IsContractValid(t *testing.T) {
	fb := Fallback(FallbackParams{
		SessionID: "s-1",
		NPCID:     "suspect-minseo",
		UserText:  "너 어디 있었어?",
		Node:      "deny",
		Flags:     []string{"met"},
		NPCName:   "박민서",
		NPCRole:   "용의자",
	})

	out, err := Validate(fb)
	require.NoError(t, err)
	assert.Equal(t, fb, out)

	assert.Zero(t, fb.Confidence)
	assert.Equal(t, IntentFallback, fb.Intent)
	assert.Equal(t, DefaultTone, fb.Tone)
	assert.Equal(t, MessageApology, fb.Reply)
	assert.Empty(t, fb.FactsUsed)
	assert.Nil(t, fb.Choices)
	assert.Equal(t, State{Node: "deny", Flags: []string{"met"}}, fb.State)
	assert.NotEmpty(t, fb.MessageID)
}

func TestFallback_Defaults(t *testing.T) {
	fb := Fallback(FallbackParams{SessionID: "s-2", Message: MessageBadRequest})

	assert.Equal(t, NPC{ID: "unknown", Name: "NPC", Role: "npc"}, fb.NPC)
	assert.Equal(t, MessageBadRequest, fb.Reply)
	assert.Equal(t, State{Node: DefaultNode, Flags: []string{}}, fb.State)

	_, err := Validate(fb)
	require.NoError(t, err)
}

func TestFallback_FreshMessageIDs(t *testing.T) {
	a := Fallback(FallbackParams{SessionID: "s"})
	b := Fallback(FallbackParams{SessionID: "s"})
	assert.NotEqual(t, a.MessageID, b.MessageID)
}

func TestFallback_CopiesFlags(t *testing.T) {
	flags := []string{"met"}
	fb := Fallback(FallbackParams{Flags: flags})
	flags[0] = "changed"
	assert.Equal(t, []string{"met"}, fb.State.Flags)
}

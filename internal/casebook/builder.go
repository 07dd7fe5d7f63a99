package casebook

import (
	"github.com/Vovarama1992/npc-dialogue/internal/session"
)

const DefaultHistoryTurns = 6

// Context is everything the prompt needs for one request. It is built fresh
// per request and never persisted.
type Context struct {
	CaseID    string
	Summary   string
	Timeline  []string
	Evidence  []Evidence
	NPC       NPCContext
	LastTurns []session.Log
}

type NPCContext struct {
	ID      string
	Name    string
	Role    string
	Persona string
	Node    string
	Flags   []string
}

type Builder struct {
	book  *Book
	turns int
}

func NewBuilder(book *Book, historyTurns int) *Builder {
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}
	return &Builder{book: book, turns: historyTurns}
}

// Build resolves the case and NPC and merges them with the session's state.
// A session without state starts at the NPC's start node with no flags.
func (b *Builder) Build(caseID, npcID string, s session.Session) (Context, error) {
	cs, npc, err := b.book.Catalog().Lookup(caseID, npcID)
	if err != nil {
		return Context{}, err
	}

	node := npc.Start
	flags := []string{}
	if s.State != nil {
		if s.State.Node != "" {
			node = s.State.Node
		}
		if s.State.Flags != nil {
			flags = append(flags, s.State.Flags...)
		}
	}

	logs := s.Logs
	if len(logs) > b.turns {
		logs = logs[len(logs)-b.turns:]
	}

	return Context{
		CaseID:    caseID,
		Summary:   cs.Summary,
		Timeline:  append([]string{}, cs.Timeline...),
		Evidence:  append([]Evidence{}, cs.Evidence...),
		LastTurns: append([]session.Log{}, logs...),
		NPC: NPCContext{
			ID:      npcID,
			Name:    npc.Name,
			Role:    npc.Role,
			Persona: npc.Persona,
			Node:    node,
			Flags:   flags,
		},
	}, nil
}

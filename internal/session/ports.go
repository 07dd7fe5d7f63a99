package session

import "context"

type Sender string

const (
	SenderPlayer Sender = "player"
	SenderNPC    Sender = "npc"
)

type Log struct {
	From Sender `json:"from"`
	Text string `json:"text"`
}

// State is the NPC dialogue position persisted per session.
type State struct {
	Node  string   `json:"node"`
	Flags []string `json:"flags"`
}

type Session struct {
	ID    string `json:"id"`
	State *State `json:"state,omitempty"`
	Logs  []Log  `json:"logs"`
}

// Store: persistence of conversation state and log
type Store interface {
	GetOrCreate(ctx context.Context, id string) (Session, error)
	Append(ctx context.Context, id string, log Log) error
	SetState(ctx context.Context, id string, state State) error
	Close() error
}

package dialogue

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Vovarama1992/npc-dialogue/internal/reply"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

type wsInbound struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	CaseID string `json:"caseId"`
	NPCID  string `json:"npcId"`
}

type wsOutbound struct {
	Type    string       `json:"type"`
	Reply   *reply.Reply `json:"reply,omitempty"`
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
}

// HandleWS serves GET /sessions/{id}/ws. Each inbound message is answered with
// exactly one reply frame, in order.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.allowOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	if !h.track(conn) {
		return
	}
	defer h.untrack(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		h.log.Warn("ws set read deadline failed", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeCh := make(chan wsOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	h.log.Debug("ws connected", zap.String("session", id))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			cancel()
			<-writerDone
			return
		}
		var in wsInbound
		if err := json.Unmarshal(data, &in); err != nil {
			// answered like a bad HTTP body: the bad request fallback
			h.log.Warn("bad ws frame", zap.String("session", id), zap.Error(err))
			in = wsInbound{Type: "message"}
		}

		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			push(writerDone, writeCh, wsOutbound{Type: "pong"})
		case "message":
			out := h.svc.Reply(ctx, id, MessageRequest{Text: in.Text, CaseID: in.CaseID, NPCID: in.NPCID})
			push(writerDone, writeCh, wsOutbound{Type: "reply", Reply: &out})
		default:
			push(writerDone, writeCh, wsOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "unsupported type: " + in.Type,
			})
		}
	}
}

// push hands a frame to the writer; replies are never dropped while the
// writer is alive.
func push(writerDone <-chan struct{}, ch chan<- wsOutbound, out wsOutbound) {
	select {
	case ch <- out:
	case <-writerDone:
	}
}

func (h *Handler) track(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.conns[conn] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Handler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	h.wg.Done()
}

// Shutdown closes open websocket connections and waits for their handlers to
// return. A reply already in progress finishes and queues its session writes
// first. http.Server.Shutdown does not wait for hijacked connections.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	for conn := range h.conns {
		_ = conn.Close()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vovarama1992/npc-dialogue/internal/ai"
	"github.com/Vovarama1992/npc-dialogue/internal/cache"
	"github.com/Vovarama1992/npc-dialogue/internal/casebook"
	"github.com/Vovarama1992/npc-dialogue/internal/reply"
	"github.com/Vovarama1992/npc-dialogue/internal/session"
)

const (
	DefaultMaxTextRunes = 1000
	defaultWriteTimeout = 5 * time.Second
)

type Stage string

const (
	StageStart           Stage = "START"
	StageContextResolved Stage = "CONTEXT_RESOLVED"
	StageCacheHit        Stage = "CACHE_HIT"
	StageCacheMiss       Stage = "CACHE_MISS"
	StageProviderInvoked Stage = "PROVIDER_INVOKED"
	StageNormalized      Stage = "NORMALIZED"
	StageValidated       Stage = "VALIDATED"
	StageCacheStored     Stage = "CACHE_STORED"
	StageFailed          Stage = "VALIDATION_OR_PROVIDER_FAILED"
	StageFallbackBuilt   Stage = "FALLBACK_BUILT"
	StageSessionUpdated  Stage = "SESSION_UPDATED"
	StageDone            Stage = "DONE"
)

type Options struct {
	// MaxTextRunes crops player text before it is logged, fingerprinted or sent.
	MaxTextRunes int
	WriteTimeout time.Duration
}

type service struct {
	store    session.Store
	lanes    *session.Lanes
	builder  *casebook.Builder
	provider ai.Provider
	replies  *cache.Replies
	log      *zap.Logger
	opts     Options
}

func NewService(
	store session.Store,
	builder *casebook.Builder,
	provider ai.Provider,
	replies *cache.Replies,
	logger *zap.Logger,
	opts Options,
) Service {
	if opts.MaxTextRunes <= 0 {
		opts.MaxTextRunes = DefaultMaxTextRunes
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		store:    store,
		lanes:    session.NewLanes(),
		builder:  builder,
		provider: provider,
		replies:  replies,
		log:      logger.Named("dialogue"),
		opts:     opts,
	}
}

// run carries the per-request pipeline state; it is dropped when Reply returns.
type run struct {
	sessionID string
	started   time.Time
	path      []Stage
	kind      Kind
	err       error
}

func (r *run) to(s Stage) { r.path = append(r.path, s) }

func (r *run) fail(err error) {
	r.err = err
	r.kind = Classify(err)
}

func (s *service) Reply(ctx context.Context, sessionID string, req MessageRequest) reply.Reply {
	r := &run{sessionID: sessionID, started: time.Now(), path: []Stage{StageStart}}
	out := s.reply(ctx, r, req)
	r.to(StageDone)

	fields := []zap.Field{
		zap.String("session", sessionID),
		zap.String("case", req.CaseID),
		zap.String("npc", req.NPCID),
		zap.Strings("path", stagesOf(r.path)),
		zap.Duration("took", time.Since(r.started)),
		zap.String("node", out.State.Node),
	}
	if r.err != nil {
		s.log.Warn("reply fell back", append(fields, zap.String("kind", string(r.kind)), zap.Error(r.err))...)
	} else {
		s.log.Info("reply", fields...)
	}
	return out
}

func (s *service) reply(ctx context.Context, r *run, req MessageRequest) reply.Reply {
	if err := req.Validate(); err != nil {
		r.fail(err)
		fb := reply.Fallback(reply.FallbackParams{
			SessionID: r.sessionID,
			NPCID:     "unknown",
			Message:   reply.MessageBadRequest,
		})
		r.to(StageFallbackBuilt)
		s.appendNPC(ctx, r, fb.Reply)
		r.to(StageSessionUpdated)
		return fb
	}

	text := cropText(req.Text, s.opts.MaxTextRunes)

	sess := s.load(ctx, r.sessionID)
	player := session.Log{From: session.SenderPlayer, Text: text}
	s.write(ctx, r.sessionID, "append player log", func(ctx context.Context) error {
		return s.store.Append(ctx, r.sessionID, player)
	})
	sess.Logs = append(sess.Logs, player)

	node, flags := reply.DefaultNode, []string{}
	if sess.State != nil {
		node = firstNonEmpty(sess.State.Node, node)
		flags = append(flags, sess.State.Flags...)
	}

	cc, err := s.builder.Build(req.CaseID, req.NPCID, sess)
	if err != nil {
		r.fail(err)
		fb := reply.Fallback(reply.FallbackParams{
			SessionID: r.sessionID,
			NPCID:     req.NPCID,
			UserText:  text,
			Node:      node,
			Flags:     flags,
			Message:   reply.MessageUnknownSubject,
		})
		r.to(StageFallbackBuilt)
		s.appendNPC(ctx, r, fb.Reply)
		r.to(StageSessionUpdated)
		return fb
	}
	r.to(StageContextResolved)

	key := cache.Fingerprint(cache.Key{
		CaseID: req.CaseID,
		NPCID:  req.NPCID,
		Node:   cc.NPC.Node,
		Flags:  cc.NPC.Flags,
		Text:   text,
	})
	if hit, ok := s.replies.Get(key); ok {
		r.to(StageCacheHit)
		s.appendNPC(ctx, r, hit.Reply)
		return hit
	}
	r.to(StageCacheMiss)

	out, err := s.generate(ctx, r, cc, text)
	if err != nil {
		r.fail(err)
		r.to(StageFailed)
		fb := reply.Fallback(reply.FallbackParams{
			SessionID: r.sessionID,
			NPCID:     req.NPCID,
			UserText:  text,
			Node:      cc.NPC.Node,
			Flags:     cc.NPC.Flags,
			NPCName:   cc.NPC.Name,
			NPCRole:   cc.NPC.Role,
		})
		r.to(StageFallbackBuilt)
		s.appendNPC(ctx, r, fb.Reply)
		r.to(StageSessionUpdated)
		return fb
	}

	s.replies.Set(key, out)
	r.to(StageCacheStored)

	s.appendNPC(ctx, r, out.Reply)
	if out.State.Node != "" {
		state := session.State{Node: out.State.Node, Flags: append([]string{}, out.State.Flags...)}
		s.write(ctx, r.sessionID, "set state", func(ctx context.Context) error {
			return s.store.SetState(ctx, r.sessionID, state)
		})
	}
	r.to(StageSessionUpdated)
	return out
}

// generate invokes the provider exactly once and pushes its output through
// the normalizer and the validator.
func (s *service) generate(ctx context.Context, r *run, cc casebook.Context, text string) (reply.Reply, error) {
	// a disconnecting caller does not abort the call; the provider owns its timeout
	raw, err := s.provider.Invoke(context.WithoutCancel(ctx), SystemPrompt(), DeveloperContext(cc), text)
	r.to(StageProviderInvoked)
	if err != nil {
		return reply.Reply{}, err
	}
	if raw == nil {
		return reply.Reply{}, fmt.Errorf("%w: %s returned nothing", ai.ErrNoStructuredCall, s.provider.Name())
	}

	if ce := s.log.Check(zap.DebugLevel, "provider payload"); ce != nil {
		b, _ := json.Marshal(raw)
		ce.Write(zap.String("session", r.sessionID), zap.String("provider", s.provider.Name()), zap.ByteString("raw", cropBytes(b, 800)))
	}

	candidate := reply.Normalize(raw)
	r.to(StageNormalized)

	v, err := reply.Validate(candidate)
	if err != nil {
		var verr *reply.ValidationError
		if errors.As(err, &verr) {
			s.log.Debug("candidate rejected", zap.String("session", r.sessionID), zap.Strings("errors", verr.Errors))
		}
		return reply.Reply{}, err
	}
	r.to(StageValidated)

	out := reply.Reply{
		APIVersion:    reply.APIVersion,
		SchemaVersion: reply.SchemaVersion,
		SessionID:     r.sessionID,
		MessageID:     uuid.NewString(),
		NPC:           v.NPC,
		Reply:         v.Reply,
		Intent:        v.Intent,
		Tone:          v.Tone,
		Confidence:    v.Confidence,
		FactsUsed:     append([]string{}, v.FactsUsed...),
		State: reply.State{
			Node:  v.State.Node,
			Flags: append([]string{}, v.State.Flags...),
		},
	}
	if len(v.Choices) > 0 {
		out.Choices = append([]reply.Choice{}, v.Choices...)
	}
	return out, nil
}

func (s *service) appendNPC(ctx context.Context, r *run, text string) {
	entry := session.Log{From: session.SenderNPC, Text: text}
	s.write(ctx, r.sessionID, "append npc log", func(ctx context.Context) error {
		return s.store.Append(ctx, r.sessionID, entry)
	})
}

// write queues a best-effort store write behind earlier writes for the same
// session. Failures are logged and never reach the caller.
func (s *service) write(ctx context.Context, sessionID, op string, fn func(context.Context) error) {
	base := context.WithoutCancel(ctx)
	s.lanes.Go(sessionID, func() {
		wctx, cancel := context.WithTimeout(base, s.opts.WriteTimeout)
		defer cancel()
		if err := fn(wctx); err != nil {
			err = fmt.Errorf("%w: %s: %v", ErrStoreWrite, op, err)
			s.log.Warn("session write failed",
				zap.String("session", sessionID),
				zap.String("kind", string(Classify(err))),
				zap.Error(err),
			)
		}
	})
}

// load reads the session behind any queued writes. A store that cannot be
// read yields an empty session rather than failing the request.
func (s *service) load(ctx context.Context, id string) session.Session {
	sess := session.Session{ID: id}
	s.lanes.Do(id, func() {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.WriteTimeout)
		defer cancel()
		got, err := s.store.GetOrCreate(wctx, id)
		if err != nil {
			s.log.Warn("session load failed", zap.String("session", id), zap.Error(err))
			return
		}
		sess = got
	})
	return sess
}

func (s *service) Open(ctx context.Context) (session.Session, error) {
	return s.Session(ctx, uuid.NewString())
}

func (s *service) Session(ctx context.Context, id string) (session.Session, error) {
	var (
		sess session.Session
		err  error
	)
	s.lanes.Do(id, func() {
		sess, err = s.store.GetOrCreate(ctx, id)
	})
	return sess, err
}

func (s *service) Drain() { s.lanes.Drain() }

// cropText limits text to max runes, marking the cut with an ellipsis.
func cropText(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max]) + "…"
}

func cropBytes(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func stagesOf(path []Stage) []string {
	out := make([]string, len(path))
	for i, s := range path {
		out[i] = string(s)
	}
	return out
}

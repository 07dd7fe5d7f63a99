package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	genai "google.golang.org/genai"

	"github.com/Vovarama1992/npc-dialogue/internal/reply"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiClient asks for application/json output. Gemini has no forced tool
// call here, so the schema travels in the system instruction instead.
type GeminiClient struct {
	cli     *genai.Client
	model   string
	timeout time.Duration
	log     *zap.Logger
}

type GeminiOptions struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

func NewGeminiClient(ctx context.Context, opts GeminiOptions, logger *zap.Logger) (*GeminiClient, error) {
	if opts.Model == "" {
		opts.Model = DefaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &GeminiClient{model: opts.Model, timeout: opts.Timeout, log: logger.Named("gemini")}
	if opts.APIKey == "" {
		g.log.Warn("GEMINI_API_KEY not set, every request will fall back")
		return g, nil
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	g.cli = cli
	return g, nil
}

func (g *GeminiClient) Name() string { return "gemini:" + g.model }

func (g *GeminiClient) Invoke(
	ctx context.Context,
	systemPrompt string,
	developerContext string,
	userText string,
) (any, error) {
	if g.cli == nil {
		return nil, fmt.Errorf("%w: gemini api key is not configured", ErrProviderUnavailable)
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	system := strings.Join([]string{
		systemPrompt,
		geminiRules,
		"JSON SCHEMA:\n" + reply.JSONSchema,
		developerContext,
	}, "\n\n")

	start := time.Now()
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(playerTurn(userText), genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](temperature),
		},
	)
	if err != nil {
		g.log.Warn("generate content failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	g.log.Debug("generate content", zap.Duration("took", time.Since(start)))

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty candidates", ErrNoStructuredCall)
	}
	out, err := decodePayload(resp.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		g.log.Warn("json output rejected", zap.Error(err))
		return nil, err
	}
	return out, nil
}

const geminiRules = `OUTPUT RULES:
- Respond with a single JSON object matching the schema below and nothing else.
- All keys must be snake_case exactly as the schema.
- Always include ` + "`state`" + ` with both ` + "`node`" + ` and ` + "`flags`" + ` (use [] if none).
- Do NOT add fields outside the schema.
- If unsure, return safe defaults that satisfy the schema.`

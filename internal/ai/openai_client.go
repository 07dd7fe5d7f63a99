package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Vovarama1992/npc-dialogue/internal/reply"
)

const (
	DefaultOpenAIModel = openai.GPT4oMini
	temperature        = 0.6
)

type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     *zap.Logger
}

type OpenAIOptions struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewOpenAIClient never fails: without a key every Invoke reports the
// provider as unavailable, so the service still answers with fallbacks.
func NewOpenAIClient(opts OpenAIOptions, logger *zap.Logger) *OpenAIClient {
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &OpenAIClient{
		model:   opts.Model,
		timeout: opts.Timeout,
		log:     logger.Named("openai"),
	}
	if opts.APIKey == "" {
		c.log.Warn("OPENAI_API_KEY not set, every request will fall back")
		return c
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	c.client = openai.NewClientWithConfig(cfg)
	return c
}

func (c *OpenAIClient) Name() string { return "openai:" + c.model }

func (c *OpenAIClient) Invoke(
	ctx context.Context,
	systemPrompt string,
	developerContext string,
	userText string,
) (any, error) {
	if c.client == nil {
		return nil, fmt.Errorf("%w: openai api key is not configured", ErrProviderUnavailable)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		Tools:       []openai.Tool{replyTool()},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: ToolName},
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt + "\n" + outputRules},
			{Role: "developer", Content: developerContext},
			{Role: openai.ChatMessageRoleUser, Content: playerTurn(userText)},
		},
	})
	if err != nil {
		c.log.Warn("chat completion failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	c.log.Debug("chat completion", zap.Duration("took", time.Since(start)), zap.Int("choices", len(resp.Choices)))

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrNoStructuredCall)
	}
	for _, call := range resp.Choices[0].Message.ToolCalls {
		if call.Function.Name != ToolName {
			continue
		}
		out, err := decodePayload(call.Function.Arguments)
		if err != nil {
			c.log.Warn("tool arguments rejected", zap.Error(err))
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s was not produced", ErrNoStructuredCall, ToolName)
}

func replyTool() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        ToolName,
			Description: "Return the NPC reply strictly matching the npc_reply schema.",
			Parameters:  json.RawMessage(reply.JSONSchema),
		},
	}
}

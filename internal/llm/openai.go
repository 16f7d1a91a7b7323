package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bobmcallan/flytel-agent/internal/common"
)

// OpenAIProvider talks to any OpenAI-compatible chat endpoint: a hosted API
// or a local Ollama instance serving /v1. Which one depends only on the
// base URL in the model config.
type OpenAIProvider struct {
	api    *openai.Client
	model  string
	logger *common.Logger
}

// NewOpenAIProvider builds a provider from one model config entry.
func NewOpenAIProvider(cfg common.ModelConfig, logger *common.Logger) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.GetTimeout()}

	return &OpenAIProvider{
		api:    openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}
}

// Model returns the configured model identifier.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Chat sends the conversation and returns the model's next message. Tool
// definitions, when present, are attached with automatic tool choice. A
// provider rejection mentioning tool support is surfaced as
// ErrToolsUnsupported so the caller can abort the session.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (Message, error) {
	start := time.Now()

	apiReq := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: toOpenAIMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		apiReq.Tools = toOpenAITools(req.Tools)
		apiReq.ToolChoice = "auto"
	}

	resp, err := p.api.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		if isToolsUnsupported(err) {
			return Message{}, fmt.Errorf("%w: %s", ErrToolsUnsupported, p.model)
		}
		p.logger.Warn().
			Err(err).
			Str("model", p.model).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("chat completion failed")
		return Message{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Message{}, fmt.Errorf("chat completion returned no choices")
	}

	choice := resp.Choices[0].Message
	msg := Message{
		Role:    choice.Role,
		Content: choice.Content,
	}
	for _, tc := range choice.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	p.logger.Debug().
		Str("model", p.model).
		Int("tool_calls", len(msg.ToolCalls)).
		Int("content_length", len(msg.Content)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("chat completion received")
	return msg, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out[i] = msg
	}
	return out
}

func toOpenAITools(defs []Tool) []openai.Tool {
	out := make([]openai.Tool, len(defs))
	for i, def := range defs {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Schema,
			},
		}
	}
	return out
}

// isToolsUnsupported matches the rejection Ollama and some hosted providers
// return when the selected model has no tool-calling support.
func isToolsUnsupported(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "does not support tools")
}

package llm

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/unclepete-20/chatbot-test/config"
	"github.com/unclepete-20/chatbot-test/domain"
)

type AnthropicCompleter struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropic creates a completer for the Anthropic Messages API. The SDK's
// automatic retries are disabled: a failed turn is reported, not retried.
func NewAnthropic(cfg config.LLMConfig, opts ...option.RequestOption) *AnthropicCompleter {
	base := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		base = append(base, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(append(base, opts...)...)
	return &AnthropicCompleter{client: &client, model: anthropic.Model(cfg.Model)}
}

// Complete implements domain.Completer.
func (a *AnthropicCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.ChatMessage, error) {
	params := anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   int64(req.Profile.MaxTokens),
		Temperature: anthropic.Float(math.Round(float64(req.Profile.Temperature)*100) / 100),
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case domain.SystemRole:
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		case domain.UserRole:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("create message: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if v, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(v.Text)
		}
	}
	if b.Len() == 0 {
		return domain.ChatMessage{}, domain.ErrEmptyCompletion
	}
	return domain.ChatMessage{
		Role:    domain.AssistantRole,
		Content: b.String(),
	}, nil
}

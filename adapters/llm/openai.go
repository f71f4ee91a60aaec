package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/unclepete-20/chatbot-test/config"
	"github.com/unclepete-20/chatbot-test/domain"
)

// ChatClient is the subset of openai.Client the completer needs; tests swap
// it for a fake.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type OpenAICompleter struct {
	client ChatClient
	model  string
}

// NewOpenAI creates a completer for the OpenAI chat completions API, or any
// server compatible with it when BaseURL is set.
func NewOpenAI(cfg config.LLMConfig) *OpenAICompleter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return NewOpenAIWithClient(openai.NewClientWithConfig(clientCfg), cfg.Model)
}

func NewOpenAIWithClient(client ChatClient, model string) *OpenAICompleter {
	return &OpenAICompleter{client: client, model: model}
}

// Complete implements domain.Completer.
func (o *OpenAICompleter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.ChatMessage, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: req.Profile.Temperature,
		MaxTokens:   req.Profile.MaxTokens,
	})
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return domain.ChatMessage{}, domain.ErrEmptyCompletion
	}

	return domain.ChatMessage{
		Role:    domain.AssistantRole,
		Content: resp.Choices[0].Message.Content,
	}, nil
}

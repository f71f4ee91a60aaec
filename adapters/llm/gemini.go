package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/unclepete-20/chatbot-test/config"
	"github.com/unclepete-20/chatbot-test/domain"
)

type GeminiCompleter struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, cfg config.LLMConfig) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GeminiCompleter{client: client, model: cfg.Model}, nil
}

// Complete implements domain.Completer. The system message travels as the
// system instruction; assistant turns map to the model role.
func (g *GeminiCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.ChatMessage, error) {
	system, contents := toGeminiContents(req.Messages)
	temperature := req.Profile.Temperature

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       &temperature,
		MaxOutputTokens:   int32(req.Profile.MaxTokens),
	})
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return domain.ChatMessage{}, domain.ErrEmptyCompletion
	}
	return domain.ChatMessage{
		Role:    domain.AssistantRole,
		Content: text,
	}, nil
}

func toGeminiContents(history []domain.ChatMessage) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case domain.SystemRole:
			system = &genai.Content{Parts: []*genai.Part{{Text: msg.Content}}}
		case domain.UserRole:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: msg.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: msg.Content}}})
		}
	}
	return system, contents
}

package domain

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned by a Completer when the provider answered
// without any usable text.
var ErrEmptyCompletion = errors.New("completion returned no content")

// Completer abstracts any chat/LLM provider.
type Completer interface {
	// Complete sends the whole message history and returns the model's reply
	// as an assistant message.
	Complete(ctx context.Context, req CompletionRequest) (ChatMessage, error)
}

// CompletionRequest is one call to the completion API. The model is fixed
// by the Completer.
type CompletionRequest struct {
	Messages []ChatMessage
	Profile  Profile
}

// Profile holds the sampling parameters of a completion call.
type Profile struct {
	Temperature float32
	MaxTokens   int
}

var (
	// WelcomeProfile is used for the greeting sent right after connecting.
	WelcomeProfile = Profile{Temperature: 0.5, MaxTokens: 1000}
	// TurnProfile is used for every steady-state user turn.
	TurnProfile = Profile{Temperature: 0.7, MaxTokens: 200}
)

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	SystemRole    Role = "system"
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case SystemRole, UserRole, AssistantRole:
		return true
	}
	return false
}

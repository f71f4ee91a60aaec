package domain

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultMaxMessages is the history bound, system message included.
const DefaultMaxMessages = 20

var (
	ErrInvalidRole   = errors.New("invalid message role")
	ErrSystemMessage = errors.New("system message is only allowed at index 0")
)

// Conversation is a bounded, ordered history of chat messages. Index 0 always
// holds the system instructions and is never evicted.
//
// Each method is atomic on its own. Callers that need read-call-append to be
// atomic hold the owning Session's turn lock.
type Conversation struct {
	mu       sync.RWMutex
	messages []ChatMessage
	max      int
}

// NewConversation returns a buffer holding only the system message. A max
// below 2 is raised to 2 so at least one turn message survives eviction.
func NewConversation(instructions string, max int) *Conversation {
	if max < 2 {
		max = 2
	}
	return &Conversation{
		messages: []ChatMessage{{Role: SystemRole, Content: instructions}},
		max:      max,
	}
}

// Append adds msg at the end of the history. It does not enforce the bound.
func (c *Conversation) Append(msg ChatMessage) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, msg.Role)
	}
	if msg.Role == SystemRole {
		return ErrSystemMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

// EnforceBound evicts the oldest non-system messages until the history fits
// the bound, and returns what it evicted.
func (c *Conversation) EnforceBound() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted []ChatMessage
	for len(c.messages) > c.max {
		evicted = append(evicted, c.messages[1])
		c.messages = append(c.messages[:1], c.messages[2:]...)
	}
	return evicted
}

// Snapshot returns a copy of the history that later mutations do not affect.
func (c *Conversation) Snapshot() []ChatMessage {
	return c.Extend()
}

// Extend returns a snapshot with extra appended to it. The conversation
// itself is left untouched.
func (c *Conversation) Extend(extra ...ChatMessage) []ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ChatMessage, 0, len(c.messages)+len(extra))
	out = append(out, c.messages...)
	return append(out, extra...)
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

func (c *Conversation) Max() int {
	return c.max
}

// System returns the anchoring system message.
func (c *Conversation) System() ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.messages[0]
}

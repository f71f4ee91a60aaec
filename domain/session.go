package domain

import (
	"context"
	"sync"
)

// HistoryMode selects how conversations are scoped.
type HistoryMode string

const (
	// SessionHistory gives every connection its own conversation.
	SessionHistory HistoryMode = "session"
	// SharedHistory uses one process-wide conversation for all connections.
	SharedHistory HistoryMode = "shared"
)

// Session is the conversational state bound to one connection.
type Session struct {
	ID           string
	Conversation *Conversation

	// isolated is false when the Conversation is shared with other sessions.
	isolated bool
	turnMu   *sync.Mutex
}

func NewSession(id string, conv *Conversation, isolated bool) *Session {
	return &Session{
		ID:           id,
		Conversation: conv,
		isolated:     isolated,
		turnMu:       &sync.Mutex{},
	}
}

// Isolated reports whether no other session can observe this conversation.
func (s *Session) Isolated() bool { return s.isolated }

// LockTurn serialises read-call-append sequences of isolated sessions. Shared
// sessions are not locked, so concurrent turns interleave.
func (s *Session) LockTurn() (unlock func()) {
	if !s.isolated {
		return func() {}
	}
	s.turnMu.Lock()
	return s.turnMu.Unlock
}

// SessionStore hands out the Session of a connection.
type SessionStore interface {
	// Open returns the session for id, creating it when needed.
	Open(ctx context.Context, id string) (*Session, error)
	// Close discards the session. Closing an unknown id is a no-op.
	Close(ctx context.Context, id string) error
	// Len returns the number of live sessions.
	Len() int
}

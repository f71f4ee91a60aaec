package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/unclepete-20/chatbot-test/domain"
	"github.com/unclepete-20/chatbot-test/utils/log"
	"go.uber.org/zap"
)

// MemoryStore keeps sessions in process memory. Nothing survives a restart.
type MemoryStore struct {
	mode         domain.HistoryMode
	instructions string
	maxMessages  int

	mu       sync.Mutex
	sessions map[string]*domain.Session
	shared   *domain.Conversation
}

// NewMemoryStore returns a store that builds conversations anchored on
// instructions and bounded by maxMessages. In SharedHistory mode every
// session wraps the same conversation.
func NewMemoryStore(mode domain.HistoryMode, instructions string, maxMessages int) (*MemoryStore, error) {
	s := &MemoryStore{
		mode:         mode,
		instructions: instructions,
		maxMessages:  maxMessages,
		sessions:     make(map[string]*domain.Session),
	}
	switch mode {
	case domain.SessionHistory:
	case domain.SharedHistory:
		s.shared = domain.NewConversation(instructions, maxMessages)
	default:
		return nil, fmt.Errorf("unsupported history mode %q", mode)
	}
	return s, nil
}

func (s *MemoryStore) Open(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}

	var sess *domain.Session
	if s.shared != nil {
		sess = domain.NewSession(id, s.shared, false)
	} else {
		sess = domain.NewSession(id, domain.NewConversation(s.instructions, s.maxMessages), true)
	}
	s.sessions[id] = sess

	log.WithCtx(ctx).Debug("Session opened", zap.String("mode", string(s.mode)), zap.Int("live", len(s.sessions)))
	return sess, nil
}

// Close drops the session. A shared conversation outlives its sessions.
func (s *MemoryStore) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return nil
	}
	delete(s.sessions, id)
	log.WithCtx(ctx).Debug("Session closed", zap.Int("live", len(s.sessions)))
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemoryStore) Mode() domain.HistoryMode {
	return s.mode
}

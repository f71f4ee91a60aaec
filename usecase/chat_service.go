package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unclepete-20/chatbot-test/domain"
	"github.com/unclepete-20/chatbot-test/prompt"
	"github.com/unclepete-20/chatbot-test/utils/log"
)

// ErrTurnFailed wraps the cause of a steady-state turn that ended the
// connection.
var ErrTurnFailed = errors.New("turn failed")

type ChatService struct {
	llm      domain.Completer
	sessions domain.SessionStore
	broker   domain.MessageBroker

	welcomeQuestion string
}

// NewChatService wires the relay loop. broker may be nil, in which case no
// turn events are published.
func NewChatService(llm domain.Completer, sessions domain.SessionStore, broker domain.MessageBroker) *ChatService {
	return &ChatService{
		llm:             llm,
		sessions:        sessions,
		broker:          broker,
		welcomeQuestion: prompt.WelcomeQuestion,
	}
}

// Execute drives one connection. It sends the welcome reply, then answers
// every message read from input until input is closed (peer disconnect,
// returns nil) or a turn fails (an error reply is sent and ErrTurnFailed is
// returned). Execute never closes output.
func (s *ChatService) Execute(ctx context.Context, sessionID string, input <-chan string, output chan<- domain.Reply) error {
	ctx = contextWithSession(ctx, sessionID)
	logger := log.WithCtx(ctx)

	sess, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	defer func() {
		if err := s.sessions.Close(context.WithoutCancel(ctx), sessionID); err != nil {
			logger.Warn("Failed to close session", zap.Error(err))
		}
	}()

	lc := NewLifecycle(ctx)
	if err := lc.fire(ctx, triggerAccept); err != nil {
		return err
	}

	if !s.welcome(ctx, sess, output) {
		return lc.fire(ctx, triggerDisconnect)
	}
	if err := lc.fire(ctx, triggerWelcomed); err != nil {
		return err
	}

	for {
		var (
			text string
			ok   bool
		)
		select {
		case text, ok = <-input:
		case <-ctx.Done():
			ok = false
		}
		if !ok {
			logger.Debug("Peer disconnected")
			return lc.fire(ctx, triggerDisconnect)
		}

		if strings.TrimSpace(text) == "" {
			logger.Debug("Ignoring blank message")
			continue
		}

		reply, err := s.turn(ctx, sess, text)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("Peer disconnected during turn", zap.Error(err))
				return lc.fire(ctx, triggerDisconnect)
			}
			logger.Error("Turn failed", zap.Error(err))
			_ = send(ctx, output, domain.Reply{Kind: domain.ReplyKindError, Text: err.Error()})
			if fireErr := lc.fire(ctx, triggerTurnFailed); fireErr != nil {
				logger.Warn("Lifecycle transition failed", zap.Error(fireErr))
			}
			return fmt.Errorf("%w: %w", ErrTurnFailed, err)
		}

		if err := send(ctx, output, domain.Reply{Kind: domain.ReplyKindReply, Text: reply.Content}); err != nil {
			return lc.fire(ctx, triggerDisconnect)
		}
	}
}

// welcome asks the model to introduce itself on a throwaway extension of the
// history. A failure is reported to the caller but does not end the
// connection. It returns false only when the caller went away.
func (s *ChatService) welcome(ctx context.Context, sess *domain.Session, output chan<- domain.Reply) bool {
	start := time.Now()
	msgs := sess.Conversation.Extend(domain.ChatMessage{Role: domain.UserRole, Content: s.welcomeQuestion})

	reply, err := s.llm.Complete(ctx, domain.CompletionRequest{Messages: msgs, Profile: domain.WelcomeProfile})
	s.publish(ctx, domain.TurnEvent{
		SessionID:  sess.ID,
		Welcome:    true,
		Success:    err == nil,
		HistoryLen: sess.Conversation.Len(),
		Latency:    time.Since(start),
		Error:      errString(err),
		Timestamp:  start,
	})

	out := domain.Reply{Kind: domain.ReplyKindReply, Text: reply.Content, Welcome: true}
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		log.WithCtx(ctx).Warn("Welcome message failed", zap.Error(err))
		out = domain.Reply{Kind: domain.ReplyKindError, Text: err.Error(), Welcome: true}
	}
	return send(ctx, output, out) == nil
}

// turn appends the user's text, calls the model with a snapshot of the
// history and appends the reply. Isolated sessions hold the turn lock for the
// whole sequence; shared ones interleave with other connections.
func (s *ChatService) turn(ctx context.Context, sess *domain.Session, text string) (reply domain.ChatMessage, err error) {
	unlock := sess.LockTurn()
	defer unlock()

	start := time.Now()
	conv := sess.Conversation
	evicted := 0
	defer func() {
		s.publish(ctx, domain.TurnEvent{
			SessionID:  sess.ID,
			Success:    err == nil,
			HistoryLen: conv.Len(),
			Evicted:    evicted,
			Latency:    time.Since(start),
			Error:      errString(err),
			Timestamp:  start,
		})
	}()

	if err := conv.Append(domain.ChatMessage{Role: domain.UserRole, Content: text}); err != nil {
		return domain.ChatMessage{}, err
	}
	evicted += len(conv.EnforceBound())

	reply, err = s.llm.Complete(ctx, domain.CompletionRequest{
		Messages: conv.Snapshot(),
		Profile:  domain.TurnProfile,
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	reply.Role = domain.AssistantRole

	if err := conv.Append(reply); err != nil {
		return domain.ChatMessage{}, err
	}
	evicted += len(conv.EnforceBound())
	return reply, nil
}

func (s *ChatService) publish(ctx context.Context, event domain.TurnEvent) {
	if s.broker == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithCtx(ctx).Error("Failed to marshal turn event", zap.Error(err))
		return
	}
	if err := s.broker.Publish(context.WithoutCancel(ctx), domain.TurnTopic, event.SessionID, payload); err != nil {
		log.WithCtx(ctx).Warn("Failed to publish turn event", zap.Error(err))
	}
}

func send(ctx context.Context, output chan<- domain.Reply, reply domain.Reply) error {
	select {
	case output <- reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// contextWithSession tags ctx for logging unless the transport already did.
func contextWithSession(ctx context.Context, sessionID string) context.Context {
	if log.SessionID(ctx) != "" {
		return ctx
	}
	return log.WithSession(ctx, sessionID, "")
}

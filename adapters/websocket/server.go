package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/unclepete-20/chatbot-test/domain"
	"github.com/unclepete-20/chatbot-test/usecase"
	"github.com/unclepete-20/chatbot-test/utils/log"
	"go.uber.org/zap"
)

type Server struct {
	upgrader      websocket.Upgrader
	svc           *usecase.ChatService
	encoder       ReplyEncoder
	messageBroker domain.MessageBroker
	hub           *Hub

	turns       atomic.Int64
	failedTurns atomic.Int64
}

// Stats counts the turns seen by the turn listener.
type Stats struct {
	Turns       int64 `json:"turns"`
	FailedTurns int64 `json:"failed_turns"`
}

func NewServer(svc *usecase.ChatService, encoder ReplyEncoder, messageBroker domain.MessageBroker) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		svc:           svc,
		encoder:       encoder,
		messageBroker: messageBroker,
		hub:           NewHub(),
	}
}

func (s *Server) RunWebsocketHub() {
	s.hub.Run()
}

func (s *Server) GetHub() *Hub {
	return s.hub
}

func (s *Server) Stats() Stats {
	return Stats{Turns: s.turns.Load(), FailedTurns: s.failedTurns.Load()}
}

// StartTurnListener logs and counts every turn event until ctx is done or
// the broker is closed.
func (s *Server) StartTurnListener(ctx context.Context) error {
	messageChan, err := s.messageBroker.Subscribe(ctx, domain.TurnTopic, "")
	if err != nil {
		return err
	}

	go func() {
		log.WithCtx(ctx).Info("Listening to turn events")
		for msg := range messageChan {
			var event domain.TurnEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				log.WithCtx(ctx).Error("Failed to unmarshal turn event", zap.Error(err))
				continue
			}

			if event.Welcome {
				log.With(zap.String("session_id", event.SessionID)).Debug("Welcome turn finished",
					zap.Bool("success", event.Success),
					zap.Duration("latency", event.Latency))
				continue
			}

			s.turns.Add(1)
			if !event.Success {
				s.failedTurns.Add(1)
			}
			log.With(zap.String("session_id", event.SessionID)).Info("Turn finished",
				zap.Bool("success", event.Success),
				zap.Int("history_len", event.HistoryLen),
				zap.Int("evicted", event.Evicted),
				zap.Duration("latency", event.Latency),
				zap.String("error", event.Error))
		}
		log.WithCtx(ctx).Info("Turn listener stopped")
	}()
	return nil
}

// Shutdown closes every open connection.
func (s *Server) Shutdown() {
	s.hub.CloseAll()
}

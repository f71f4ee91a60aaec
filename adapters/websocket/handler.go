package websocket

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/unclepete-20/chatbot-test/domain"
	"github.com/unclepete-20/chatbot-test/usecase"
	"github.com/unclepete-20/chatbot-test/utils/log"
	"go.uber.org/zap"
)

// Handler upgrades GET /ws and runs the relay loop until the connection
// ends. Every connection gets a fresh session id.
func (s *Server) Handler(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(context.WithoutCancel(c.Request().Context()), conn, uuid.NewString())
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	client.Run()
	logger := log.WithCtx(client.Context())
	logger.Info("Client connected")

	output := make(chan domain.Reply)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for reply := range output {
			payload, err := s.encoder.Encode(reply)
			if err != nil {
				logger.Error("Failed to encode reply", zap.Error(err))
				continue
			}
			if err := client.SendMessage(payload); err != nil {
				logger.Warn("Failed to queue reply", zap.Error(err))
			}
		}
	}()

	err = s.svc.Execute(client.Context(), client.SessionID(), client.Inbound(), output)
	close(output)
	<-forwarded
	client.Close()

	switch {
	case err == nil:
		logger.Info("Client disconnected")
	case errors.Is(err, usecase.ErrTurnFailed):
		logger.Info("Connection closed after failed turn")
	default:
		logger.Error("Relay loop ended with error", zap.Error(err))
	}
	return nil
}

package main

import (
	"context"
	"errors"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/unclepete-20/chatbot-test/adapters/hasher"
	"github.com/unclepete-20/chatbot-test/adapters/http"
	"github.com/unclepete-20/chatbot-test/adapters/llm"
	"github.com/unclepete-20/chatbot-test/adapters/message_broker"
	"github.com/unclepete-20/chatbot-test/adapters/session"
	"github.com/unclepete-20/chatbot-test/adapters/websocket"
	"github.com/unclepete-20/chatbot-test/config"
	"github.com/unclepete-20/chatbot-test/prompt"
	"github.com/unclepete-20/chatbot-test/usecase"
	"github.com/unclepete-20/chatbot-test/utils/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.With().Fatal("Failed to load configuration", zap.Error(err))
	}
	log.Configure(cfg.Debug)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	instructions, err := prompt.Load(cfg.History.SystemPromptFile)
	if err != nil {
		log.With().Fatal("Failed to load system prompt", zap.Error(err))
	}
	fingerprint := hasher.Short(hasher.New(), []byte(instructions))
	log.With(zap.String("fingerprint", fingerprint), zap.Int("chars", len(instructions))).Info("System prompt loaded")

	completer, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		log.With().Fatal("Failed to create completion client", zap.Error(err))
	}

	sessions, err := session.NewMemoryStore(cfg.History.Mode, instructions, cfg.History.MaxMessages)
	if err != nil {
		log.With().Fatal("Failed to create session store", zap.Error(err))
	}

	broker := message_broker.NewChannelMessageBroker()
	svc := usecase.NewChatService(completer, sessions, broker)

	encoder, err := websocket.NewReplyEncoder(cfg.Reply.Format)
	if err != nil {
		log.With().Fatal("Failed to create reply encoder", zap.Error(err))
	}

	server := websocket.NewServer(svc, encoder, broker)
	server.RunWebsocketHub()
	if err := server.StartTurnListener(ctx); err != nil {
		log.With().Fatal("Failed to start turn listener", zap.Error(err))
	}

	pageHandler := http.NewPageHandler(server, sessions, http.Info{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		HistoryMode: cfg.History.Mode,
		ReplyFormat: cfg.Reply.Format,
		Prompt:      fingerprint,
	})

	e := echo.New()
	e.HideBanner = true
	e.Renderer = http.NewRenderer()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		MaxAge:       86400,
	}))
	e.Use(middleware.BodyLimit("64K"))

	e.GET("/", pageHandler.ChatPage)
	e.GET("/ws", server.Handler)

	api := e.Group("/api/v1")
	api.GET("/health", pageHandler.HealthCheck)

	go func() {
		log.With(
			zap.String("addr", cfg.Server.Addr),
			zap.String("provider", cfg.LLM.Provider),
			zap.String("model", cfg.LLM.Model),
			zap.String("history_mode", string(cfg.History.Mode)),
			zap.String("reply_format", cfg.Reply.Format),
		).Info("Starting server")
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			log.With().Error("Server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.With().Info("Shutting down")

	server.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.With().Error("Failed to shut down HTTP server", zap.Error(err))
	}
	if err := broker.Close(); err != nil {
		log.With().Warn("Failed to close message broker", zap.Error(err))
	}
}

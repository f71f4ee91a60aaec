package http

import (
	"embed"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/unclepete-20/chatbot-test/adapters/websocket"
	"github.com/unclepete-20/chatbot-test/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Info is the static part of the health response.
type Info struct {
	Provider    string             `json:"provider"`
	Model       string             `json:"model"`
	HistoryMode domain.HistoryMode `json:"history_mode"`
	ReplyFormat string             `json:"reply_format"`
	Prompt      string             `json:"prompt_fingerprint"`
}

type PageHandler struct {
	wsServer *websocket.Server
	sessions domain.SessionStore
	info     Info
	started  time.Time
}

func NewPageHandler(wsServer *websocket.Server, sessions domain.SessionStore, info Info) *PageHandler {
	return &PageHandler{
		wsServer: wsServer,
		sessions: sessions,
		info:     info,
		started:  time.Now(),
	}
}

// Renderer implements echo.Renderer over the embedded templates.
type Renderer struct {
	templates *template.Template
}

func NewRenderer() *Renderer {
	return &Renderer{templates: template.Must(template.ParseFS(templateFS, "templates/*.html"))}
}

func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// ChatPage serves the browser chat UI
func (h *PageHandler) ChatPage(c echo.Context) error {
	return c.Render(http.StatusOK, "home.html", map[string]interface{}{
		"ReplyFormat": h.info.ReplyFormat,
	})
}

// Health check endpoint
func (h *PageHandler) HealthCheck(c echo.Context) error {
	stats := h.wsServer.Stats()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"timestamp":    time.Now().UTC(),
		"uptime":       time.Since(h.started).Round(time.Second).String(),
		"service":      "waste-classification-relay",
		"clients":      h.wsServer.GetHub().ClientCount(),
		"sessions":     h.sessions.Len(),
		"turns":        stats.Turns,
		"failed_turns": stats.FailedTurns,
		"info":         h.info,
	})
}

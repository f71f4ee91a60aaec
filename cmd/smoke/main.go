// Command smoke checks a running relay end to end: health endpoint, welcome
// reply and one conversation turn.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	flag "github.com/spf13/pflag"

	"github.com/unclepete-20/chatbot-test/domain"
)

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "HTTP base URL of the relay")
	question := flag.StringP("question", "q", "¿En qué bolsa va una botella de plástico?", "question sent after the welcome")
	timeout := flag.Duration("timeout", 60*time.Second, "deadline for each reply")
	flag.Parse()

	fmt.Println("🚀 Starting relay smoke test...")

	if err := checkHealth(*baseURL); err != nil {
		log.Fatalf("Health check failed: %v", err)
	}
	fmt.Println("✅ Health check passed")

	wsURL, err := websocketURL(*baseURL)
	if err != nil {
		log.Fatalf("Invalid base URL: %v", err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", wsURL, err)
	}
	defer conn.Close()

	welcome, err := readReply(conn, *timeout)
	if err != nil {
		log.Fatalf("Failed to read welcome: %v", err)
	}
	if welcome.Kind == domain.ReplyKindError {
		log.Fatalf("Welcome failed: %s", welcome.Text)
	}
	fmt.Printf("✅ Welcome: %s\n", welcome.Text)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(*question)); err != nil {
		log.Fatalf("Failed to send question: %v", err)
	}
	answer, err := readReply(conn, *timeout)
	if err != nil {
		log.Fatalf("Failed to read answer: %v", err)
	}
	if answer.Kind == domain.ReplyKindError {
		log.Fatalf("Turn failed: %s", answer.Text)
	}
	fmt.Printf("✅ Answer: %s\n", answer.Text)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	fmt.Println("✅ Smoke test completed successfully!")
}

func checkHealth(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned status %d: %s", resp.StatusCode, string(body))
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("unexpected status %q", health.Status)
	}
	return nil
}

func websocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	return u.String(), nil
}

// readReply expects the envelope reply format.
func readReply(conn *websocket.Conn, timeout time.Duration) (domain.Reply, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return domain.Reply{}, err
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		return domain.Reply{}, err
	}
	var reply domain.Reply
	if err := json.Unmarshal(payload, &reply); err != nil {
		return domain.Reply{}, fmt.Errorf("decoding reply %q: %w", payload, err)
	}
	return reply, nil
}

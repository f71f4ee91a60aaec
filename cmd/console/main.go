package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	flag "github.com/spf13/pflag"

	"github.com/unclepete-20/chatbot-test/domain"
)

func main() {
	serverURL := flag.StringP("url", "u", "ws://localhost:8080/ws", "websocket endpoint of the relay")
	raw := flag.Bool("raw", false, "print frames as received instead of decoding reply envelopes")
	flag.Parse()

	// Connect to the WebSocket server
	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}
	defer conn.Close()

	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Println("Connection closed:", err)
				os.Exit(0)
			}
			fmt.Printf("\n%s\n> ", render(message, *raw))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down...")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Type a question about waste sorting (type 'exit' to quit):")
	fmt.Print("> ")
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "exit" {
			break
		}
		if text == "" {
			fmt.Print("> ")
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
			log.Println("Error sending message:", err)
			break
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func render(message []byte, raw bool) string {
	if raw {
		return string(message)
	}
	var reply domain.Reply
	if err := json.Unmarshal(message, &reply); err != nil || reply.Kind == "" {
		return string(message)
	}
	prefix := "bot"
	if reply.Welcome {
		prefix = "bot (welcome)"
	}
	if reply.Kind == domain.ReplyKindError {
		prefix += " error"
	}
	return fmt.Sprintf("[%s] %s", prefix, reply.Text)
}

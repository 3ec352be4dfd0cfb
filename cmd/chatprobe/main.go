// Command main is a terminal client for exercising the chat WebSocket API.
// It connects with a token, prints every event it receives, and sends stdin
// lines as message frames (slash commands included).
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
)

type frame struct {
	Type      string `json:"type"`
	ChannelID uint   `json:"channel_id,omitempty"`
	Content   string `json:"content"`
}

func main() {
	addr := flag.String("addr", "localhost:8460", "server host:port")
	token := flag.String("token", "", "identity token (required)")
	channelID := flag.Uint("channel", 0, "channel ID to send messages to")
	flag.Parse()

	if *token == "" {
		log.Fatal("-token is required; mint one with the seed tool")
	}

	url := fmt.Sprintf("ws://%s/api/ws/chat?token=%s", *addr, *token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Printf("read: %v", err)
				return
			}
			fmt.Printf("<< %s\n", message)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		out, err := json.Marshal(frame{
			Type:      "message",
			ChannelID: *channelID,
			Content:   line,
		})
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			log.Printf("write: %v", err)
			break
		}
	}
	<-done
}

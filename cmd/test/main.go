package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

// Message types matching the server
type ClientMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type PromptPayload struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type ControlPayload struct {
	Action string `json:"action"`
}

type ServerMessage struct {
	Type     string          `json:"type"`
	ClientID string          `json:"clientId,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

type StatePayload struct {
	State string `json:"state"`
}

type NoticePayload struct {
	Message string `json:"message"`
}

type SnapshotPayload struct {
	State   string `json:"state"`
	Prompts []struct {
		ID     string  `json:"id"`
		Text   string  `json:"text"`
		Weight float64 `json:"weight"`
	} `json:"prompts"`
	FilteredPrompts []string `json:"filteredPrompts"`
}

func sendMessage(conn *websocket.Conn, msg ClientMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Marshal error: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("Send error: %v", err)
	}
}

func main() {
	// Flags
	serverURL := flag.String("server", "ws://localhost:8080/ws", "WebSocket server URL")
	prompt := flag.String("prompt", "minimal techno", "Prompt text to steer the music")
	weight := flag.Float64("weight", 1.0, "Prompt weight (0-2)")
	duration := flag.Duration("duration", 30*time.Second, "How long to stream before stopping")
	flag.Parse()

	log.Printf("🔌 Connecting to %s...", *serverURL)

	// Connect to server
	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Println("✅ Connected!")

	// Handle interrupt
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})

	// Read responses from server
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}

			var msg ServerMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				log.Println("Parse error:", err)
				continue
			}

			switch msg.Type {
			case "state":
				var payload StatePayload
				json.Unmarshal(msg.Payload, &payload)
				log.Printf("📊 State: %s", payload.State)

			case "notice":
				var payload NoticePayload
				json.Unmarshal(msg.Payload, &payload)
				log.Printf("📢 %s", payload.Message)

			case "snapshot":
				var payload SnapshotPayload
				json.Unmarshal(msg.Payload, &payload)
				log.Printf("📋 Snapshot: state=%s prompts=%d filtered=%d",
					payload.State, len(payload.Prompts), len(payload.FilteredPrompts))
				for _, p := range payload.Prompts {
					log.Printf("   🎵 %q weight=%.2f", p.Text, p.Weight)
				}

			case "error":
				log.Printf("❌ Error: %s", string(msg.Payload))
			}
		}
	}()

	// Wait for welcome snapshot
	time.Sleep(500 * time.Millisecond)

	// Add a prompt and start playback
	log.Printf("📤 Adding prompt %q (weight %.2f)", *prompt, *weight)
	sendMessage(conn, ClientMessage{
		Type:    "prompt_add",
		Payload: PromptPayload{Text: *prompt, Weight: *weight},
	})

	log.Println("▶️  Starting playback...")
	sendMessage(conn, ClientMessage{
		Type:    "control",
		Payload: ControlPayload{Action: "play"},
	})

	// Stream until duration elapses or interrupt
	select {
	case <-done:
		log.Println("Connection closed")
		return
	case <-interrupt:
		log.Println("\n👋 Interrupted, stopping...")
	case <-time.After(*duration):
		log.Println("⏰ Duration elapsed, stopping...")
	}

	sendMessage(conn, ClientMessage{
		Type:    "control",
		Payload: ControlPayload{Action: "stop"},
	})
	time.Sleep(500 * time.Millisecond)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

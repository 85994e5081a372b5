package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/utsavbalhara/promptdj/config"
	"github.com/utsavbalhara/promptdj/messages"
	"github.com/utsavbalhara/promptdj/session"
)

// Server exposes the session controller over WebSocket. Every connected
// client steers the same live session and receives the same broadcasts.
type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	controller *session.Controller
	config     *config.Config

	mu      sync.RWMutex
	clients map[string]*client
}

func New(cfg *config.Config, controller *session.Controller) *Server {
	s := &Server{
		controller: controller,
		config:     cfg,
		clients:    make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:    64 * 1024,
			WriteBufferSize:   64 * 1024,
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				// Check allowed origins
				origin := r.Header.Get("Origin")
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}

	// Fan controller events out to every connected client.
	controller.OnStateChanged = func(state session.PlaybackState) {
		s.broadcast(messages.NewStateMessage(state.String()))
	}
	controller.OnNotice = func(message string) {
		s.broadcast(messages.NewNoticeMessage(message))
	}
	controller.OnSnapshot = func(snap session.Snapshot) {
		s.broadcast(messages.NewSnapshotMessage(snap))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Start begins listening for connections
func (s *Server) Start() error {
	log.Printf("🚀 WebSocket server starting on port %d", s.config.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost:%d/ws", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("🛑 Shutting down server...")

	s.mu.Lock()
	for _, c := range s.clients {
		c.close()
	}
	s.clients = make(map[string]*client)
	s.mu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := newClient(conn)
	s.addClient(c)
	defer s.removeClient(c)
	go c.writePump()

	log.Printf("✅ Client connected: %s", c.id)

	// New clients start from the current full state.
	if snap, err := s.controller.Snapshot(); err == nil {
		c.queueMessage(messages.NewSnapshotMessage(snap))
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.handleClientMessage(c, raw)
	}

	c.close()
	log.Printf("🔌 Client disconnected: %s", c.id)
}

func (s *Server) handleClientMessage(c *client, raw []byte) {
	var msg messages.ClientMessage
	if err := sonic.Unmarshal(raw, &msg); err != nil {
		c.queueMessage(messages.NewErrorMessage(c.id, messages.ErrCodeInvalidMessage, "malformed message"))
		return
	}

	switch msg.Type {
	case "prompt_add":
		var p messages.PromptPayload
		if err := sonic.Unmarshal(msg.Payload, &p); err != nil || p.Text == "" {
			c.queueMessage(messages.NewErrorMessage(c.id, messages.ErrCodeInvalidPayload, "prompt_add needs text and weight"))
			return
		}
		if _, err := s.controller.AddPrompt(p.Text, p.Weight); err != nil {
			c.queueMessage(messages.NewErrorMessage(c.id, messages.ErrCodeSessionClosed, err.Error()))
		}

	case "prompt_edit":
		var p messages.PromptPayload
		if err := sonic.Unmarshal(msg.Payload, &p); err != nil || p.ID == "" {
			c.queueMessage(messages.NewErrorMessage(c.id, messages.ErrCodeInvalidPayload, "prompt_edit needs id, text, and weight"))
			return
		}
		if err := s.controller.EditPrompt(p.ID, p.Text, p.Weight); err != nil {
			c.queueMessage(messages.NewErrorMessage(c.id, messages.ErrCodeSessionClosed, err.Error()))
		}

	case "prompt_remove":
		var p messages.PromptPayload
		if err := sonic.Unmarshal(msg.Payload, &p); err != nil || p.ID == "" {
			c.queueMessage(messages.NewErrorMessage(c.id, messages.ErrCodeInvalidPayload, "prompt_remove needs id"))
			return
		}
		if err := s.controller.RemovePrompt(p.ID); err != nil {
			c.queueMessage(messages.NewErrorMessage(c.id, messages.ErrCodeSessionClosed, err.Error()))
		}

	case "config":
		var p messages.ConfigPayload
		if err := sonic.Unmarshal(msg.Payload, &p); err != nil {
			c.queueMessage(messages.NewErrorMessage(c.id, messages.ErrCodeInvalidPayload, "config payload is malformed"))
			return
		}
		if err := s.controller.SetConfig(p.Config); err != nil {
			c.queueMessage(messages.NewErrorMessage(c.id, messages.ErrCodeSessionClosed, err.Error()))
		}

	case "control":
		var p messages.ControlPayload
		if err := sonic.Unmarshal(msg.Payload, &p); err != nil {
			c.queueMessage(messages.NewErrorMessage(c.id, messages.ErrCodeInvalidPayload, "control payload is malformed"))
			return
		}
		s.handleControl(c, p.Action)

	default:
		c.queueMessage(messages.NewErrorMessage(c.id, messages.ErrCodeInvalidMessage, "unknown message type: "+msg.Type))
	}
}

func (s *Server) handleControl(c *client, action string) {
	var err error
	switch action {
	case "play":
		err = s.controller.Play()
	case "pause":
		err = s.controller.Pause()
	case "stop":
		err = s.controller.Stop()
	case "reset":
		err = s.controller.ResetContext()
	default:
		c.queueMessage(messages.NewErrorMessage(c.id, messages.ErrCodeUnknownAction, "unknown control action: "+action))
		return
	}
	if err != nil {
		c.queueMessage(messages.NewErrorMessage(c.id, messages.ErrCodeSessionClosed, err.Error()))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := "unknown"
	if snap, err := s.controller.Snapshot(); err == nil {
		state = snap.State
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","state":%q,"clients":%d}`, state, s.clientCount())
}

func (s *Server) broadcast(msg *messages.ServerMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		c.queueMessage(msg)
	}
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
}

func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

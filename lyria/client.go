package lyria

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// DefaultEndpoint is the bidi music generation endpoint.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateMusic"

const sendBufferSize = 64

var (
	// ErrSessionClosed is returned by control operations after Close or
	// after the transport has gone away.
	ErrSessionClosed = errors.New("lyria: session closed")
	// ErrSendBufferFull is returned when the outbound queue cannot accept
	// another frame.
	ErrSendBufferFull = errors.New("lyria: send buffer full")
)

// Config carries the connection parameters for one session.
type Config struct {
	Endpoint string // empty means DefaultEndpoint
	APIKey   string
	Model    string // empty means DefaultModel
}

// Callbacks receive server events in arrival order. All callbacks are
// invoked from the session's read goroutine, so handlers must hand the
// event off quickly rather than block.
type Callbacks struct {
	OnSetupComplete  func()
	OnFilteredPrompt func(text, reason string)
	OnAudioChunk     func(pcm []byte)
	OnError          func(err error)
	OnClose          func()
}

// Session is one live connection to the music service. Control operations
// enqueue frames for the write pump and never block on the network.
type Session struct {
	conn      *websocket.Conn
	sendChan  chan clientFrame
	doneChan  chan struct{}
	callbacks Callbacks

	mu     sync.RWMutex
	closed bool
}

// Connect dials the service, sends the setup frame, and starts the
// read/write pumps. The returned session stays live until Close or a
// transport failure, reported through the callbacks.
func Connect(ctx context.Context, cfg Config, cb Callbacks) (*Session, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", cfg.APIKey)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial music service: %w", err)
	}

	s := &Session{
		conn:      conn,
		sendChan:  make(chan clientFrame, sendBufferSize),
		doneChan:  make(chan struct{}),
		callbacks: cb,
	}

	// The setup frame must be first on the wire, before the write pump
	// can interleave control frames.
	raw, err := sonic.Marshal(clientFrame{Setup: &setupPayload{Model: model}})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to encode setup frame: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send setup frame: %w", err)
	}

	go s.readPump()
	go s.writePump()

	log.Printf("✅ Connected to music service (%s)", model)
	return s, nil
}

// SetWeightedPrompts replaces the service's active prompt set.
func (s *Session) SetWeightedPrompts(prompts []WeightedPrompt) error {
	return s.enqueue(clientFrame{ClientContent: &clientContent{WeightedPrompts: prompts}})
}

// SetMusicGenerationConfig replaces the generation settings.
func (s *Session) SetMusicGenerationConfig(cfg MusicGenerationConfig) error {
	return s.enqueue(clientFrame{MusicGenerationConfig: &cfg})
}

// Play asks the service to start (or resume) streaming audio.
func (s *Session) Play() error {
	return s.enqueue(clientFrame{PlaybackControl: controlPlay})
}

// Pause asks the service to stop streaming while keeping the context warm.
func (s *Session) Pause() error {
	return s.enqueue(clientFrame{PlaybackControl: controlPause})
}

// Stop ends the current stream.
func (s *Session) Stop() error {
	return s.enqueue(clientFrame{PlaybackControl: controlStop})
}

// ResetContext asks the service to forget the generation context while
// keeping the connection alive.
func (s *Session) ResetContext() error {
	return s.enqueue(clientFrame{PlaybackControl: controlResetContext})
}

func (s *Session) enqueue(frame clientFrame) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSessionClosed
	}

	select {
	case s.sendChan <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// readPump delivers server frames to the callbacks in arrival order.
func (s *Session) readPump() {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.RLock()
			closed := s.closed
			s.mu.RUnlock()
			if closed {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("🔌 Music service closed the session")
				if s.callbacks.OnClose != nil {
					s.callbacks.OnClose()
				}
			} else {
				log.Printf("❌ Music service read error: %v", err)
				if s.callbacks.OnError != nil {
					s.callbacks.OnError(err)
				}
			}
			return
		}

		var frame serverFrame
		if err := sonic.Unmarshal(raw, &frame); err != nil {
			log.Printf("⚠️ Failed to parse server frame: %v", err)
			continue
		}
		s.dispatch(&frame)
	}
}

func (s *Session) dispatch(frame *serverFrame) {
	if len(frame.SetupComplete) > 0 {
		log.Printf("📥 Music service setup complete")
		if s.callbacks.OnSetupComplete != nil {
			s.callbacks.OnSetupComplete()
		}
	}

	if frame.FilteredPrompt != nil {
		log.Printf("📥 Prompt filtered: %q (%s)", frame.FilteredPrompt.Text, frame.FilteredPrompt.FilteredReason)
		if s.callbacks.OnFilteredPrompt != nil {
			s.callbacks.OnFilteredPrompt(frame.FilteredPrompt.Text, frame.FilteredPrompt.FilteredReason)
		}
	}

	if frame.ServerContent != nil {
		for _, chunk := range frame.ServerContent.AudioChunks {
			data, err := base64.StdEncoding.DecodeString(chunk.Data)
			if err != nil {
				log.Printf("⚠️ Invalid base64 audio chunk: %v", err)
				continue
			}
			if s.callbacks.OnAudioChunk != nil {
				s.callbacks.OnAudioChunk(data)
			}
		}
	}
}

// writePump serializes all outgoing frames onto the connection.
func (s *Session) writePump() {
	for {
		select {
		case frame := <-s.sendChan:
			raw, err := sonic.Marshal(frame)
			if err != nil {
				log.Printf("⚠️ Failed to encode frame: %v", err)
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				// The read pump surfaces the failure; just log here.
				log.Printf("❌ Music service write error: %v", err)
			}
		case <-s.doneChan:
			s.conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			return
		}
	}
}

// Close tears the connection down. Safe to call more than once. The
// error and close callbacks are suppressed for a locally closed session.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.doneChan)
	return s.conn.Close()
}

package lyria

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// testService is a fake music endpoint. Every inbound frame lands on
// frames; the test drives outbound traffic through send.
type testService struct {
	srv    *httptest.Server
	keys   chan string
	frames chan []byte
	send   chan []byte
}

func newTestService(t *testing.T) *testService {
	t.Helper()
	ts := &testService{
		keys:   make(chan string, 1),
		frames: make(chan []byte, 16),
		send:   make(chan []byte, 16),
	}
	upgrader := websocket.Upgrader{}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.keys <- r.URL.Query().Get("key")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		go func() {
			for raw := range ts.send {
				if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
					return
				}
			}
		}()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ts.frames <- raw
		}
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testService) endpoint() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

func (ts *testService) nextFrame(t *testing.T) []byte {
	t.Helper()
	select {
	case raw := <-ts.frames:
		return raw
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client frame")
		return nil
	}
}

func TestConnectSendsSetupFirst(t *testing.T) {
	ts := newTestService(t)

	s, err := Connect(context.Background(), Config{
		Endpoint: ts.endpoint(),
		APIKey:   "test-key",
	}, Callbacks{})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	if key := <-ts.keys; key != "test-key" {
		t.Errorf("key query param = %q, want test-key", key)
	}

	var frame clientFrame
	if err := sonic.Unmarshal(ts.nextFrame(t), &frame); err != nil {
		t.Fatalf("unmarshal setup: %v", err)
	}
	if frame.Setup == nil || frame.Setup.Model != DefaultModel {
		t.Errorf("first frame = %+v, want setup with default model", frame)
	}
}

func TestControlOperationsEncodeFrames(t *testing.T) {
	ts := newTestService(t)

	s, err := Connect(context.Background(), Config{Endpoint: ts.endpoint(), APIKey: "k"}, Callbacks{})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()
	ts.nextFrame(t) // setup

	if err := s.SetWeightedPrompts([]WeightedPrompt{{Text: "jazz fusion", Weight: 1.5}}); err != nil {
		t.Fatalf("set prompts: %v", err)
	}
	var frame clientFrame
	if err := sonic.Unmarshal(ts.nextFrame(t), &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.ClientContent == nil || len(frame.ClientContent.WeightedPrompts) != 1 {
		t.Fatalf("prompt frame = %+v", frame)
	}
	if got := frame.ClientContent.WeightedPrompts[0]; got.Text != "jazz fusion" || got.Weight != 1.5 {
		t.Errorf("weighted prompt = %+v", got)
	}

	if err := s.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	frame = clientFrame{}
	if err := sonic.Unmarshal(ts.nextFrame(t), &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.PlaybackControl != controlPlay {
		t.Errorf("playbackControl = %q, want %q", frame.PlaybackControl, controlPlay)
	}

	if err := s.ResetContext(); err != nil {
		t.Fatalf("reset context: %v", err)
	}
	frame = clientFrame{}
	if err := sonic.Unmarshal(ts.nextFrame(t), &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame.PlaybackControl != controlResetContext {
		t.Errorf("playbackControl = %q, want %q", frame.PlaybackControl, controlResetContext)
	}
}

func TestServerEventsReachCallbacks(t *testing.T) {
	ts := newTestService(t)

	setupDone := make(chan struct{}, 1)
	filtered := make(chan [2]string, 1)
	chunks := make(chan []byte, 1)

	s, err := Connect(context.Background(), Config{Endpoint: ts.endpoint(), APIKey: "k"}, Callbacks{
		OnSetupComplete:  func() { setupDone <- struct{}{} },
		OnFilteredPrompt: func(text, reason string) { filtered <- [2]string{text, reason} },
		OnAudioChunk:     func(pcm []byte) { chunks <- pcm },
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	ts.send <- []byte(`{"setupComplete":{}}`)
	select {
	case <-setupDone:
	case <-time.After(2 * time.Second):
		t.Fatal("setupComplete callback never fired")
	}

	ts.send <- []byte(`{"filteredPrompt":{"text":"bad","filteredReason":"SAFETY"}}`)
	select {
	case got := <-filtered:
		if got[0] != "bad" || got[1] != "SAFETY" {
			t.Errorf("filtered prompt = %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("filteredPrompt callback never fired")
	}

	pcm := []byte{0x01, 0x00, 0xff, 0xff}
	encoded := base64.StdEncoding.EncodeToString(pcm)
	ts.send <- []byte(`{"serverContent":{"audioChunks":[{"data":"` + encoded + `"}]}}`)
	select {
	case got := <-chunks:
		if string(got) != string(pcm) {
			t.Errorf("decoded chunk = %v, want %v", got, pcm)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("audio chunk callback never fired")
	}
}

func TestClosedSessionRejectsOperations(t *testing.T) {
	ts := newTestService(t)

	s, err := Connect(context.Background(), Config{Endpoint: ts.endpoint(), APIKey: "k"}, Callbacks{})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	if err := s.Play(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("play after close = %v, want ErrSessionClosed", err)
	}
	if err := s.SetWeightedPrompts(nil); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("set prompts after close = %v, want ErrSessionClosed", err)
	}
}

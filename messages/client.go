package messages

import (
	"encoding/json"

	"github.com/utsavbalhara/promptdj/lyria"
)

// ClientMessage represents a message from a frontend client
type ClientMessage struct {
	Type    string          `json:"type"` // "prompt_add", "prompt_edit", "prompt_remove", "config", "control"
	Payload json.RawMessage `json:"payload"`
}

// PromptPayload carries a weighted prompt add/edit/remove
type PromptPayload struct {
	ID     string  `json:"id,omitempty"` // assigned by the server on add
	Text   string  `json:"text"`
	Weight float64 `json:"weight"` // clamped to [0,2]
}

// ConfigPayload carries new generation settings
type ConfigPayload struct {
	Config lyria.MusicGenerationConfig `json:"config"`
}

// ControlPayload contains playback commands
type ControlPayload struct {
	Action string `json:"action"` // "play", "pause", "stop", "reset"
}

package lyria

import "encoding/json"

// Bidi wire frames. Each direction uses one envelope with exactly one
// optional field set per frame.

type clientFrame struct {
	Setup                 *setupPayload          `json:"setup,omitempty"`
	ClientContent         *clientContent         `json:"clientContent,omitempty"`
	MusicGenerationConfig *MusicGenerationConfig `json:"musicGenerationConfig,omitempty"`
	PlaybackControl       string                 `json:"playbackControl,omitempty"`
}

type setupPayload struct {
	Model string `json:"model"`
}

type clientContent struct {
	WeightedPrompts []WeightedPrompt `json:"weightedPrompts"`
}

// Playback control verbs the service accepts.
const (
	controlPlay         = "PLAY"
	controlPause        = "PAUSE"
	controlStop         = "STOP"
	controlResetContext = "RESET_CONTEXT"
)

type serverFrame struct {
	// SetupComplete is an empty object on the wire; presence is the signal.
	SetupComplete  json.RawMessage `json:"setupComplete,omitempty"`
	FilteredPrompt *FilteredPrompt `json:"filteredPrompt,omitempty"`
	ServerContent  *serverContent  `json:"serverContent,omitempty"`
}

// FilteredPrompt reports a prompt text the service refused to honor.
type FilteredPrompt struct {
	Text           string `json:"text"`
	FilteredReason string `json:"filteredReason"`
}

type serverContent struct {
	AudioChunks []audioChunk `json:"audioChunks"`
}

type audioChunk struct {
	Data string `json:"data"` // base64 PCM16LE
}

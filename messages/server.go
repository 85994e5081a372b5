package messages

// Error codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeUnknownAction  = "UNKNOWN_ACTION"
	ErrCodeSessionClosed  = "SESSION_CLOSED"
)

// Message types
const (
	TypeState    = "state"
	TypeNotice   = "notice"
	TypeSnapshot = "snapshot"
	TypeError    = "error"
)

// ServerMessage represents a message sent to frontend clients
type ServerMessage struct {
	Type     string      `json:"type"` // "state", "notice", "snapshot", "error"
	ClientID string      `json:"clientId,omitempty"`
	Payload  interface{} `json:"payload"`
}

// StatePayload announces a playback state transition
type StatePayload struct {
	State string `json:"state"` // "stopped", "loading", "playing", "paused"
}

// NoticePayload carries human-readable events: rejected prompts, send
// failures, connection loss
type NoticePayload struct {
	Message string `json:"message"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewStateMessage creates a playback state broadcast
func NewStateMessage(state string) *ServerMessage {
	return &ServerMessage{
		Type: TypeState,
		Payload: StatePayload{
			State: state,
		},
	}
}

// NewNoticeMessage creates a notice broadcast
func NewNoticeMessage(message string) *ServerMessage {
	return &ServerMessage{
		Type: TypeNotice,
		Payload: NoticePayload{
			Message: message,
		},
	}
}

// NewSnapshotMessage creates a full-state broadcast
func NewSnapshotMessage(snapshot interface{}) *ServerMessage {
	return &ServerMessage{
		Type:    TypeSnapshot,
		Payload: snapshot,
	}
}

// NewErrorMessage creates an error reply for one client
func NewErrorMessage(clientID, code, message string) *ServerMessage {
	return &ServerMessage{
		Type:     TypeError,
		ClientID: clientID,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}

package ws

import (
	"time"

	"fluency/internal/domain"
)

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types
const (
	MsgBegin          MessageType = "begin"
	MsgSubmitResponse MessageType = "submit_response"
	MsgPing           MessageType = "ping"
)

// Server → Client message types
const (
	MsgConnected          MessageType = "connected"
	MsgError              MessageType = "error"
	MsgTrialStarted       MessageType = "trial_started"
	MsgPrimeShown         MessageType = "prime_shown"
	MsgPrimeCleared       MessageType = "prime_cleared"
	MsgInputLocked        MessageType = "input_locked"
	MsgInputUnlocked      MessageType = "input_unlocked"
	MsgInputCleared       MessageType = "input_cleared"
	MsgTrialEnded         MessageType = "trial_ended"
	MsgExperimentFinished MessageType = "experiment_finished"
	MsgPong               MessageType = "pong"
)

// eventMessages maps session events onto the wire
var eventMessages = map[domain.EventType]MessageType{
	domain.EventTrialStarted:       MsgTrialStarted,
	domain.EventPrimeShown:         MsgPrimeShown,
	domain.EventPrimeCleared:       MsgPrimeCleared,
	domain.EventInputLocked:        MsgInputLocked,
	domain.EventInputUnlocked:      MsgInputUnlocked,
	domain.EventInputCleared:       MsgInputCleared,
	domain.EventTrialEnded:         MsgTrialEnded,
	domain.EventExperimentFinished: MsgExperimentFinished,
	domain.EventError:              MsgError,
}

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, payload interface{}) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// FromEvent converts a session event into its wire message
func FromEvent(event *domain.SessionEvent) (*ServerMessage, bool) {
	msgType, ok := eventMessages[event.Type]
	if !ok {
		return nil, false
	}
	return &ServerMessage{
		Type:      msgType,
		Payload:   event.Payload,
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
	}, true
}

// Client message payloads

// SubmitResponsePayload is the payload for submit_response message
type SubmitResponsePayload struct {
	Text string `json:"text"`
}

// Server message payloads

// ConnectedPayload is the payload for connected message
type ConnectedPayload struct {
	SessionID string                 `json:"sessionId"`
	Welcome   string                 `json:"welcome,omitempty"`
	State     map[string]interface{} `json:"state"`
}

// ErrorPayload is the payload for error message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeInvalidAction  = "INVALID_ACTION"
	ErrCodeInputLocked    = "INPUT_LOCKED"
	ErrCodeTrialEnded     = "TRIAL_ENDED"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

package domain

import "time"

// EventType represents the type of session event
type EventType string

const (
	EventTrialStarted       EventType = "TRIAL_STARTED"
	EventPrimeShown         EventType = "PRIME_SHOWN"
	EventPrimeCleared       EventType = "PRIME_CLEARED"
	EventInputLocked        EventType = "INPUT_LOCKED"
	EventInputUnlocked      EventType = "INPUT_UNLOCKED"
	EventInputCleared       EventType = "INPUT_CLEARED"
	EventTrialEnded         EventType = "TRIAL_ENDED"
	EventExperimentFinished EventType = "EXPERIMENT_FINISHED"
	EventError              EventType = "ERROR"
)

// SessionEvent represents something the participant's view must react to
type SessionEvent struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"sessionId"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a new session event
func NewEvent(eventType EventType, sessionID string, payload interface{}) *SessionEvent {
	return &SessionEvent{
		Type:      eventType,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Payload types for different events

// TrialStartedPayload is sent when a category trial begins
type TrialStartedPayload struct {
	Index      int    `json:"index"`
	Total      int    `json:"total"`
	Category   string `json:"category"`
	DurationMS int64  `json:"durationMs"`
}

// PrimePayload carries the word now on the prime display
type PrimePayload struct {
	Word string `json:"word"`
}

// TrialEndedPayload is sent when a trial's deadline passes
type TrialEndedPayload struct {
	Result *TrialResult `json:"result"`
}

// ExperimentFinishedPayload is sent once after the last trial
type ExperimentFinishedPayload struct {
	Results []*TrialResult `json:"results"`
}

// ErrorPayload is sent when an error occurs
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

package domain

import "time"

// ConnectionStatus represents a participant's connection state
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "CONNECTED"
	StatusDisconnected ConnectionStatus = "DISCONNECTED"
)

// Participant is the person taking the experiment in a session
type Participant struct {
	Label    string           `json:"label,omitempty"`
	Status   ConnectionStatus `json:"status"`
	JoinedAt time.Time        `json:"joinedAt"`
}

// NewParticipant creates a disconnected participant with the given label
func NewParticipant(label string) *Participant {
	return &Participant{
		Label:    label,
		Status:   StatusDisconnected,
		JoinedAt: time.Now(),
	}
}

// IsConnected returns true if the participant is currently connected
func (p *Participant) IsConnected() bool {
	return p.Status == StatusConnected
}

// Disconnect marks the participant as disconnected
func (p *Participant) Disconnect() {
	p.Status = StatusDisconnected
}

// Reconnect marks the participant as connected
func (p *Participant) Reconnect() {
	p.Status = StatusConnected
}

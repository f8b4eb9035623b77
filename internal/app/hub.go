package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"fluency/internal/domain"
	"fluency/internal/protocol"
)

const (
	// DefaultSessionTTL is how long an idle or finished session is kept
	DefaultSessionTTL = 2 * time.Hour

	// cleanupInterval is how often stale sessions are swept
	cleanupInterval = 10 * time.Minute
)

// HubConfig tunes the session registry
type HubConfig struct {
	MaxSessions int           // 0 means unlimited
	SessionTTL  time.Duration // Age after which idle sessions are dropped
}

// SessionHub manages all active experiment sessions
type SessionHub struct {
	sessions map[string]*ExperimentSession
	mu       sync.RWMutex
	protocol *protocol.Protocol
	cfg      HubConfig
	opts     SessionOptions
	logger   *slog.Logger
	done     chan struct{}
	once     sync.Once
}

// NewSessionHub creates a new session hub serving the given protocol
func NewSessionHub(p *protocol.Protocol, cfg HubConfig, opts SessionOptions, logger *slog.Logger) *SessionHub {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}

	hub := &SessionHub{
		sessions: make(map[string]*ExperimentSession),
		protocol: p,
		cfg:      cfg,
		opts:     opts,
		logger:   logger,
		done:     make(chan struct{}),
	}

	// Start cleanup goroutine
	go hub.cleanupLoop()

	return hub
}

// CreateSession starts a new participant session on the hub's protocol
func (h *SessionHub) CreateSession(label string) (*ExperimentSession, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cfg.MaxSessions > 0 && len(h.sessions) >= h.cfg.MaxSessions {
		return nil, domain.ErrTooManySessions
	}

	trials := make([]domain.TrialConfig, len(h.protocol.Trials))
	copy(trials, h.protocol.Trials)

	id := uuid.New().String()
	exp := domain.NewExperiment(id, h.protocol.Welcome, trials, domain.NewParticipant(label))
	session := NewExperimentSession(exp, h.opts, h.logger)
	h.sessions[id] = session
	h.opts.Metrics.SessionOpened()

	h.logger.Info("session created", "sessionID", id, "trials", len(trials))

	return session, nil
}

// GetSession returns a session by ID
func (h *SessionHub) GetSession(id string) (*ExperimentSession, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	session, ok := h.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	return session, nil
}

// DeleteSession removes a session
func (h *SessionHub) DeleteSession(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if session, ok := h.sessions[id]; ok {
		h.drop(id, session)
		h.logger.Info("session deleted", "sessionID", id)
	}
}

// GetSessionCount returns the number of active sessions
func (h *SessionHub) GetSessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// GetConnectedCount returns how many participants have a view attached
func (h *SessionHub) GetConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, session := range h.sessions {
		if session.IsConnected() {
			total++
		}
	}
	return total
}

// GetFinishedCount returns how many sessions have completed every trial
func (h *SessionHub) GetFinishedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, session := range h.sessions {
		if session.IsFinished() {
			total++
		}
	}
	return total
}

// Close shuts down the hub and all sessions
func (h *SessionHub) Close() {
	h.once.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, session := range h.sessions {
		h.drop(id, session)
	}
}

// drop closes and forgets a session (caller holds mu)
func (h *SessionHub) drop(id string, session *ExperimentSession) {
	session.Close()
	delete(h.sessions, id)
	h.opts.Metrics.SessionClosed()
}

// cleanupLoop periodically cleans up stale sessions
func (h *SessionHub) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.cleanupStaleSessions(time.Now())
		}
	}
}

// cleanupStaleSessions removes disconnected sessions older than the TTL
func (h *SessionHub) cleanupStaleSessions(now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	stale := make([]string, 0)
	for id, session := range h.sessions {
		if !session.IsConnected() && now.Sub(session.GetCreatedAt()) > h.cfg.SessionTTL {
			stale = append(stale, id)
		}
	}

	for _, id := range stale {
		h.drop(id, h.sessions[id])
		h.logger.Info("stale session cleaned up", "sessionID", id)
	}
	return len(stale)
}

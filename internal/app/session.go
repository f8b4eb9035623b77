package app

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"fluency/internal/clock"
	"fluency/internal/domain"
	"fluency/internal/metrics"
	"fluency/internal/trial"
)

// ClientConnection represents the participant's connected view
type ClientConnection interface {
	Send(message interface{}) error
	Close() error
}

// SessionOptions are the shared collaborators every session runs with
type SessionOptions struct {
	Clock   clock.Clock
	Rand    func() trial.Rand // Fresh source per trial; nil uses the trial default
	Metrics *metrics.Metrics
}

// ExperimentSession hosts one participant's run: it owns the trial lifecycle
// and relays display and input changes to the connected view
type ExperimentSession struct {
	exp      *domain.Experiment
	mu       sync.RWMutex
	current  *trial.Trial
	client   ClientConnection
	clientMu sync.RWMutex
	opts     SessionOptions
	logger   *slog.Logger
	closed   bool // Set under mu by Close; stale trial callbacks check it

	// Event channel for the participant's view
	events chan *domain.SessionEvent
	done   chan struct{}
}

// NewExperimentSession creates a new session
func NewExperimentSession(exp *domain.Experiment, opts SessionOptions, logger *slog.Logger) *ExperimentSession {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	session := &ExperimentSession{
		exp:    exp,
		opts:   opts,
		logger: logger.With("sessionID", exp.ID),
		events: make(chan *domain.SessionEvent, 256),
		done:   make(chan struct{}),
	}

	// Start event broadcaster
	go session.eventLoop()

	return session
}

// GetID returns the session ID
func (s *ExperimentSession) GetID() string {
	return s.exp.ID
}

// GetCreatedAt returns when the session was created
func (s *ExperimentSession) GetCreatedAt() time.Time {
	return s.exp.CreatedAt
}

// GetWelcome returns the one-time welcome notice
func (s *ExperimentSession) GetWelcome() string {
	return s.exp.Welcome
}

// GetTotalTrials returns the number of trials in the session's protocol
func (s *ExperimentSession) GetTotalTrials() int {
	return len(s.exp.Trials)
}

// GetPhase returns the current phase
func (s *ExperimentSession) GetPhase() domain.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exp.Phase
}

// IsFinished reports whether every trial has completed
func (s *ExperimentSession) IsFinished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exp.IsFinished()
}

// IsConnected reports whether the participant's view is attached
func (s *ExperimentSession) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exp.Participant.IsConnected()
}

// RegisterClient attaches the participant's view, replacing any previous one
func (s *ExperimentSession) RegisterClient(client ClientConnection) {
	s.AttachClient(client, nil)
}

// AttachClient attaches the participant's view like RegisterClient. greet runs
// before the view is attached, so whatever it sends reaches the view ahead of
// any session event.
func (s *ExperimentSession) AttachClient(client ClientConnection, greet func()) {
	s.clientMu.Lock()
	if greet != nil {
		greet()
	}
	previous := s.client
	s.client = client
	s.clientMu.Unlock()

	if previous != nil && previous != client {
		previous.Close()
	}

	s.mu.Lock()
	s.exp.Participant.Reconnect()
	s.mu.Unlock()
}

// UnregisterClient detaches client if it is still the attached view
func (s *ExperimentSession) UnregisterClient(client ClientConnection) {
	s.clientMu.Lock()
	if s.client != client {
		s.clientMu.Unlock()
		return
	}
	s.client = nil
	s.clientMu.Unlock()

	s.mu.Lock()
	s.exp.Participant.Disconnect()
	s.mu.Unlock()
}

// Begin dismisses the welcome notice and starts the first trial
func (s *ExperimentSession) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrSessionClosed
	}

	cfg, err := s.exp.Begin()
	if err != nil {
		return err
	}

	if err := s.startTrial(cfg); err != nil {
		s.abort(err)
		return err
	}
	return nil
}

// SubmitResponse forwards an Enter-key submission to the running trial.
// Empty content returns nil, nil.
func (s *ExperimentSession) SubmitResponse(text string) (*domain.Submission, error) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current == nil {
		return nil, domain.ErrInvalidPhase
	}

	sub, err := current.Submit(text)
	switch {
	case errors.Is(err, domain.ErrInputLocked):
		s.opts.Metrics.SubmissionRejected("input_locked")
		return nil, err
	case errors.Is(err, domain.ErrTrialEnded):
		s.opts.Metrics.SubmissionRejected("trial_ended")
		return nil, err
	case err != nil:
		return nil, err
	}

	if sub != nil {
		s.opts.Metrics.SubmissionRecorded()
	}
	return sub, nil
}

// Results returns the completed trials' results in order
func (s *ExperimentSession) Results() []*domain.TrialResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.TrialResult, len(s.exp.Results))
	copy(out, s.exp.Results)
	return out
}

// GetState returns the session state for a (re)connecting view
func (s *ExperimentSession) GetState() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := map[string]interface{}{
		"phase":       s.exp.Phase,
		"totalTrials": len(s.exp.Trials),
		"completed":   len(s.exp.Results),
	}

	switch s.exp.Phase {
	case domain.PhaseWelcome:
		state["welcome"] = s.exp.Welcome
	case domain.PhaseTrial:
		if cfg, ok := s.exp.CurrentTrial(); ok {
			state["trialIndex"] = s.exp.CurrentIndex
			state["category"] = cfg.Category
		}
		if s.current != nil {
			state["inputLocked"] = s.current.Locked()
		}
	case domain.PhaseFinished:
		state["results"] = s.exp.Results
		state["aborted"] = s.exp.Aborted
	}

	return state
}

// startTrial starts cfg as the running trial (caller holds mu)
func (s *ExperimentSession) startTrial(cfg domain.TrialConfig) error {
	index := s.exp.CurrentIndex

	env := trial.Env{
		Clock:   s.opts.Clock,
		Input:   &inputSurface{session: s},
		Display: &displaySurface{session: s, strategy: string(cfg.Strategy)},
		Logger:  s.logger,
		OnExpire: func(result *domain.TrialResult) {
			s.trialExpired(index, result)
		},
	}
	if s.opts.Rand != nil {
		env.Rand = s.opts.Rand()
	}

	t, err := trial.Start(index, cfg, env)
	if err != nil {
		s.logger.Error("failed to start trial", "index", index, "error", err)
		return err
	}

	s.current = t
	s.opts.Metrics.TrialStarted(string(cfg.Strategy))
	s.queueEvent(domain.NewEvent(domain.EventTrialStarted, s.exp.ID, &domain.TrialStartedPayload{
		Index:      index,
		Total:      len(s.exp.Trials),
		Category:   cfg.Category,
		DurationMS: cfg.Duration.Milliseconds(),
	}))

	return nil
}

// trialExpired stores a finished trial and moves on to the next one
func (s *ExperimentSession) trialExpired(index int, result *domain.TrialResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.exp.Phase != domain.PhaseTrial || s.exp.CurrentIndex != index {
		return
	}

	s.current = nil
	s.opts.Metrics.TrialCompleted(string(result.Strategy))
	s.queueEvent(domain.NewEvent(domain.EventTrialEnded, s.exp.ID, &domain.TrialEndedPayload{Result: result}))

	next, more, err := s.exp.CompleteTrial(result)
	if err != nil {
		s.logger.Error("failed to complete trial", "index", index, "error", err)
		return
	}

	if !more {
		s.logger.Info("experiment finished", "trials", len(s.exp.Results), "words", s.exp.TotalWords())
		s.queueEvent(domain.NewEvent(domain.EventExperimentFinished, s.exp.ID, &domain.ExperimentFinishedPayload{
			Results: s.exp.Results,
		}))
		return
	}

	if err := s.startTrial(next); err != nil {
		s.abort(err)
	}
}

// abort ends the experiment early after a trial failed to start, keeping the
// results collected so far (caller holds mu)
func (s *ExperimentSession) abort(cause error) {
	s.current = nil
	if err := s.exp.Abort(); err != nil {
		s.logger.Error("failed to abort experiment", "error", err)
		return
	}

	s.logger.Error("experiment aborted", "index", s.exp.CurrentIndex, "error", cause)
	s.queueEvent(domain.NewEvent(domain.EventError, s.exp.ID, &domain.ErrorPayload{
		Code:    "TRIAL_START_FAILED",
		Message: cause.Error(),
	}))
	s.queueEvent(domain.NewEvent(domain.EventExperimentFinished, s.exp.ID, &domain.ExperimentFinishedPayload{
		Results: s.exp.Results,
	}))
}

// queueEvent adds an event to the broadcast queue
func (s *ExperimentSession) queueEvent(event *domain.SessionEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn("event queue full, dropping event", "type", event.Type)
	}
}

// eventLoop delivers queued events to the attached view in order
func (s *ExperimentSession) eventLoop() {
	for {
		select {
		case <-s.done:
			return
		case event := <-s.events:
			s.deliver(event)
		}
	}
}

func (s *ExperimentSession) deliver(event *domain.SessionEvent) {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()

	if s.client == nil {
		return
	}
	if err := s.client.Send(event); err != nil {
		s.logger.Debug("failed to send to client", "type", event.Type, "error", err)
	}
}

// Close ends any running trial and shuts the session down
func (s *ExperimentSession) Close() {
	select {
	case <-s.done:
		return // Already closed
	default:
		close(s.done)
	}

	s.mu.Lock()
	s.closed = true
	if s.current != nil {
		s.current.End()
		s.current = nil
	}
	s.mu.Unlock()

	s.clientMu.Lock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	s.clientMu.Unlock()
}

// inputSurface relays text-box changes to the participant's view
type inputSurface struct {
	session *ExperimentSession
}

func (i *inputSurface) Clear() {
	i.session.queueEvent(domain.NewEvent(domain.EventInputCleared, i.session.exp.ID, nil))
}

func (i *inputSurface) Disable() {
	i.session.queueEvent(domain.NewEvent(domain.EventInputLocked, i.session.exp.ID, nil))
}

func (i *inputSurface) Enable() {
	i.session.queueEvent(domain.NewEvent(domain.EventInputUnlocked, i.session.exp.ID, nil))
}

// displaySurface relays prime-word changes to the participant's view
type displaySurface struct {
	session  *ExperimentSession
	strategy string
}

func (d *displaySurface) Show(word string) {
	d.session.opts.Metrics.PrimeShown(d.strategy)
	d.session.queueEvent(domain.NewEvent(domain.EventPrimeShown, d.session.exp.ID, &domain.PrimePayload{Word: word}))
}

func (d *displaySurface) Clear() {
	d.session.queueEvent(domain.NewEvent(domain.EventPrimeCleared, d.session.exp.ID, nil))
}

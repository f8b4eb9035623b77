package trial

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"fluency/internal/clock"
	"fluency/internal/domain"
)

// Env is what the host provides a trial for its lifetime
type Env struct {
	Clock        clock.Clock
	Rand         Rand
	Input        Input
	Display      Display
	Logger       *slog.Logger
	PollInterval time.Duration

	// OnExpire is called with the frozen result when the deadline passes.
	// It runs without the trial lock held.
	OnExpire func(*domain.TrialResult)
}

// Trial is one running category round. All state is owned by the trial and
// released when it ends; callbacks from a finished trial are no-ops.
type Trial struct {
	mu     sync.Mutex
	id     string
	index  int
	cfg    domain.TrialConfig
	env    Env
	start  time.Time
	logger *slog.Logger

	collector *Collector
	timed     *TimedScheduler
	counted   *CountedScheduler

	deadline clock.Timer
	poll     clock.Timer
	exposure clock.Timer
	ticks    int64

	ended  bool
	result *domain.TrialResult
}

// Start validates cfg, attaches to the host's surfaces and starts the trial
// clock
func Start(index int, cfg domain.TrialConfig, env Env) (*Trial, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if env.Input == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoInput, cfg.Category)
	}
	if env.Display == nil && cfg.Strategy != domain.PrimeNone {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoDisplay, cfg.Category)
	}
	if env.Clock == nil {
		env.Clock = clock.Real()
	}
	if env.Rand == nil {
		env.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if env.PollInterval <= 0 {
		env.PollInterval = domain.DefaultPollInterval
	}
	if env.Logger == nil {
		env.Logger = slog.Default()
	}

	t := &Trial{
		id:    uuid.New().String(),
		index: index,
		cfg:   cfg,
		env:   env,
		start: env.Clock.Now(),
	}
	t.logger = env.Logger.With("trialID", t.id, "category", cfg.Category)
	t.collector = NewCollector(env.Input, t.start, cfg.TrimInput)

	t.mu.Lock()
	defer t.mu.Unlock()

	// Scheduled first so it wins ties with a poll tick at the same instant.
	t.deadline = env.Clock.AfterFunc(cfg.Duration, t.expire)

	switch cfg.Strategy {
	case domain.PrimeTimed:
		t.timed = NewTimedScheduler(cfg.Schedule, env.Display)
		t.poll = env.Clock.AfterFunc(env.PollInterval, t.tick)
	case domain.PrimeCounted:
		t.counted = NewCountedScheduler(cfg.Pool, cfg.Threshold, cfg.Exposure, env.Rand, env.Display, env.Input)
	}

	t.logger.Debug("trial started", "index", index, "strategy", cfg.Strategy, "duration", cfg.Duration)

	return t, nil
}

// ID returns the trial's unique identifier
func (t *Trial) ID() string {
	return t.id
}

// Index returns the trial's position in the protocol
func (t *Trial) Index() int {
	return t.index
}

// Config returns the trial's configuration
func (t *Trial) Config() domain.TrialConfig {
	return t.cfg
}

// Submit handles an Enter-key submission. Empty content returns nil, nil and
// changes nothing.
func (t *Trial) Submit(text string) (*domain.Submission, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ended {
		return nil, domain.ErrTrialEnded
	}
	now := t.env.Clock.Now()
	if t.pastDeadline(now) {
		return nil, domain.ErrTrialEnded
	}
	if t.counted != nil && t.counted.Exposing() {
		return nil, domain.ErrInputLocked
	}

	sub := t.collector.Submit(text, now)
	if sub == nil {
		return nil, nil
	}

	if t.counted != nil {
		if word, shown := t.counted.Observe(sub.Word, sub.TimeOffsetMS); shown {
			t.exposure = t.env.Clock.AfterFunc(t.counted.Exposure(), t.endExposure)
			t.logger.Debug("prime shown", "word", word, "atMs", sub.TimeOffsetMS)
		}
	}

	return sub, nil
}

// End stops the trial and returns its frozen result. Calling End again
// returns the same result.
func (t *Trial) End() *domain.TrialResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ended {
		return t.result
	}
	return t.finish()
}

// Ended reports whether the trial has finished
func (t *Trial) Ended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}

// Locked reports whether input is locked by a prime exposure
func (t *Trial) Locked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counted != nil && t.counted.Exposing()
}

// Countdown returns the responses left before the next prime trigger, or -1
// when the trial does not use count-indexed primes
func (t *Trial) Countdown() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counted == nil {
		return -1
	}
	return t.counted.Countdown()
}

// Pool returns the prime words still eligible for display
func (t *Trial) Pool() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counted == nil {
		return nil
	}
	return t.counted.Pool()
}

// expire runs when the trial's fixed duration elapses
func (t *Trial) expire() {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return
	}
	result := t.finish()
	t.mu.Unlock()

	if t.env.OnExpire != nil {
		t.env.OnExpire(result)
	}
}

// tick polls the time-indexed schedule and re-arms itself
func (t *Trial) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ended {
		return
	}
	now := t.env.Clock.Now()
	if t.pastDeadline(now) {
		return
	}

	elapsed := now.Sub(t.start)
	if n := t.timed.Poll(elapsed.Milliseconds()); n > 0 {
		t.logger.Debug("schedule advanced", "shown", n, "remaining", t.timed.Remaining())
	}

	// Re-armed against the trial start so ticks do not drift.
	t.ticks++
	next := time.Duration(t.ticks+1) * t.env.PollInterval
	t.poll = t.env.Clock.AfterFunc(next-elapsed, t.tick)
}

// endExposure runs when a counted prime's exposure window elapses
func (t *Trial) endExposure() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ended {
		return
	}
	now := t.env.Clock.Now()
	if t.pastDeadline(now) {
		// The deadline callback interrupts the exposure.
		return
	}
	t.counted.EndExposure(t.collector.offset(now))
	t.exposure = nil
}

func (t *Trial) pastDeadline(now time.Time) bool {
	return now.Sub(t.start) >= t.cfg.Duration
}

// finish cancels every timer and freezes the result (caller holds mu)
func (t *Trial) finish() *domain.TrialResult {
	t.ended = true

	for _, timer := range []clock.Timer{t.deadline, t.poll, t.exposure} {
		if timer != nil {
			timer.Stop()
		}
	}
	t.deadline, t.poll, t.exposure = nil, nil, nil

	result := &domain.TrialResult{
		TrialID:       t.id,
		Index:         t.index,
		Category:      t.cfg.Category,
		Strategy:      t.cfg.Strategy,
		DurationMS:    t.cfg.Duration.Milliseconds(),
		Words:         t.collector.Words(),
		NumberOfWords: t.collector.Count(),
		StartedAt:     t.start,
	}

	if t.timed != nil {
		result.Displays = t.timed.Changes()
	}
	if t.counted != nil {
		t.counted.Interrupt()
		result.Primes = t.counted.Records()
	}

	t.result = result
	t.logger.Info("trial ended",
		"index", t.index,
		"words", result.NumberOfWords,
		"primes", len(result.Primes),
		"displays", len(result.Displays),
	)

	return result
}

package app

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"fluency/internal/clock"
	"fluency/internal/domain"
	"fluency/internal/protocol"
	"fluency/internal/trial"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// firstRand always draws the lowest value
type firstRand struct{}

func (firstRand) Intn(int) int { return 0 }

// recordingClient collects every event the session sends
type recordingClient struct {
	mu     sync.Mutex
	events []*domain.SessionEvent
	closed bool
}

func (c *recordingClient) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if event, ok := message.(*domain.SessionEvent); ok {
		c.events = append(c.events, event)
	}
	return nil
}

func (c *recordingClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingClient) types() []domain.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.EventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

func (c *recordingClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *recordingClient) waitFor(t *testing.T, want domain.EventType) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, got := range c.types() {
			if got == want {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "never received %s", want)
}

func testProtocol() *protocol.Protocol {
	return &protocol.Protocol{
		Welcome: "Press ENTER to start.",
		Trials: []domain.TrialConfig{
			{
				Category:  "Fruits",
				Duration:  10 * time.Second,
				TrimInput: true,
				Strategy:  domain.PrimeCounted,
				Pool:      []string{"DOG", "CAT"},
				Threshold: domain.ThresholdRange{Min: 2, Max: 2},
				Exposure:  500 * time.Millisecond,
			},
			{
				Category:  "Animals",
				Duration:  10 * time.Second,
				TrimInput: true,
				Strategy:  domain.PrimeTimed,
				Schedule:  []domain.PrimeWordEntry{{Word: "Arctic", StartTimeS: 1}},
			},
		},
	}
}

func newTestSession(c *clock.Fake) *ExperimentSession {
	p := testProtocol()
	exp := domain.NewExperiment("s-1", p.Welcome, p.Trials, domain.NewParticipant("p1"))
	return NewExperimentSession(exp, SessionOptions{
		Clock: c,
		Rand:  func() trial.Rand { return firstRand{} },
	}, discardLogger())
}

func TestSession_BeginOnlyOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	session := newTestSession(clock.NewFake(epoch))
	defer session.Close()

	assert.Equal(t, domain.PhaseWelcome, session.GetPhase())
	require.NoError(t, session.Begin())
	assert.Equal(t, domain.PhaseTrial, session.GetPhase())
	assert.ErrorIs(t, session.Begin(), domain.ErrInvalidPhase)
}

func TestSession_SubmitBeforeBegin(t *testing.T) {
	defer goleak.VerifyNone(t)

	session := newTestSession(clock.NewFake(epoch))
	defer session.Close()

	_, err := session.SubmitResponse("apple")
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)
}

func TestSession_RunsEveryTrial(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := clock.NewFake(epoch)
	session := newTestSession(c)
	defer session.Close()

	client := &recordingClient{}
	session.RegisterClient(client)
	assert.True(t, session.IsConnected())

	require.NoError(t, session.Begin())
	client.waitFor(t, domain.EventTrialStarted)

	c.Advance(time.Second)
	sub, err := session.SubmitResponse("  apple ")
	require.NoError(t, err)
	assert.Equal(t, "apple", sub.Word)
	assert.Equal(t, int64(1000), sub.TimeOffsetMS)

	_, err = session.SubmitResponse("mango")
	require.NoError(t, err)
	client.waitFor(t, domain.EventPrimeShown)
	client.waitFor(t, domain.EventInputLocked)

	_, err = session.SubmitResponse("plum")
	assert.ErrorIs(t, err, domain.ErrInputLocked)

	c.Advance(500 * time.Millisecond)
	client.waitFor(t, domain.EventInputUnlocked)

	sub, err = session.SubmitResponse("plum")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), sub.TimeOffsetMS)

	// Empty submissions are ignored.
	sub, err = session.SubmitResponse("   ")
	require.NoError(t, err)
	assert.Nil(t, sub)

	c.Advance(9 * time.Second)
	client.waitFor(t, domain.EventTrialEnded)
	assert.Equal(t, domain.PhaseTrial, session.GetPhase())

	c.Advance(10 * time.Second)
	client.waitFor(t, domain.EventExperimentFinished)
	assert.True(t, session.IsFinished())

	results := session.Results()
	require.Len(t, results, 2)

	fruits := results[0]
	assert.Equal(t, "Fruits", fruits.Category)
	assert.Equal(t, 3, fruits.NumberOfWords)
	require.Len(t, fruits.Primes, 1)
	assert.Equal(t, "DOG", fruits.Primes[0].Word)
	assert.Equal(t, int64(1000), fruits.Primes[0].AppearedAtMS)
	require.NotNil(t, fruits.Primes[0].DisappearedAtMS)
	assert.Equal(t, int64(1500), *fruits.Primes[0].DisappearedAtMS)

	animals := results[1]
	assert.Equal(t, 0, animals.NumberOfWords)
	assert.Equal(t, []domain.DisplayChange{{Word: "Arctic", ShownAtMS: 1000}}, animals.Displays)

	_, err = session.SubmitResponse("late")
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)

	types := client.types()
	assert.Equal(t, domain.EventExperimentFinished, types[len(types)-1])
}

func TestSession_GetState(t *testing.T) {
	defer goleak.VerifyNone(t)

	session := newTestSession(clock.NewFake(epoch))
	defer session.Close()

	state := session.GetState()
	assert.Equal(t, domain.PhaseWelcome, state["phase"])
	assert.Equal(t, "Press ENTER to start.", state["welcome"])
	assert.Equal(t, 2, state["totalTrials"])

	require.NoError(t, session.Begin())
	state = session.GetState()
	assert.Equal(t, domain.PhaseTrial, state["phase"])
	assert.Equal(t, "Fruits", state["category"])
	assert.Equal(t, 0, state["trialIndex"])
	assert.Equal(t, false, state["inputLocked"])
}

func TestSession_ReplacingClientClosesPrevious(t *testing.T) {
	defer goleak.VerifyNone(t)

	session := newTestSession(clock.NewFake(epoch))
	defer session.Close()

	first := &recordingClient{}
	second := &recordingClient{}
	session.RegisterClient(first)
	session.RegisterClient(second)

	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())

	// A stale view going away does not detach the current one.
	session.UnregisterClient(first)
	assert.True(t, session.IsConnected())

	session.UnregisterClient(second)
	assert.False(t, session.IsConnected())
}

func TestSession_CloseEndsRunningTrial(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := clock.NewFake(epoch)
	session := newTestSession(c)

	client := &recordingClient{}
	session.RegisterClient(client)
	require.NoError(t, session.Begin())

	session.Close()
	session.Close()

	assert.True(t, client.isClosed())
	assert.Equal(t, 0, c.Pending())
	assert.Empty(t, session.Results())
}

func TestSession_DeadlineAfterCloseStartsNothing(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := clock.NewFake(epoch)
	session := newTestSession(c)
	require.NoError(t, session.Begin())

	// The deadline has frozen the trial but its expiry callback has not yet
	// reached the session when Close runs.
	session.mu.RLock()
	running := session.current
	session.mu.RUnlock()
	result := running.End()

	session.Close()
	session.trialExpired(0, result)

	assert.Equal(t, 0, c.Pending())
	assert.Empty(t, session.Results())
	assert.False(t, session.IsFinished())

	c.Advance(time.Minute)
	assert.Empty(t, session.Results())
	assert.ErrorIs(t, session.Begin(), domain.ErrSessionClosed)
}

func TestSession_TrialStartFailureFinishesExperiment(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := clock.NewFake(epoch)
	trials := []domain.TrialConfig{
		{Category: "Animals", Duration: 10 * time.Second, Strategy: domain.PrimeNone},
		// Not runnable: counted primes need an exposure window.
		{Category: "Fruits", Duration: 10 * time.Second, Strategy: domain.PrimeCounted, Pool: []string{"DOG"}, Threshold: domain.DefaultThreshold},
	}
	exp := domain.NewExperiment("s-2", "", trials, domain.NewParticipant("p1"))
	session := NewExperimentSession(exp, SessionOptions{Clock: c}, discardLogger())
	defer session.Close()

	client := &recordingClient{}
	session.RegisterClient(client)
	require.NoError(t, session.Begin())

	c.Advance(10 * time.Second)
	client.waitFor(t, domain.EventExperimentFinished)

	assert.True(t, session.IsFinished())
	assert.Equal(t, true, session.GetState()["aborted"])
	assert.Len(t, session.Results(), 1)
	assert.Equal(t, 0, c.Pending())
	assert.Contains(t, client.types(), domain.EventError)

	_, err := session.SubmitResponse("apple")
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)
}

func TestSession_BeginFailureFinishesExperiment(t *testing.T) {
	defer goleak.VerifyNone(t)

	trials := []domain.TrialConfig{
		{Category: "Fruits", Duration: 10 * time.Second, Strategy: domain.PrimeCounted, Threshold: domain.DefaultThreshold},
	}
	exp := domain.NewExperiment("s-3", "", trials, domain.NewParticipant("p1"))
	session := NewExperimentSession(exp, SessionOptions{Clock: clock.NewFake(epoch)}, discardLogger())
	defer session.Close()

	assert.ErrorIs(t, session.Begin(), domain.ErrInvalidTrial)
	assert.True(t, session.IsFinished())
	assert.Empty(t, session.Results())
}

func TestSession_GreetingPrecedesEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	session := newTestSession(clock.NewFake(epoch))
	defer session.Close()

	require.NoError(t, session.Begin())

	client := &recordingClient{}
	hello := domain.NewEvent(domain.EventType("HELLO"), session.GetID(), session.GetState())
	session.AttachClient(client, func() { client.Send(hello) })

	_, err := session.SubmitResponse("apple")
	require.NoError(t, err)
	client.waitFor(t, domain.EventInputCleared)

	types := client.types()
	assert.Equal(t, domain.EventType("HELLO"), types[0])
	assert.True(t, session.IsConnected())
}

package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"fluency/internal/clock"
	"fluency/internal/domain"
)

func newTestHub(cfg HubConfig) *SessionHub {
	return NewSessionHub(testProtocol(), cfg, SessionOptions{Clock: clock.NewFake(epoch)}, discardLogger())
}

func TestHub_CreateAndGet(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := newTestHub(HubConfig{})
	defer hub.Close()

	session, err := hub.CreateSession("p1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.GetID())
	assert.Equal(t, "Press ENTER to start.", session.GetWelcome())

	got, err := hub.GetSession(session.GetID())
	require.NoError(t, err)
	assert.Same(t, session, got)

	_, err = hub.GetSession("missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestHub_SessionsDoNotShareTrials(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := newTestHub(HubConfig{})
	defer hub.Close()

	a, err := hub.CreateSession("a")
	require.NoError(t, err)
	b, err := hub.CreateSession("b")
	require.NoError(t, err)

	a.exp.Trials[0].Category = "Changed"
	assert.Equal(t, "Fruits", b.exp.Trials[0].Category)
	assert.Equal(t, "Fruits", hub.protocol.Trials[0].Category)
}

func TestHub_MaxSessions(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := newTestHub(HubConfig{MaxSessions: 2})
	defer hub.Close()

	_, err := hub.CreateSession("a")
	require.NoError(t, err)
	_, err = hub.CreateSession("b")
	require.NoError(t, err)

	_, err = hub.CreateSession("c")
	assert.ErrorIs(t, err, domain.ErrTooManySessions)
	assert.Equal(t, 2, hub.GetSessionCount())
}

func TestHub_DeleteSession(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := newTestHub(HubConfig{})
	defer hub.Close()

	session, err := hub.CreateSession("p1")
	require.NoError(t, err)

	hub.DeleteSession(session.GetID())
	hub.DeleteSession(session.GetID())

	assert.Equal(t, 0, hub.GetSessionCount())
	_, err = hub.GetSession(session.GetID())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestHub_Counts(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := newTestHub(HubConfig{})
	defer hub.Close()

	a, err := hub.CreateSession("a")
	require.NoError(t, err)
	_, err = hub.CreateSession("b")
	require.NoError(t, err)

	a.RegisterClient(&recordingClient{})

	assert.Equal(t, 2, hub.GetSessionCount())
	assert.Equal(t, 1, hub.GetConnectedCount())
	assert.Equal(t, 0, hub.GetFinishedCount())
}

func TestHub_CleanupStaleSessions(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := newTestHub(HubConfig{SessionTTL: time.Hour})
	defer hub.Close()

	idle, err := hub.CreateSession("idle")
	require.NoError(t, err)
	active, err := hub.CreateSession("active")
	require.NoError(t, err)
	client := &recordingClient{}
	active.RegisterClient(client)

	assert.Equal(t, 0, hub.cleanupStaleSessions(time.Now()))

	removed := hub.cleanupStaleSessions(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 1, removed)

	_, err = hub.GetSession(idle.GetID())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = hub.GetSession(active.GetID())
	assert.NoError(t, err)
}

func TestHub_CloseClosesSessions(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := newTestHub(HubConfig{})

	session, err := hub.CreateSession("p1")
	require.NoError(t, err)
	client := &recordingClient{}
	session.RegisterClient(client)

	hub.Close()
	hub.Close()

	assert.True(t, client.isClosed())
	assert.Equal(t, 0, hub.GetSessionCount())
}

package ws

import (
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fluency/internal/app"
	"fluency/internal/domain"
	"fluency/internal/protocol"
)

func TestFromEvent(t *testing.T) {
	tests := []struct {
		event domain.EventType
		want  MessageType
	}{
		{domain.EventTrialStarted, MsgTrialStarted},
		{domain.EventPrimeShown, MsgPrimeShown},
		{domain.EventPrimeCleared, MsgPrimeCleared},
		{domain.EventInputLocked, MsgInputLocked},
		{domain.EventInputUnlocked, MsgInputUnlocked},
		{domain.EventInputCleared, MsgInputCleared},
		{domain.EventTrialEnded, MsgTrialEnded},
		{domain.EventExperimentFinished, MsgExperimentFinished},
		{domain.EventError, MsgError},
	}

	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			payload := &domain.PrimePayload{Word: "DOG"}
			msg, ok := FromEvent(domain.NewEvent(tt.event, "s-1", payload))
			require.True(t, ok)
			assert.Equal(t, tt.want, msg.Type)
			assert.Same(t, payload, msg.Payload)
			assert.NotEmpty(t, msg.Timestamp)
		})
	}

	_, ok := FromEvent(domain.NewEvent(domain.EventType("UNKNOWN"), "s-1", nil))
	assert.False(t, ok)
}

func TestSubmitErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"locked", domain.ErrInputLocked, ErrCodeInputLocked},
		{"ended", domain.ErrTrialEnded, ErrCodeTrialEnded},
		{"wrapped ended", fmt.Errorf("trial 2: %w", domain.ErrTrialEnded), ErrCodeTrialEnded},
		{"no trial", domain.ErrInvalidPhase, ErrCodeInvalidAction},
		{"other", domain.ErrNoInput, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, message := submitErrorCode(tt.err)
			assert.Equal(t, tt.want, code)
			assert.NotEmpty(t, message)
		})
	}
}

func countedProtocol() *protocol.Protocol {
	return &protocol.Protocol{
		Welcome: "Press ENTER to start.",
		Trials: []domain.TrialConfig{{
			Category:  "Animals",
			Duration:  time.Minute,
			TrimInput: true,
			Strategy:  domain.PrimeCounted,
			Pool:      []string{"DOG"},
			Threshold: domain.ThresholdRange{Min: 1, Max: 1},
			Exposure:  time.Second,
		}},
	}
}

func dialSession(t *testing.T) *websocket.Conn {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := app.NewSessionHub(countedProtocol(), app.HubConfig{}, app.SessionOptions{}, logger)
	session, err := hub.CreateSession("p1")
	require.NoError(t, err)

	ts := httptest.NewServer(NewHandler(hub, logger))
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?sessionId=" + session.GetID()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// collect reads until every wanted message type has arrived
func collect(t *testing.T, conn *websocket.Conn, want ...MessageType) map[MessageType]ServerMessage {
	t.Helper()

	got := make(map[MessageType]ServerMessage)
	for len(got) < len(want) {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		for _, w := range want {
			if msg.Type == w {
				got[w] = msg
			}
		}
	}
	return got
}

func TestClient_LockedSubmissionRejected(t *testing.T) {
	conn := dialSession(t)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var first ServerMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, MsgConnected, first.Type)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgBegin}))
	collect(t, conn, MsgTrialStarted)

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Type:    MsgSubmitResponse,
		Payload: SubmitResponsePayload{Text: "lion"},
	}))
	got := collect(t, conn, MsgPrimeShown, MsgInputLocked)
	prime, ok := got[MsgPrimeShown].Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "DOG", prime["word"])

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Type:    MsgSubmitResponse,
		Payload: SubmitResponsePayload{Text: "tiger"},
	}))
	got = collect(t, conn, MsgError)
	errPayload, ok := got[MsgError].Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, ErrCodeInputLocked, errPayload["code"])

	collect(t, conn, MsgPrimeCleared, MsgInputUnlocked)

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Type:    MsgSubmitResponse,
		Payload: SubmitResponsePayload{Text: "tiger"},
	}))
	collect(t, conn, MsgInputCleared)
}

func TestClient_InvalidMessages(t *testing.T) {
	conn := dialSession(t)
	collect(t, conn, MsgConnected)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	got := collect(t, conn, MsgError)
	assert.Equal(t, ErrCodeInvalidMessage, got[MsgError].Payload.(map[string]interface{})["code"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgSubmitResponse, Payload: "lion"}))
	got = collect(t, conn, MsgError)
	assert.Equal(t, ErrCodeInvalidMessage, got[MsgError].Payload.(map[string]interface{})["code"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgSubmitResponse, Payload: SubmitResponsePayload{Text: "lion"}}))
	got = collect(t, conn, MsgError)
	assert.Equal(t, ErrCodeInvalidAction, got[MsgError].Payload.(map[string]interface{})["code"])
}

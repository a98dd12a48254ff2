package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
	"github.com/zhouzirui/honeypot/backend/internal/service/turn"
)

type fakeTurns struct {
	mu        sync.Mutex
	histories [][]chat.HistoryEntry
	texts     []string
}

func (f *fakeTurns) ProcessTurn(_ context.Context, key, text string, history []chat.HistoryEntry) turn.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histories = append(f.histories, append([]chat.HistoryEntry(nil), history...))
	f.texts = append(f.texts, text)
	return turn.Result{
		Reply:        "reply to " + text,
		ScamDetected: strings.Contains(text, "otp"),
		Confidence:   0.5,
		SessionID:    key,
		Persona:      "student",
		MessageCount: len(f.texts),
	}
}

func dial(t *testing.T, turns TurnProcessor, sessionID string) *websocket.Conn {
	t.Helper()
	r := chi.NewRouter()
	NewWebSocketHandler(turns, nil).RegisterRoutes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello outgoingMessage
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "connected", hello.Type)
	return conn
}

type replyFrame struct {
	Type string    `json:"type"`
	Data replyData `json:"data"`
}

func TestWebSocketTurnsKeepHistory(t *testing.T) {
	turns := &fakeTurns{}
	conn := dial(t, turns, "ws-session")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "message", "data": map[string]any{"message": "hello"}}))
	var first replyFrame
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "reply", first.Type)
	assert.Equal(t, "reply to hello", first.Data.Reply)
	assert.Equal(t, 1, first.Data.MessageCount)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "message", "data": map[string]any{"message": map[string]string{"text": "send otp"}}}))
	var second replyFrame
	require.NoError(t, conn.ReadJSON(&second))
	assert.True(t, second.Data.ScamDetected)
	assert.Equal(t, "student", second.Data.Persona)

	turns.mu.Lock()
	defer turns.mu.Unlock()
	require.Len(t, turns.histories, 2)
	assert.Empty(t, turns.histories[0])
	assert.Equal(t, []chat.HistoryEntry{
		{Sender: chat.SenderScammer, Text: "hello"},
		{Sender: chat.SenderUser, Text: "reply to hello"},
	}, turns.histories[1])
}

func TestWebSocketRejectsBadFrames(t *testing.T) {
	conn := dial(t, &fakeTurns{}, "abc")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "audio"}))
	var unsupported outgoingMessage
	require.NoError(t, conn.ReadJSON(&unsupported))
	assert.Equal(t, "error", unsupported.Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "message", "sessionId": "other"}))
	var mismatch outgoingMessage
	require.NoError(t, conn.ReadJSON(&mismatch))
	assert.Equal(t, "error", mismatch.Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	var pong outgoingMessage
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Type)
}

func TestConnectionStateCapsHistory(t *testing.T) {
	state := &connectionState{sessionID: "s"}
	for i := 0; i < historyCap; i++ {
		state.record("q", "a")
	}
	assert.Len(t, state.history, historyCap)
	assert.Equal(t, chat.SenderScammer, state.history[0].Sender)
}

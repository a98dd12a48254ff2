package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/honeypot/backend/internal/handler/honeypot"
	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
	"github.com/zhouzirui/honeypot/backend/internal/service/turn"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
	// historyCap bounds the per-connection transcript handed to the reply model.
	historyCap = 40
)

// TurnProcessor runs one conversational turn.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, key, text string, history []chat.HistoryEntry) turn.Result
}

// WebSocketHandler runs honeypot turns over a long-lived websocket, keeping the
// transcript on the connection so clients only send the newest message.
type WebSocketHandler struct {
	turns    TurnProcessor
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWebSocketHandler(turns TurnProcessor, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		turns:  turns,
		logger: logger.Named("websocket"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type replyData struct {
	Reply        string  `json:"reply"`
	ScamDetected bool    `json:"scam_detected"`
	Confidence   float64 `json:"confidence_score"`
	Persona      string  `json:"persona"`
	MessageCount int     `json:"messageCount"`
}

type connectionState struct {
	sessionID string
	history   []chat.HistoryEntry
}

func (s *connectionState) record(text, reply string) {
	s.history = append(s.history,
		chat.HistoryEntry{Sender: chat.SenderScammer, Text: text},
		chat.HistoryEntry{Sender: chat.SenderUser, Text: reply},
	)
	if over := len(s.history) - historyCap; over > 0 {
		s.history = append([]chat.HistoryEntry(nil), s.history[over:]...)
	}
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("connection opened", zap.String("session", sessionID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, conn)

	state := &connectionState{sessionID: sessionID}
	h.send(conn, outgoingMessage{Type: "connected", SessionID: sessionID})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("read error", zap.String("session", sessionID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(conn, "session mismatch")
			continue
		}
		h.handleMessage(ctx, conn, state, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, msg *inboundMessage) {
	switch msg.Type {
	case "message":
		var payload struct {
			Message json.RawMessage `json:"message"`
		}
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				h.sendError(conn, "invalid message data")
				return
			}
		}
		text := honeypot.MessageText(payload.Message)
		if text == "" {
			text = honeypot.PlaceholderMessage
		}

		result := h.turns.ProcessTurn(ctx, state.sessionID, text, state.history)
		state.record(text, result.Reply)

		h.send(conn, outgoingMessage{
			Type:      "reply",
			SessionID: state.sessionID,
			Data: replyData{
				Reply:        result.Reply,
				ScamDetected: result.ScamDetected,
				Confidence:   result.Confidence,
				Persona:      result.Persona,
				MessageCount: result.MessageCount,
			},
		})
	case "ping":
		h.send(conn, outgoingMessage{Type: "pong", SessionID: state.sessionID})
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, msg outgoingMessage) {
	msg.Timestamp = time.Now().Unix()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Warn("write failed", zap.String("type", msg.Type), zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, message string) {
	h.send(conn, outgoingMessage{Type: "error", Data: map[string]string{"message": message}})
}

// pingLoop keeps idle connections alive. WriteControl may run concurrently with
// the read loop's writes.
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

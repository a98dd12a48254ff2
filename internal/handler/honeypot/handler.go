package honeypot

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
	"github.com/zhouzirui/honeypot/backend/internal/service/turn"
	"github.com/zhouzirui/honeypot/backend/pkg/utils"
)

const maxBodyBytes = 1 << 20

// TurnProcessor runs one conversational turn.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, key, text string, history []chat.HistoryEntry) turn.Result
}

// Handler serves the inbound message surface.
type Handler struct {
	turns  TurnProcessor
	logger *zap.Logger
}

func New(turns TurnProcessor, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{turns: turns, logger: logger.Named("honeypot")}
}

// RegisterRoutes mounts POST /message and its mirror on POST /.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/message", h.handleMessage)
	r.Post("/", h.handleMessage)
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := DecodeRequest(body)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Placeholder {
		h.logger.Warn("empty message content received", zap.String("session", req.SessionID))
	}

	result := h.turns.ProcessTurn(r.Context(), req.SessionID, req.Text, req.History)
	utils.RespondJSON(w, http.StatusOK, result)
}

package session

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
	"github.com/zhouzirui/honeypot/backend/pkg/utils"
)

// Reader is the read side of the session store.
type Reader interface {
	ListSummaries(ctx context.Context) []chat.Summary
	Get(ctx context.Context, key string) (chat.Session, bool)
}

// Handler exposes session inspection endpoints.
type Handler struct {
	sessions Reader
}

func New(sessions Reader) *Handler {
	return &Handler{sessions: sessions}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.handleList)
	r.Get("/session/{sessionID}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.sessions.ListSummaries(r.Context()))
}

// handleGet never creates a session; unknown ids are 404.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess, ok := h.sessions.Get(r.Context(), sessionID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

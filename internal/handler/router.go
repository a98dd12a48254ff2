package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/honeypot/backend/internal/handler/honeypot"
	"github.com/zhouzirui/honeypot/backend/internal/handler/persona"
	"github.com/zhouzirui/honeypot/backend/internal/handler/session"
	"github.com/zhouzirui/honeypot/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/honeypot/backend/internal/middleware"
	personaModel "github.com/zhouzirui/honeypot/backend/internal/model/persona"
	"github.com/zhouzirui/honeypot/backend/internal/service/turn"
	"github.com/zhouzirui/honeypot/backend/pkg/utils"
)

// Deps bundles what the router serves.
type Deps struct {
	Personas personaModel.Store
	Sessions session.Reader
	Turns    *turn.Orchestrator
	APIKey   string
	Logger   *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status": "Agentic Honeypot Active",
			"info":   "Send POST requests to /message",
		})
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(protected chi.Router) {
		protected.Use(middlewarePkg.APIKey(deps.APIKey, logger))

		honeypot.New(deps.Turns, logger).RegisterRoutes(protected)
		session.New(deps.Sessions).RegisterRoutes(protected)
		persona.New(deps.Personas).RegisterRoutes(protected)
		stream.NewWebSocketHandler(deps.Turns, logger).RegisterRoutes(protected)
	})

	return r
}

package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cybergenix/niva/backend/internal/handler/chat"
	"github.com/cybergenix/niva/backend/internal/handler/history"
	"github.com/cybergenix/niva/backend/internal/handler/persona"
	"github.com/cybergenix/niva/backend/internal/handler/speech"
	middlewarePkg "github.com/cybergenix/niva/backend/internal/middleware"
	personaModel "github.com/cybergenix/niva/backend/internal/model/persona"
	historyService "github.com/cybergenix/niva/backend/internal/service/history"
	"github.com/cybergenix/niva/backend/pkg/utils"
)

// Services 汇总路由依赖的服务，Speech 可以为空
type Services struct {
	Assistant      chat.Assistant
	History        historyService.Store
	Personas       personaModel.Store
	Speech         speech.SpeechService
	SpeechProvider string
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(svc.AllowedOrigins))

	chat.New(svc.Assistant).RegisterRoutes(r)
	history.New(svc.History).RegisterRoutes(r)
	persona.New(svc.Personas).RegisterRoutes(r)

	if svc.Speech != nil {
		speech.New(svc.Speech, svc.SpeechProvider).RegisterRoutes(r)
	}

	r.Get("/health", healthHandler(svc.History))

	return r
}

// healthHandler 检查历史存储是否可用
func healthHandler(store historyService.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			log.Printf("[health] history ping failed: %v", err)
			utils.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "degraded",
				"history": "unreachable",
			})
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"history": "ok",
		})
	}
}

package history

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cybergenix/niva/backend/internal/model/chat"
	historyService "github.com/cybergenix/niva/backend/internal/service/history"
	"github.com/cybergenix/niva/backend/pkg/utils"
)

// Handler 对话历史的HTTP处理器
type Handler struct {
	store historyService.Store
}

// New 创建历史处理器
func New(store historyService.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册历史相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/history/{id}", h.handleHistory)
	r.Get("/ids", h.handleListIDs)
	r.Get("/ids/create", h.handleCreateID)
	r.Post("/ids/create", h.handleCreateID)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	turns, err := h.store.All(r.Context(), id)
	if err != nil {
		if errors.Is(err, historyService.ErrInvalidConversationID) {
			utils.RespondError(w, http.StatusBadRequest, "invalid conversation id")
			return
		}
		log.Printf("[history] load %s: %v", id, err)
		utils.RespondError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}

	if turns == nil {
		turns = []chat.Turn{}
	}
	utils.RespondJSON(w, http.StatusOK, turns)
}

func (h *Handler) handleListIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.Conversations(r.Context())
	if err != nil {
		log.Printf("[history] list conversations: %v", err)
		utils.RespondError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	if ids == nil {
		ids = []string{}
	}
	utils.RespondJSON(w, http.StatusOK, ids)
}

func (h *Handler) handleCreateID(w http.ResponseWriter, r *http.Request) {
	id := historyService.NewConversationID()
	if err := h.store.Create(r.Context(), id); err != nil {
		log.Printf("[history] create %s: %v", id, err)
		utils.RespondError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

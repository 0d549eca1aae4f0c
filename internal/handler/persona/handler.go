package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cybergenix/niva/backend/internal/model/persona"
	"github.com/cybergenix/niva/backend/pkg/utils"
)

// Handler persona服务的HTTP处理器
type Handler struct {
	personas persona.Store
}

// New 创建persona处理器
func New(personas persona.Store) *Handler {
	return &Handler{
		personas: personas,
	}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
}

type listResponse struct {
	Default  string            `json:"default"`
	Personas []persona.Persona `json:"personas"`
}

// handleListPersonas 列出所有persona
func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, listResponse{
		Default:  h.personas.Default().ID,
		Personas: h.personas.List(),
	})
}

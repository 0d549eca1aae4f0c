package speech

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cybergenix/niva/backend/internal/model/speech"
	speechsvc "github.com/cybergenix/niva/backend/internal/service/speech"
	"github.com/cybergenix/niva/backend/pkg/utils"
)

const maxTextBytes = 16 << 10

// SpeechService 抽象语音业务，便于测试与替换实现
type SpeechService interface {
	Synthesize(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error)
	LipSyncEnabled() bool
}

// Handler 语音服务的HTTP处理器
type Handler struct {
	speechSvc SpeechService
	provider  string
}

// New 创建语音处理器
func New(speechSvc SpeechService, provider string) *Handler {
	return &Handler{speechSvc: speechSvc, provider: provider}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/speech", func(speechRouter chi.Router) {
		speechRouter.Post("/synthesize", h.handleSynthesize)
		speechRouter.Get("/health", h.handleHealth)
	})
}

// handleSynthesize 直接合成一段文本并返回音频字节，便于调试语音配置
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req speech.TTSRequest
	if err := utils.DecodeJSON(w, r, maxTextBytes, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	resp, err := h.speechSvc.Synthesize(r.Context(), &req)
	if err != nil {
		log.Printf("[speech] TTS error: %v", err)
		status := http.StatusBadGateway
		if errors.Is(err, speechsvc.ErrEmptyText) {
			status = http.StatusBadRequest
		}
		utils.RespondError(w, status, "speech synthesis failed")
		return
	}

	w.Header().Set("Content-Type", resp.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.AudioData)))
	w.Header().Set("Content-Disposition", "attachment; filename=speech."+resp.Format)
	if resp.RequestID != "" {
		w.Header().Set("X-TTS-Request-Id", resp.RequestID)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.AudioData); err != nil {
		log.Printf("failed to write audio response: %v", err)
	}
}

// handleHealth 健康检查端点
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"service":  "speech",
		"provider": h.provider,
		"lipsync":  h.speechSvc.LipSyncEnabled(),
	})
}

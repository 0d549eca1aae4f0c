package chat

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cybergenix/niva/backend/internal/model/chat"
	"github.com/cybergenix/niva/backend/internal/service/assistant"
	"github.com/cybergenix/niva/backend/internal/service/history"
	"github.com/cybergenix/niva/backend/pkg/utils"
)

const maxBodyBytes = 64 << 10

// Assistant 抽象对话流水线，便于测试替换
type Assistant interface {
	Chat(ctx context.Context, req chat.Request) (*assistant.Result, error)
	ChatStream(ctx context.Context, req chat.Request, emit func(index int, msg chat.Message) error) (*assistant.Result, error)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	assistant Assistant
}

// New 创建聊天处理器
func New(a Assistant) *Handler {
	return &Handler{assistant: a}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/chat/stream", h.handleChatStream)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.assistant.Chat(r.Context(), req)
	if err != nil {
		status, message := classify(err)
		log.Printf("[chat] request failed: %v", err)
		utils.RespondError(w, status, message)
		return
	}

	utils.RespondJSON(w, http.StatusOK, chat.Response{Messages: result.Messages})
}

type streamMessage struct {
	Index   int          `json:"index"`
	Message chat.Message `json:"message"`
}

func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := utils.SendSSEEvent(w, flusher, "start", map[string]string{"chatId": req.ChatID}); err != nil {
		log.Printf("[chat] stream closed: %v", err)
		return
	}

	result, err := h.assistant.ChatStream(r.Context(), req, func(index int, msg chat.Message) error {
		return utils.SendSSEEvent(w, flusher, "message", streamMessage{Index: index, Message: msg})
	})
	if err != nil {
		_, message := classify(err)
		log.Printf("[chat] stream failed: %v", err)
		if sendErr := utils.SendSSEEvent(w, flusher, "error", map[string]string{"error": message}); sendErr != nil {
			log.Printf("[chat] stream closed: %v", sendErr)
		}
		return
	}

	if err := utils.SendSSEEvent(w, flusher, "end", map[string]any{
		"chatId": result.ConversationID,
		"count":  len(result.Messages),
		"source": result.Source,
	}); err != nil {
		log.Printf("[chat] stream closed: %v", err)
	}
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (chat.Request, bool) {
	var req chat.Request
	if err := utils.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return req, false
	}
	return req, true
}

// classify 把流水线错误映射为 HTTP 状态码
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, history.ErrInvalidConversationID):
		return http.StatusBadRequest, "invalid chatId"
	case errors.Is(err, assistant.ErrSynthesis):
		return http.StatusBadGateway, "speech synthesis failed"
	default:
		return http.StatusBadGateway, "assistant is unavailable"
	}
}

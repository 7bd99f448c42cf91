package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/saifinance/subha-ai/backend/internal/model/chat"
	chatService "github.com/saifinance/subha-ai/backend/internal/service/chat"
	"github.com/saifinance/subha-ai/backend/pkg/utils"
)

// Handler 聊天会话的HTTP处理器
type Handler struct {
	sessions *chatService.Service
	logger   zerolog.Logger
}

// New 创建聊天处理器
func New(sessions *chatService.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		logger:   logger.With().Str("component", "chat_handler").Logger(),
	}
}

// RegisterRoutes 注册会话相关的路由，挂载在 /sessions 下。
// extra 用于在 /sessions/{sessionID} 下追加其他处理器的路由（SSE、WebSocket）。
func (h *Handler) RegisterRoutes(r chi.Router, extra ...func(chi.Router)) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.handleGetSession)
			r.Delete("/", h.handleCloseSession)
			r.Post("/connect", h.handleConnect)
			r.Post("/messages", h.handleSendMessage)
			r.Put("/language", h.handleSetLanguage)
			r.Put("/input", h.handleSetInput)
			r.Post("/reset", h.handleReset)
			r.Post("/cancel", h.handleCancel)
			for _, register := range extra {
				register(r)
			}
		})
	})
}

type sendResponse struct {
	Outcome string     `json:"outcome"`
	State   chat.State `json:"state"`
}

type cancelResponse struct {
	Cancelled bool       `json:"cancelled"`
	State     chat.State `json:"state"`
}

// handleCreateSession 创建会话，并像页面加载那样在后台开始连接。
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.sessions.CreateSession(r.Context(), payload.Language)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	go func() {
		if err := session.Connect(context.Background()); err != nil {
			h.logger.Debug().Err(err).Str("session_id", session.ID()).Msg("initial connect failed")
		}
	}()

	utils.RespondJSON(w, http.StatusCreated, session.Snapshot())
}

// handleGetSession 返回会话当前状态
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

// handleCloseSession 关闭会话（页面卸载）
func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleConnect 建立或复用与助手的连接
func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := session.Connect(r.Context()); err != nil {
		if errors.Is(err, chatService.ErrSessionClosed) {
			h.respondServiceError(w, err)
			return
		}
		utils.RespondJSON(w, http.StatusBadGateway, session.Snapshot())
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

// handleSendMessage 发送一条用户消息并等待回复
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome := session.Send(r.Context(), payload.Text)
	utils.RespondJSON(w, outcomeStatus(outcome), sendResponse{
		Outcome: outcome.String(),
		State:   session.Snapshot(),
	})
}

func outcomeStatus(outcome chatService.SendOutcome) int {
	switch outcome {
	case chatService.SendAccepted:
		return http.StatusOK
	case chatService.SendIgnoredEmpty:
		return http.StatusBadRequest
	case chatService.SendRejectedConnecting, chatService.SendRejectedAwaiting:
		return http.StatusConflict
	case chatService.SendRejectedNotConnected:
		return http.StatusBadGateway
	case chatService.SendRejectedClosed:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// handleSetLanguage 切换回复语言
func (h *Handler) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := session.SetLanguage(payload.Language); err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

// handleSetInput 保存输入框草稿
func (h *Handler) handleSetInput(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := session.SetInput(payload.Text); err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

// handleReset 开始新对话
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := session.StartNewChat(); err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

// handleCancel 取消正在等待的回复
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	cancelled := session.CancelPending()
	utils.RespondJSON(w, http.StatusOK, cancelResponse{Cancelled: cancelled, State: session.Snapshot()})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*chatService.Controller, bool) {
	session, err := h.sessions.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	return session, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrSessionClosed):
		utils.RespondError(w, http.StatusGone, err.Error())
	case errors.Is(err, chatService.ErrUnsupportedLanguage):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("unexpected session error")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

package visitor

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/saifinance/subha-ai/backend/pkg/utils"
)

// Counter 记录一次访问并返回最新总数。
type Counter interface {
	Increment(ctx context.Context) (int, error)
}

// Handler 访客计数的HTTP处理器，counter 为 nil 时接口返回 503。
type Handler struct {
	counter Counter
	logger  zerolog.Logger
}

// New 创建访客计数处理器
func New(counter Counter, logger zerolog.Logger) *Handler {
	return &Handler{
		counter: counter,
		logger:  logger.With().Str("component", "visitor_handler").Logger(),
	}
}

// RegisterRoutes 注册访客计数路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/visits", h.handleVisit)
}

func (h *Handler) handleVisit(w http.ResponseWriter, r *http.Request) {
	if h.counter == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "visitor counter not configured")
		return
	}

	visits, err := h.counter.Increment(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("visitor counter update failed")
		utils.RespondError(w, http.StatusBadGateway, "visitor counter unavailable")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]int{"visits": visits})
}

package locale

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/saifinance/subha-ai/backend/internal/model/locale"
	"github.com/saifinance/subha-ai/backend/pkg/utils"
)

// Handler 语言目录的HTTP处理器
type Handler struct {
	locales locale.Store
}

// New 创建语言目录处理器
func New(locales locale.Store) *Handler {
	return &Handler{locales: locales}
}

// RegisterRoutes 注册语言相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/locales", h.handleListLocales)
}

// handleListLocales 列出组件支持的语言及其界面文案
func (h *Handler) handleListLocales(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.locales.List())
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/saifinance/subha-ai/backend/internal/handler/chat"
	localeHandler "github.com/saifinance/subha-ai/backend/internal/handler/locale"
	"github.com/saifinance/subha-ai/backend/internal/handler/stream"
	visitorHandler "github.com/saifinance/subha-ai/backend/internal/handler/visitor"
	"github.com/saifinance/subha-ai/backend/internal/handler/widget"
	middlewarePkg "github.com/saifinance/subha-ai/backend/internal/middleware"
	"github.com/saifinance/subha-ai/backend/internal/model/locale"
	chatService "github.com/saifinance/subha-ai/backend/internal/service/chat"
	"github.com/saifinance/subha-ai/backend/pkg/utils"
)

// Deps 汇总路由需要的服务。Visits 为 nil 时访客计数接口返回 503。
type Deps struct {
	Sessions       *chatService.Service
	Locales        locale.Store
	Visits         visitorHandler.Counter
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	chatHandler := chat.New(deps.Sessions, deps.Logger)
	streamHandler := stream.New(deps.Sessions, deps.Logger)
	widgetHandler := widget.New(deps.Sessions, deps.AllowedOrigins, deps.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": len(deps.Sessions.ListSessions()),
		})
	})

	r.Route("/api", func(api chi.Router) {
		localeHandler.New(deps.Locales).RegisterRoutes(api)
		visitorHandler.New(deps.Visits, deps.Logger).RegisterRoutes(api)
		chatHandler.RegisterRoutes(api, streamHandler.RegisterRoutes, widgetHandler.RegisterRoutes)
	})

	return r
}

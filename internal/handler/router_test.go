package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/saifinance/subha-ai/backend/internal/model/locale"
	"github.com/saifinance/subha-ai/backend/internal/service/assistant"
	chatService "github.com/saifinance/subha-ai/backend/internal/service/chat"
)

func newTestRouter() http.Handler {
	conn := assistant.ConnectorFunc(func(context.Context) (model.ChatModel, error) {
		return nil, errors.New("offline")
	})
	locales := locale.NewMemoryStore(locale.Seed())
	return NewRouter(Deps{
		Sessions:       chatService.NewService(conn, locales, chatService.ServiceOptions{}),
		Locales:        locales,
		AllowedOrigins: []string{"*"},
		Logger:         zerolog.Nop(),
	})
}

func TestRouterRoutes(t *testing.T) {
	r := newTestRouter()

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/api/locales", http.StatusOK},
		{http.MethodPost, "/api/sessions", http.StatusCreated},
		{http.MethodGet, "/api/sessions/missing", http.StatusNotFound},
		{http.MethodGet, "/api/sessions/missing/events", http.StatusNotFound},
		{http.MethodGet, "/api/sessions/missing/ws", http.StatusNotFound},
		{http.MethodPost, "/api/visits", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.want, resp.Code)
		})
	}
}

func TestRouterAnswersPreflight(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "https://saifinance.example")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}

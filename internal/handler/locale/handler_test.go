package locale

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saifinance/subha-ai/backend/internal/model/locale"
)

func TestListLocales(t *testing.T) {
	r := chi.NewRouter()
	New(locale.NewMemoryStore(locale.Seed())).RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/locales", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var got []locale.Locale
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, locale.English, got[0].Language)
	assert.Equal(t, "Tamil (தமிழ்)", got[1].Instruction)
}

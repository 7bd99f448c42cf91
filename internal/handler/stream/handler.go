package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	chatService "github.com/saifinance/subha-ai/backend/internal/service/chat"
	"github.com/saifinance/subha-ai/backend/pkg/utils"
)

const defaultHeartbeat = 15 * time.Second

// Handler pushes session state updates to the widget via Server-Sent Events.
type Handler struct {
	sessions  *chatService.Service
	heartbeat time.Duration
	logger    zerolog.Logger
}

// New creates a new stream handler.
func New(sessions *chatService.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		sessions:  sessions,
		heartbeat: defaultHeartbeat,
		logger:    logger.With().Str("component", "sse").Logger(),
	}
}

// RegisterRoutes mounts the event feed under a session route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.handleEvents)
}

// handleEvents streams one "state" event with the current snapshot, then one
// event per update named after its kind. The stream ends when the client
// goes away or the session is closed.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	updates, stop := session.Subscribe()
	defer stop()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	logger := h.logger.With().Str("session_id", sessionID).Logger()
	logger.Debug().Msg("opening event stream")
	defer logger.Debug().Msg("closing event stream")

	if err := utils.SendSSEEvent(w, flusher, "state", session.Snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case update, open := <-updates:
			if !open {
				_ = utils.SendSSEEvent(w, flusher, "closed", map[string]string{"sessionId": sessionID})
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(update.Kind), update.State); err != nil {
				logger.Debug().Err(err).Msg("event write failed")
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}

package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/saifinance/subha-ai/backend/internal/model/locale"
	"github.com/saifinance/subha-ai/backend/internal/service/assistant"
	"github.com/saifinance/subha-ai/backend/internal/service/render"
)

var ErrSessionNotFound = errors.New("session not found")

// ServiceOptions configures every controller the service creates.
type ServiceOptions struct {
	DefaultLanguage locale.Language
	ConnectTimeout  time.Duration
	ReplyTimeout    time.Duration
	IdleTTL         time.Duration
	Renderer        *render.Renderer
	Logger          zerolog.Logger
	Now             func() time.Time
}

// Service is the in-memory registry of widget sessions.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Controller

	connector assistant.Connector
	locales   locale.Store
	opts      ServiceOptions
	logger    zerolog.Logger
}

// NewService bootstraps an empty registry.
func NewService(connector assistant.Connector, locales locale.Store, opts ServiceOptions) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Renderer == nil {
		opts.Renderer = render.New(render.WithLogger(opts.Logger))
	}
	if !opts.DefaultLanguage.Valid() {
		opts.DefaultLanguage = locale.English
	}
	return &Service{
		sessions:  make(map[string]*Controller),
		connector: connector,
		locales:   locales,
		opts:      opts,
		logger:    opts.Logger.With().Str("component", "sessions").Logger(),
	}
}

// CreateSession provisions a session in the requested language. An empty
// language selects the configured default.
func (s *Service) CreateSession(_ context.Context, language string) (*Controller, error) {
	lang := s.opts.DefaultLanguage
	if language != "" {
		parsed, ok := locale.ParseLanguage(language)
		if !ok {
			return nil, ErrUnsupportedLanguage
		}
		if _, ok := s.locales.Find(parsed); !ok {
			return nil, ErrUnsupportedLanguage
		}
		lang = parsed
	}

	ctrl := NewController(uuid.NewString(), s.connector, s.locales, ControllerOptions{
		Language:       lang,
		ConnectTimeout: s.opts.ConnectTimeout,
		ReplyTimeout:   s.opts.ReplyTimeout,
		Renderer:       s.opts.Renderer,
		Logger:         s.opts.Logger,
		Now:            s.opts.Now,
	})

	s.mu.Lock()
	s.sessions[ctrl.ID()] = ctrl
	total := len(s.sessions)
	s.mu.Unlock()

	s.logger.Info().Str("session_id", ctrl.ID()).Str("language", string(lang)).Int("active", total).Msg("session created")
	return ctrl, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (*Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctrl, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ctrl, nil
}

// CloseSession removes a session and tears it down.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	ctrl, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	ctrl.Close()
	return nil
}

// ListSessions returns the ids of all live sessions, sorted.
func (s *Service) ListSessions() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Sweep closes sessions idle for longer than the configured TTL and returns
// how many were removed. A zero TTL disables sweeping.
func (s *Service) Sweep(now time.Time) int {
	ttl := s.opts.IdleTTL
	if ttl <= 0 {
		return 0
	}

	var expired []*Controller
	s.mu.Lock()
	for id, ctrl := range s.sessions {
		if ctrl.Idle(now, ttl) {
			expired = append(expired, ctrl)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, ctrl := range expired {
		ctrl.Close()
	}
	if len(expired) > 0 {
		s.logger.Info().Int("expired", len(expired)).Msg("swept idle sessions")
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is cancelled, then closes every
// remaining session.
func (s *Service) Run(ctx context.Context) {
	defer s.CloseAll()

	if s.opts.IdleTTL <= 0 {
		<-ctx.Done()
		return
	}

	interval := s.opts.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.opts.Now())
		}
	}
}

// CloseAll tears down every session.
func (s *Service) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Controller)
	s.mu.Unlock()

	for _, ctrl := range sessions {
		ctrl.Close()
	}
}

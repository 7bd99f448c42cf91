package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/saifinance/subha-ai/backend/internal/config"
	"github.com/saifinance/subha-ai/backend/internal/handler"
	"github.com/saifinance/subha-ai/backend/internal/logging"
	"github.com/saifinance/subha-ai/backend/internal/model/locale"
	"github.com/saifinance/subha-ai/backend/internal/service/assistant"
	"github.com/saifinance/subha-ai/backend/internal/service/chat"
	"github.com/saifinance/subha-ai/backend/internal/service/render"
	"github.com/saifinance/subha-ai/backend/internal/service/visitor"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file, using system environment variables only")
	}

	connector, err := assistant.NewConnector(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create assistant connector")
	}
	logger.Info().Str("provider", cfg.Assistant.Provider).Msg("assistant connector ready")

	locales := locale.NewMemoryStore(locale.Seed())
	sessions := chat.NewService(connector, locales, sessionOptions(cfg, logger))
	go sessions.Run(ctx)

	deps := handler.Deps{
		Sessions:       sessions,
		Locales:        locales,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	}
	if cfg.Visitor.Enabled() {
		deps.Visits = visitor.NewCounter(cfg.Visitor.URL,
			visitor.WithHTTPClient(&http.Client{Timeout: cfg.Visitor.Timeout}),
			visitor.WithLogger(logger.With().Str("component", "visitor").Logger()),
		)
	} else {
		logger.Info().Msg("VISITOR_COUNTER_URL 未配置，跳过访客计数")
	}

	startServer(ctx, logger, cfg.Server, handler.NewRouter(deps))
}

func startServer(ctx context.Context, logger zerolog.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("Subha AI backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// sessionOptions 将配置转换为会话注册表参数
func sessionOptions(cfg *config.Config, logger zerolog.Logger) chat.ServiceOptions {
	lang, ok := locale.ParseLanguage(cfg.Assistant.DefaultLanguage)
	if !ok {
		logger.Warn().Str("language", cfg.Assistant.DefaultLanguage).Msg("unsupported default language, using English")
		lang = locale.English
	}
	return chat.ServiceOptions{
		DefaultLanguage: lang,
		ConnectTimeout:  cfg.Assistant.ConnectTimeout,
		ReplyTimeout:    cfg.Assistant.ReplyTimeout,
		IdleTTL:         cfg.Session.IdleTTL,
		Renderer:        render.New(render.WithLogger(logger)),
		Logger:          logger,
	}
}

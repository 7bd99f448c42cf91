package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saifinance/subha-ai/backend/internal/config"
	"github.com/saifinance/subha-ai/backend/internal/model/locale"
	"github.com/saifinance/subha-ai/backend/internal/service/assistant"
	"github.com/saifinance/subha-ai/backend/internal/service/chat"
)

func TestRunServerStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv := &http.Server{Addr: addr, Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runServer did not return")
	}
}

func TestRunServerReportsListenError(t *testing.T) {
	srv := &http.Server{Addr: "256.0.0.1:bad"}
	err := runServer(context.Background(), srv)
	assert.Error(t, err)
}

func TestSessionOptionsParsesDefaultLanguage(t *testing.T) {
	cfg := &config.Config{}
	cfg.Assistant.DefaultLanguage = "TA"

	opts := sessionOptions(cfg, zerolog.Nop())
	assert.Equal(t, locale.Tamil, opts.DefaultLanguage)

	conn := assistant.ConnectorFunc(func(context.Context) (model.ChatModel, error) {
		return nil, assistant.ErrNoUserMessage
	})
	sessions := chat.NewService(conn, locale.NewMemoryStore(locale.Seed()), opts)
	t.Cleanup(sessions.CloseAll)
	session, err := sessions.CreateSession(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, locale.Tamil, session.Snapshot().Language)

	cfg.Assistant.DefaultLanguage = "fr"
	assert.Equal(t, locale.English, sessionOptions(cfg, zerolog.Nop()).DefaultLanguage)
}

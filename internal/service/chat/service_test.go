package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saifinance/subha-ai/backend/internal/model/locale"
	"github.com/saifinance/subha-ai/backend/internal/service/assistant"
	chat "github.com/saifinance/subha-ai/backend/internal/service/chat"
)

func newTestService(opts chat.ServiceOptions) *chat.Service {
	conn := assistant.ConnectorFunc(func(context.Context) (model.ChatModel, error) {
		return nil, assistant.ErrNoUserMessage
	})
	return chat.NewService(conn, locale.NewMemoryStore(locale.Seed()), opts)
}

func TestServiceGetSession(t *testing.T) {
	svc := newTestService(chat.ServiceOptions{})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "ta")
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, session.ID())
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Equal(t, locale.Tamil, got.Snapshot().Language)
}

func TestServiceCreateSessionDefaultsLanguage(t *testing.T) {
	svc := newTestService(chat.ServiceOptions{DefaultLanguage: locale.Tamil})

	session, err := svc.CreateSession(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, locale.Tamil, session.Snapshot().Language)
}

func TestServiceCreateSessionRejectsUnknownLanguage(t *testing.T) {
	svc := newTestService(chat.ServiceOptions{})

	_, err := svc.CreateSession(context.Background(), "klingon")
	assert.ErrorIs(t, err, chat.ErrUnsupportedLanguage)
	assert.Empty(t, svc.ListSessions())
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newTestService(chat.ServiceOptions{})

	_, err := svc.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestServiceCloseSession(t *testing.T) {
	svc := newTestService(chat.ServiceOptions{})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	require.NoError(t, svc.CloseSession(ctx, session.ID()))
	assert.ErrorIs(t, svc.CloseSession(ctx, session.ID()), chat.ErrSessionNotFound)
	assert.Equal(t, chat.SendRejectedClosed, session.Send(ctx, "hello"))
}

func TestServiceSweepRemovesIdleSessions(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestService(chat.ServiceOptions{
		IdleTTL: 10 * time.Minute,
		Now:     func() time.Time { return now },
	})
	ctx := context.Background()

	stale, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	now = now.Add(8 * time.Minute)
	fresh, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, 1, svc.Sweep(now.Add(5*time.Minute)))
	assert.Equal(t, []string{fresh.ID()}, svc.ListSessions())

	_, err = svc.GetSession(ctx, stale.ID())
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestServiceSweepDisabledWithoutTTL(t *testing.T) {
	svc := newTestService(chat.ServiceOptions{})
	_, err := svc.CreateSession(context.Background(), "")
	require.NoError(t, err)

	assert.Zero(t, svc.Sweep(time.Now().Add(24*time.Hour)))
	assert.Len(t, svc.ListSessions(), 1)
}

func TestServiceRunClosesSessionsOnShutdown(t *testing.T) {
	svc := newTestService(chat.ServiceOptions{IdleTTL: time.Hour})
	session, err := svc.CreateSession(context.Background(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.Empty(t, svc.ListSessions())
	assert.Equal(t, chat.SendRejectedClosed, session.Send(context.Background(), "hi"))
}

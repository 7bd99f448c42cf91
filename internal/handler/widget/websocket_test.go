package widget

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modelchat "github.com/saifinance/subha-ai/backend/internal/model/chat"
	"github.com/saifinance/subha-ai/backend/internal/model/locale"
	"github.com/saifinance/subha-ai/backend/internal/service/assistant"
	chatservice "github.com/saifinance/subha-ai/backend/internal/service/chat"
)

type replyModel struct{ reply string }

func (m replyModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m replyModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, _ := m.Generate(ctx, input, opts...)
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (replyModel) BindTools([]*schema.ToolInfo) error { return nil }

type received struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Kind      string          `json:"kind"`
	Data      json.RawMessage `json:"data"`
}

func dial(t *testing.T) (*websocket.Conn, *chatservice.Controller, *chatservice.Service) {
	t.Helper()
	conn := assistant.ConnectorFunc(func(context.Context) (model.ChatModel, error) {
		return replyModel{reply: "Our gold loan rates start low."}, nil
	})
	sessions := chatservice.NewService(conn, locale.NewMemoryStore(locale.Seed()), chatservice.ServiceOptions{})
	session, err := sessions.CreateSession(context.Background(), "")
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/sessions/{sessionID}", New(sessions, []string{"*"}, zerolog.Nop()).RegisterRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + session.ID() + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws, session, sessions
}

// readUntil reads frames until match returns true.
func readUntil(t *testing.T, ws *websocket.Conn, match func(received) bool) received {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg received
		require.NoError(t, ws.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func TestWebSocketSendsInitialState(t *testing.T) {
	ws, session, _ := dial(t)

	msg := readUntil(t, ws, func(m received) bool { return m.Type == "state" })
	assert.Equal(t, "state", msg.Kind)
	assert.Equal(t, session.ID(), msg.SessionID)
}

func TestWebSocketConnectAndSend(t *testing.T) {
	ws, _, _ := dial(t)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "connect"}))
	readUntil(t, ws, func(m received) bool { return m.Kind == string(modelchat.UpdateConnected) })

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "send", "data": map[string]string{"text": "gold loan?"}}))
	msg := readUntil(t, ws, func(m received) bool {
		if m.Kind != string(modelchat.UpdateMessage) {
			return false
		}
		var state modelchat.State
		require.NoError(t, json.Unmarshal(m.Data, &state))
		last := state.Transcript[len(state.Transcript)-1]
		return last.Sender == modelchat.SenderBot && !last.IsPlaceholder
	})

	var state modelchat.State
	require.NoError(t, json.Unmarshal(msg.Data, &state))
	assert.Equal(t, "Our gold loan rates start low.", state.Transcript[len(state.Transcript)-1].Text)
}

func TestWebSocketRejectsUnknownType(t *testing.T) {
	ws, _, _ := dial(t)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "audio"}))
	msg := readUntil(t, ws, func(m received) bool { return m.Type == "error" })
	assert.Contains(t, string(msg.Data), "unsupported message type: audio")
}

func TestWebSocketReportsBadLanguage(t *testing.T) {
	ws, _, _ := dial(t)

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "language", "data": map[string]string{"language": "fr"}}))
	msg := readUntil(t, ws, func(m received) bool { return m.Type == "error" })
	assert.Contains(t, string(msg.Data), "unsupported language")
}

func TestWebSocketNotifiesOnSessionClose(t *testing.T) {
	ws, session, sessions := dial(t)
	readUntil(t, ws, func(m received) bool { return m.Type == "state" })

	require.NoError(t, sessions.CloseSession(context.Background(), session.ID()))
	readUntil(t, ws, func(m received) bool { return m.Type == "closed" })
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://saifinance.example"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://saifinance.example")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://other.example")
	assert.False(t, check(req))

	assert.True(t, originChecker(nil)(req))
}

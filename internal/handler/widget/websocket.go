package widget

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/saifinance/subha-ai/backend/internal/model/chat"
	chatService "github.com/saifinance/subha-ai/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
	outboxSize   = 32
)

// Handler WebSocket 组件通道：入站为组件操作，出站为状态快照与错误。
type Handler struct {
	sessions *chatService.Service
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// New 创建WebSocket处理器，allowedOrigins 为空或包含 "*" 时不校验来源。
func New(sessions *chatService.Service, allowedOrigins []string, logger zerolog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.With().Str("component", "websocket").Logger(),
	}
}

// RegisterRoutes 在会话路由下注册 /ws
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

func originChecker(allowed []string) func(*http.Request) bool {
	origins := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		if origin != "" {
			origins[origin] = struct{}{}
		}
	}
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := origins[origin]
		return ok
	}
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

type textPayload struct {
	Text string `json:"text"`
}

type languagePayload struct {
	Language string `json:"language"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// connection 保存一条 WebSocket 连接的状态。所有写操作都经由 outbox
// 交给唯一的写协程完成。
type connection struct {
	conn    *websocket.Conn
	session *chatService.Controller
	outbox  chan outgoingMessage
	logger  zerolog.Logger
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer ws.Close()

	c := &connection{
		conn:    ws,
		session: session,
		outbox:  make(chan outgoingMessage, outboxSize),
		logger:  h.logger.With().Str("session_id", sessionID).Logger(),
	}
	c.logger.Info().Msg("websocket connected")
	defer c.logger.Info().Msg("websocket disconnected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, stop := session.Subscribe()
	defer stop()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		c.writeLoop(ctx, updates)
		// unblock the reader
		_ = ws.Close()
	}()

	c.enqueue(ctx, c.stateMessage("state", session.Snapshot()))
	c.readLoop(ctx)

	cancel()
	<-writerDone
}

func (c *connection) readLoop(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != c.session.ID() {
			c.sendError(ctx, "session mismatch")
			continue
		}
		c.handleMessage(ctx, &msg)

		if ctx.Err() != nil {
			return
		}
	}
}

func (c *connection) handleMessage(ctx context.Context, msg *inboundMessage) {
	switch msg.Type {
	case "connect":
		go func() {
			// the failure reason reaches the client through the state update
			_ = c.session.Connect(ctx)
		}()
	case "send":
		var payload textPayload
		if err := decodeData(msg.Data, &payload); err != nil {
			c.sendError(ctx, "invalid send payload")
			return
		}
		go func() {
			if outcome := c.session.Send(ctx, payload.Text); outcome != chatService.SendAccepted {
				c.sendError(ctx, "message not sent: "+outcome.String())
			}
		}()
	case "language":
		var payload languagePayload
		if err := decodeData(msg.Data, &payload); err != nil {
			c.sendError(ctx, "invalid language payload")
			return
		}
		if err := c.session.SetLanguage(payload.Language); err != nil {
			c.sendError(ctx, err.Error())
		}
	case "input":
		var payload textPayload
		if err := decodeData(msg.Data, &payload); err != nil {
			c.sendError(ctx, "invalid input payload")
			return
		}
		if err := c.session.SetInput(payload.Text); err != nil {
			c.sendError(ctx, err.Error())
		}
	case "reset":
		if err := c.session.StartNewChat(); err != nil {
			c.sendError(ctx, err.Error())
		}
	case "cancel":
		c.session.CancelPending()
	default:
		c.sendError(ctx, "unsupported message type: "+msg.Type)
	}
}

func decodeData(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func (c *connection) writeLoop(ctx context.Context, updates <-chan chat.Update) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		case update, open := <-updates:
			if !open {
				_ = c.write(outgoingMessage{Type: "closed", SessionID: c.session.ID(), Timestamp: time.Now().Unix()})
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(writeTimeout))
				return
			}
			if err := c.write(c.stateMessage(string(update.Kind), update.State)); err != nil {
				return
			}
		case msg := <-c.outbox:
			if err := c.write(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (c *connection) write(msg outgoingMessage) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug().Err(err).Str("type", msg.Type).Msg("write failed")
		return err
	}
	return nil
}

func (c *connection) stateMessage(kind string, state any) outgoingMessage {
	return outgoingMessage{
		Type:      "state",
		SessionID: c.session.ID(),
		Kind:      kind,
		Data:      state,
		Timestamp: time.Now().Unix(),
	}
}

func (c *connection) sendError(ctx context.Context, message string) {
	c.enqueue(ctx, outgoingMessage{
		Type:      "error",
		SessionID: c.session.ID(),
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	})
}

func (c *connection) enqueue(ctx context.Context, msg outgoingMessage) {
	select {
	case c.outbox <- msg:
	case <-ctx.Done():
	}
}

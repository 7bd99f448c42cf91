package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/saifinance/subha-ai/backend/internal/model/chat"
	"github.com/saifinance/subha-ai/backend/internal/model/locale"
	"github.com/saifinance/subha-ai/backend/internal/service/assistant"
	"github.com/saifinance/subha-ai/backend/internal/service/render"
)

const (
	thinkingText          = "Thinking..."
	connectingPlaceholder = "Connecting to Assistant..."
	processingPlaceholder = "Processing..."

	connectErrorFormat  = "Could not connect to the assistant (%s). Please try again later."
	notConnectedError   = "Not connected. Please wait or try again."
	unclearReplyText    = "Sorry, I received an unclear response from the assistant."
	unclearReplyError   = "Received unclear response."
	exchangeFailureText = "Sorry, the assistant encountered a problem processing your request."
	exchangeError       = "Couldn't get response. Please try again."
	cancelledText       = "Request cancelled."

	subscriberBuffer = 16
)

var (
	ErrSessionClosed       = errors.New("session closed")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// SendOutcome reports what Send did with a message.
type SendOutcome int

const (
	SendAccepted SendOutcome = iota
	SendRejectedConnecting
	SendRejectedAwaiting
	SendRejectedNotConnected
	SendIgnoredEmpty
	SendRejectedClosed
)

func (o SendOutcome) String() string {
	switch o {
	case SendAccepted:
		return "accepted"
	case SendRejectedConnecting:
		return "connecting"
	case SendRejectedAwaiting:
		return "awaiting_reply"
	case SendRejectedNotConnected:
		return "not_connected"
	case SendIgnoredEmpty:
		return "empty"
	case SendRejectedClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ControllerOptions tunes a Controller. Zero timeouts mean no deadline.
type ControllerOptions struct {
	Language       locale.Language
	ConnectTimeout time.Duration
	ReplyTimeout   time.Duration
	Renderer       *render.Renderer
	Logger         zerolog.Logger
	Now            func() time.Time
}

// Controller owns one widget session: the connection handle to the remote
// assistant, the transcript, and the two flags that serialize work on them.
// All methods are safe for concurrent use; the mutex is never held across a
// remote call.
type Controller struct {
	id             string
	connector      assistant.Connector
	locales        locale.Store
	renderer       *render.Renderer
	connectTimeout time.Duration
	replyTimeout   time.Duration
	logger         zerolog.Logger
	now            func() time.Time

	ctx      context.Context
	cancel   context.CancelFunc
	connects singleflight.Group

	mu          sync.Mutex
	handle      compose.Runnable[map[string]any, *schema.Message]
	connecting  bool
	awaiting    bool
	cancelReply context.CancelFunc
	epoch       uint64
	language    locale.Language
	input       string
	errMsg      string
	transcript  []chat.Message
	lastActive  time.Time
	closed      bool
	subs        map[uint64]chan chat.Update
	nextSub     uint64
}

// NewController creates a controller. It does not connect; call Connect or
// EnsureConnected when a live handle is needed.
func NewController(id string, connector assistant.Connector, locales locale.Store, opts ControllerOptions) *Controller {
	if id == "" {
		id = uuid.NewString()
	}
	if opts.Renderer == nil {
		opts.Renderer = render.New(render.WithLogger(opts.Logger))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	lang := opts.Language
	if _, ok := locales.Find(lang); !ok {
		lang = locale.English
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		id:             id,
		connector:      connector,
		locales:        locales,
		renderer:       opts.Renderer,
		connectTimeout: opts.ConnectTimeout,
		replyTimeout:   opts.ReplyTimeout,
		logger:         opts.Logger.With().Str("session_id", id).Logger(),
		now:            opts.Now,
		ctx:            ctx,
		cancel:         cancel,
		language:       lang,
		lastActive:     opts.Now(),
		subs:           make(map[uint64]chan chat.Update),
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.id
}

// Connect establishes the connection handle. Concurrent callers share a
// single attempt; a connected controller returns immediately. A failure is
// also recorded in the visible error slot.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.touchLocked()
	connected := c.handle != nil
	c.mu.Unlock()
	if connected {
		return nil
	}

	ch := c.connects.DoChan("connect", func() (any, error) {
		return nil, c.connect()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnsureConnected is the idempotent entry point for callers that need a live
// connection.
func (c *Controller) EnsureConnected(ctx context.Context) error {
	return c.Connect(ctx)
}

func (c *Controller) connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	if c.handle != nil {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	c.mu.Unlock()
	c.publish(chat.UpdateConnecting)

	kind := chat.UpdateError
	defer func() {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
		c.publish(kind)
	}()

	ctx, cancel := c.callContext(c.connectTimeout)
	defer cancel()

	c.logger.Info().Msg("connecting to assistant")
	handle, err := c.open(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("assistant connection failed")
		c.mu.Lock()
		c.handle = nil
		c.errMsg = fmt.Sprintf(connectErrorFormat, assistant.Reason(err))
		c.mu.Unlock()
		return fmt.Errorf("connect assistant: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSessionClosed
	}
	c.handle = handle
	c.errMsg = ""
	if len(c.transcript) == 0 {
		c.appendLocked(chat.SenderBot, c.localeLocked().Greeting, false)
	}
	kind = chat.UpdateConnected
	c.logger.Info().Msg("assistant connected")
	return nil
}

func (c *Controller) open(ctx context.Context) (handle compose.Runnable[map[string]any, *schema.Message], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("assistant connector panicked: %v", r)
		}
	}()

	cm, err := c.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return newExchange(ctx, cm)
}

// Send submits rawText to the assistant and blocks until the reply, a
// failure, or a cancellation has been recorded in the transcript. Rejections
// leave the transcript untouched.
func (c *Controller) Send(ctx context.Context, rawText string) SendOutcome {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return SendRejectedClosed
	case c.connecting:
		c.mu.Unlock()
		c.logger.Warn().Msg("send aborted: still connecting")
		return SendRejectedConnecting
	case c.awaiting:
		c.mu.Unlock()
		c.logger.Warn().Msg("send aborted: waiting for previous reply")
		return SendRejectedAwaiting
	}
	c.touchLocked()
	connected := c.handle != nil
	c.mu.Unlock()

	if !connected {
		c.logger.Warn().Msg("send without connection, connecting first")
		if err := c.EnsureConnected(ctx); err != nil {
			c.mu.Lock()
			if c.errMsg == "" {
				c.errMsg = notConnectedError
			}
			c.mu.Unlock()
			c.publish(chat.UpdateError)
			return SendRejectedNotConnected
		}
	}

	text := strings.TrimSpace(rawText)
	if text == "" {
		return SendIgnoredEmpty
	}

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return SendRejectedClosed
	case c.connecting:
		c.mu.Unlock()
		return SendRejectedConnecting
	case c.awaiting:
		c.mu.Unlock()
		return SendRejectedAwaiting
	case c.handle == nil:
		c.mu.Unlock()
		return SendRejectedNotConnected
	}
	handle := c.handle
	c.awaiting = true
	c.input = ""
	c.errMsg = ""
	c.appendLocked(chat.SenderUser, text, false)
	placeholder := c.appendLocked(chat.SenderBot, thinkingText, true)
	epoch := c.epoch
	instruction := c.localeLocked().Instruction
	replyCtx, cancel := c.callContext(c.replyTimeout)
	c.cancelReply = cancel
	c.mu.Unlock()
	c.publish(chat.UpdateMessage)

	defer func() {
		cancel()
		c.mu.Lock()
		c.awaiting = false
		c.cancelReply = nil
		c.mu.Unlock()
		c.publish(chat.UpdateIdle)
	}()

	c.logger.Debug().Str("instruction", instruction).Int("length", len(text)).Msg("sending message")
	reply, err := c.invoke(replyCtx, handle, instruction, text)

	c.mu.Lock()
	if c.closed || c.epoch != epoch {
		c.mu.Unlock()
		c.logger.Info().Msg("discarding reply for a cleared chat")
		return SendAccepted
	}
	c.removeLocked(placeholder.ID)
	switch {
	case err != nil && errors.Is(replyCtx.Err(), context.Canceled):
		c.logger.Info().Msg("reply cancelled")
		c.appendLocked(chat.SenderBot, cancelledText, false)
	case err != nil:
		c.logger.Error().Err(err).Msg("assistant call failed")
		text := exchangeFailureText
		if reason := assistant.Reason(err); reason != "" {
			text = "Error: " + reason
		}
		c.appendLocked(chat.SenderBot, text, false)
		c.errMsg = exchangeError
	case strings.TrimSpace(reply) == "":
		c.logger.Error().Msg("failed to parse a usable reply")
		c.appendLocked(chat.SenderBot, unclearReplyText, false)
		c.errMsg = unclearReplyError
	default:
		c.appendLocked(chat.SenderBot, reply, false)
	}
	c.mu.Unlock()
	c.publish(chat.UpdateMessage)
	return SendAccepted
}

func (c *Controller) invoke(ctx context.Context, handle compose.Runnable[map[string]any, *schema.Message], instruction, text string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("assistant call panicked: %v", r)
		}
	}()

	msg, err := handle.Invoke(ctx, exchangeInput(instruction, text))
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}

// CancelPending aborts the in-flight reply, if any.
func (c *Controller) CancelPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelReply == nil {
		return false
	}
	c.touchLocked()
	c.cancelReply()
	return true
}

// SetLanguage switches the reply language for later messages. Unsupported
// values are rejected without changing anything.
func (c *Controller) SetLanguage(raw string) error {
	lang, ok := locale.ParseLanguage(raw)
	if ok {
		_, ok = c.locales.Find(lang)
	}
	if !ok {
		c.logger.Warn().Str("language", raw).Msg("unsupported language")
		return ErrUnsupportedLanguage
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.touchLocked()
	c.language = lang
	c.mu.Unlock()

	c.logger.Info().Str("language", string(lang)).Msg("language set")
	c.publish(chat.UpdateLanguage)
	return nil
}

// SetInput stores the draft text of the input field.
func (c *Controller) SetInput(text string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.touchLocked()
	c.input = text
	c.mu.Unlock()
	c.publish(chat.UpdateInput)
	return nil
}

// StartNewChat clears the transcript and greets again. The connection handle
// is kept; a pending reply is cancelled and its result discarded.
func (c *Controller) StartNewChat() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	c.touchLocked()
	c.epoch++
	if c.cancelReply != nil {
		c.cancelReply()
	}
	c.transcript = nil
	c.errMsg = ""
	c.appendLocked(chat.SenderBot, c.localeLocked().NewChatGreeting, false)
	c.input = ""
	c.mu.Unlock()

	c.logger.Info().Msg("started new chat")
	c.publish(chat.UpdateReset)
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() chat.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel of state updates and a function that ends the
// subscription. Every update carries the full state, so a slow subscriber
// only ever misses intermediate snapshots.
func (c *Controller) Subscribe() (<-chan chat.Update, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan chat.Update, subscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Idle reports whether the session has been inactive for longer than ttl.
// Sessions with work in flight are never idle.
func (c *Controller) Idle(now time.Time, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connecting || c.awaiting {
		return false
	}
	return now.Sub(c.lastActive) > ttl
}

// Close tears the session down: pending calls are cancelled, the handle is
// dropped and subscribers are released.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.cancelReply != nil {
		c.cancelReply()
	}
	c.handle = nil
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	c.cancel()
	c.logger.Info().Msg("session closed")
}

func (c *Controller) callContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(c.ctx, timeout)
	}
	return context.WithCancel(c.ctx)
}

func (c *Controller) publish(kind chat.UpdateKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.subs) == 0 {
		return
	}

	update := chat.Update{Kind: kind, State: c.snapshotLocked()}
	for _, ch := range c.subs {
		select {
		case ch <- update:
		default:
			// keep the newest snapshot
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- update:
			default:
			}
		}
	}
}

func (c *Controller) snapshotLocked() chat.State {
	loc := c.localeLocked()
	placeholder := loc.Placeholder
	switch {
	case c.connecting:
		placeholder = connectingPlaceholder
	case c.awaiting:
		placeholder = processingPlaceholder
	}

	return chat.State{
		SessionID:     c.id,
		Language:      c.language,
		Placeholder:   placeholder,
		Input:         c.input,
		InputDisabled: c.connecting || c.awaiting,
		Connected:     c.handle != nil,
		Connecting:    c.connecting,
		AwaitingReply: c.awaiting,
		Error:         c.errMsg,
		Transcript:    append([]chat.Message(nil), c.transcript...),
		UpdatedAt:     c.lastActive,
	}
}

func (c *Controller) localeLocked() locale.Locale {
	if loc, ok := c.locales.Find(c.language); ok {
		return loc
	}
	if all := c.locales.List(); len(all) > 0 {
		return all[0]
	}
	return locale.Locale{Language: c.language}
}

func (c *Controller) appendLocked(sender chat.Sender, text string, placeholder bool) chat.Message {
	rendered := c.renderer.User(text)
	if sender == chat.SenderBot {
		rendered = c.renderer.Bot(text)
	}
	msg := chat.Message{
		ID:            uuid.NewString(),
		Sender:        sender,
		Text:          text,
		HTML:          rendered,
		IsPlaceholder: placeholder,
		CreatedAt:     c.now().UTC(),
	}
	c.transcript = append(c.transcript, msg)
	return msg
}

func (c *Controller) removeLocked(id string) {
	for i, msg := range c.transcript {
		if msg.ID == id {
			c.transcript = append(c.transcript[:i], c.transcript[i+1:]...)
			return
		}
	}
}

func (c *Controller) touchLocked() {
	c.lastActive = c.now()
}

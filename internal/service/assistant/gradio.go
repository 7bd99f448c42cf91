package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

const maxResponseBytes = 1 << 20

// GradioConfig describes a hosted Gradio Space.
type GradioConfig struct {
	BaseURL string
	Route   string
}

// GradioClient talks to a Gradio Space over plain HTTP.
//
// The client itself never sets a deadline; callers bound every call through
// the context they pass in.
type GradioClient struct {
	baseURL    string
	route      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// GradioOption configures a GradioClient.
type GradioOption func(*GradioClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) GradioOption {
	return func(g *GradioClient) {
		g.httpClient = c
	}
}

// WithLogger sets the logger used by the client.
func WithLogger(logger zerolog.Logger) GradioOption {
	return func(g *GradioClient) {
		g.logger = logger
	}
}

// NewGradioClient returns a client for the Space at cfg.BaseURL.
func NewGradioClient(cfg GradioConfig, opts ...GradioOption) *GradioClient {
	route := strings.TrimSpace(cfg.Route)
	if route == "" {
		route = "/chat"
	}
	c := &GradioClient{
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		route:      route,
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type spaceConfig struct {
	Version string `json:"version"`
}

// Connect verifies the Space is reachable by loading its config and returns a
// chat model bound to the prediction route.
func (c *GradioClient) Connect(ctx context.Context) (model.ChatModel, error) {
	endpoint, err := url.JoinPath(c.baseURL, "config")
	if err != nil {
		return nil, newError(KindConnect, err, "invalid assistant address %q", c.baseURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, newError(KindConnect, err, "build config request")
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", endpoint).Msg("loading space config")
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var cfg spaceConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, newError(KindDecode, err, "unexpected space config payload")
	}

	c.logger.Info().Str("url", c.baseURL).Str("gradio_version", cfg.Version).Msg("connected to assistant space")
	return &gradioModel{client: c}, nil
}

type predictMessage struct {
	Text  string   `json:"text"`
	Files []string `json:"files"`
}

type predictRequest struct {
	Message predictMessage `json:"message"`
}

// Predict sends text to the prediction route and returns the parsed reply.
// An empty string means the payload held nothing usable.
func (c *GradioClient) Predict(ctx context.Context, text string) (string, error) {
	endpoint, err := url.JoinPath(c.baseURL, c.route)
	if err != nil {
		return "", newError(KindTransport, err, "invalid prediction route %q", c.route)
	}

	payload, err := json.Marshal(predictRequest{Message: predictMessage{Text: text, Files: []string{}}})
	if err != nil {
		return "", newError(KindTransport, err, "encode prediction request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", newError(KindTransport, err, "build prediction request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", endpoint).Int("bytes", len(payload)).Msg("calling predict")
	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	reply, shape, err := ParseReply(body)
	if err != nil {
		return "", newError(KindDecode, err, "unreadable reply")
	}
	switch shape {
	case ShapeOther:
		c.logger.Warn().Str("reply", reply).Msg("reply is not a string, using its JSON form")
	case ShapeMissing:
		c.logger.Warn().Msg("reply payload has no usable data")
	default:
		c.logger.Debug().Str("shape", shape.String()).Int("length", len(reply)).Msg("parsed reply")
	}
	return reply, nil
}

func (c *GradioClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, newError(KindTransport, ctxErr, "request aborted")
		}
		return nil, newError(KindTransport, unwrapURLError(err), "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, newError(KindTransport, err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newError(KindStatus, nil, "assistant returned %s", resp.Status)
	}
	return body, nil
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

// gradioModel adapts a connected GradioClient to the eino chat model
// interface so it can run inside a compiled chain.
type gradioModel struct {
	client *GradioClient
}

func (m *gradioModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	text, err := lastUserText(input)
	if err != nil {
		return nil, err
	}
	reply, err := m.client.Predict(ctx, text)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(reply, nil), nil
}

func (m *gradioModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *gradioModel) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) == 0 {
		return nil
	}
	return fmt.Errorf("gradio assistant does not support tool calling")
}

func lastUserText(input []*schema.Message) (string, error) {
	for i := len(input) - 1; i >= 0; i-- {
		if input[i] != nil && input[i].Role == schema.User {
			return input[i].Content, nil
		}
	}
	return "", ErrNoUserMessage
}

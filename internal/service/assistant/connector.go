// Package assistant connects to the hosted conversational model that answers
// widget questions.
package assistant

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"

	"github.com/saifinance/subha-ai/backend/internal/config"
)

// Connector establishes a live handle to the remote assistant.
type Connector interface {
	Connect(ctx context.Context) (model.ChatModel, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (model.ChatModel, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context) (model.ChatModel, error) {
	return f(ctx)
}

// ArkConnector builds an Ark chat model from configuration.
type ArkConnector struct {
	cfg config.AIConfig
}

// NewArkConnector returns a connector for the Ark backend.
func NewArkConnector(cfg config.AIConfig) *ArkConnector {
	return &ArkConnector{cfg: cfg}
}

// Connect creates the Ark chat model.
func (a *ArkConnector) Connect(ctx context.Context) (model.ChatModel, error) {
	m, err := a.cfg.NewChatModel(ctx)
	if err != nil {
		return nil, newError(KindConnect, err, "create ark chat model")
	}
	return m, nil
}

// NewConnector picks the backend named by cfg.Assistant.Provider.
func NewConnector(cfg *config.Config, logger zerolog.Logger) (Connector, error) {
	switch cfg.Assistant.Provider {
	case config.ProviderGradio:
		return NewGradioClient(GradioConfig{
			BaseURL: cfg.Assistant.BaseURL,
			Route:   cfg.Assistant.Route,
		}, WithLogger(logger.With().Str("component", "gradio").Logger())), nil
	case config.ProviderArk:
		return NewArkConnector(cfg.AI), nil
	default:
		return nil, fmt.Errorf("unsupported assistant provider %q", cfg.Assistant.Provider)
	}
}

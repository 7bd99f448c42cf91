package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// 支持的助手后端。
const (
	ProviderGradio = "gradio"
	ProviderArk    = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Assistant AssistantConfig
	AI        AIConfig
	Session   SessionConfig
	Visitor   VisitorConfig
	Log       LogConfig
}

// Load 从环境变量加载配置。调用方负责在此之前加载 .env。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	cfg.Assistant.DefaultLanguage = strings.ToLower(strings.TrimSpace(cfg.Assistant.DefaultLanguage))
	if err := cfg.Assistant.validate(cfg.AI); err != nil {
		return nil, err
	}
	if cfg.Session.IdleTTL < 0 {
		return nil, fmt.Errorf("invalid SESSION_IDLE_TTL value %q", cfg.Session.IdleTTL)
	}
	if err := cfg.Visitor.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Addr 由 Port 推导，不直接读取环境变量。
	Addr string
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(raw string) (string, error) {
	port := strings.TrimSpace(raw)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// AssistantConfig 描述远端助手（Gradio Space）以及会话控制器的配置。
type AssistantConfig struct {
	Provider        string        `env:"ASSISTANT_PROVIDER" envDefault:"gradio"`
	BaseURL         string        `env:"ASSISTANT_BASE_URL" envDefault:"https://maha001-sai-finance-assistant.hf.space/"`
	Route           string        `env:"ASSISTANT_ROUTE" envDefault:"/chat"`
	ConnectTimeout  time.Duration `env:"ASSISTANT_CONNECT_TIMEOUT" envDefault:"0s"`
	ReplyTimeout    time.Duration `env:"ASSISTANT_REPLY_TIMEOUT" envDefault:"0s"`
	DefaultLanguage string        `env:"ASSISTANT_DEFAULT_LANGUAGE" envDefault:"en"`
}

func (c AssistantConfig) validate(ai AIConfig) error {
	switch c.Provider {
	case ProviderGradio:
		u, err := url.Parse(strings.TrimSpace(c.BaseURL))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid ASSISTANT_BASE_URL value %q", c.BaseURL)
		}
		if strings.TrimSpace(c.Route) == "" {
			return fmt.Errorf("ASSISTANT_ROUTE must not be empty")
		}
	case ProviderArk:
		if !ai.Enabled() {
			return fmt.Errorf("ASSISTANT_PROVIDER=ark 需要 ARK_MODEL 以及 ARK_API_KEY 或 AK/SK 组合")
		}
	default:
		return fmt.Errorf("invalid ASSISTANT_PROVIDER value %q", c.Provider)
	}

	switch c.DefaultLanguage {
	case "en", "ta":
	default:
		return fmt.Errorf("invalid ASSISTANT_DEFAULT_LANGUAGE value %q", c.DefaultLanguage)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("invalid ASSISTANT_CONNECT_TIMEOUT value %q", c.ConnectTimeout)
	}
	if c.ReplyTimeout < 0 {
		return fmt.Errorf("invalid ASSISTANT_REPLY_TIMEOUT value %q", c.ReplyTimeout)
	}
	return nil
}

// AIConfig 描述 Ark 大模型相关配置，仅在 ASSISTANT_PROVIDER=ark 时使用。
type AIConfig struct {
	APIKey      string   `env:"ARK_API_KEY"`
	AccessKey   string   `env:"ARK_ACCESS_KEY"`
	SecretKey   string   `env:"ARK_SECRET_KEY"`
	Model       string   `env:"ARK_MODEL"`
	BaseURL     string   `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string   `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature *float64 `env:"ARK_TEMPERATURE"`
	TopP        *float64 `env:"ARK_TOP_P"`
	MaxTokens   *int     `env:"ARK_MAX_TOKENS"`
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// SessionConfig 描述会话注册表的配置。
type SessionConfig struct {
	IdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
}

// VisitorConfig 描述访客计数器配置，URL 为空时禁用。
type VisitorConfig struct {
	URL     string        `env:"VISITOR_COUNTER_URL"`
	Timeout time.Duration `env:"VISITOR_COUNTER_TIMEOUT" envDefault:"5s"`
}

// Enabled 表示是否配置了计数器地址。
func (c VisitorConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

func (c VisitorConfig) validate() error {
	if !c.Enabled() {
		return nil
	}
	u, err := url.Parse(strings.TrimSpace(c.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid VISITOR_COUNTER_URL value %q", c.URL)
	}
	return nil
}

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
}

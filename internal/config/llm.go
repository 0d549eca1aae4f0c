package config

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// Chat model providers.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderArk    = "ark"
)

// LLMConfig 描述大模型相关配置。
type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string

	// Ark 专用
	AccessKey string
	SecretKey string
	Region    string

	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	Timeout       time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	IntroShortcut bool
	ContextFile   string
	Persona       string
}

// Enabled 表示是否提供了所选 provider 必需的凭证。
func (c LLMConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	switch c.Provider {
	case ProviderOllama:
		return c.BaseURL != ""
	case ProviderArk:
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	default:
		return c.APIKey != ""
	}
}

// NewChatModel 使用配置创建一个模型实例。
func (c LLMConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s 凭证或模型配置缺失，请检查 LLM_* 环境变量", c.Provider)
	}

	temperature := toFloat32(c.Temperature)
	topP := toFloat32(c.TopP)

	switch c.Provider {
	case ProviderGroq, ProviderOpenAI:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      c.APIKey,
			BaseURL:     c.BaseURL,
			Model:       c.Model,
			Timeout:     c.Timeout,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
		})

	case ProviderOllama:
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: c.BaseURL,
			Model:   c.Model,
			Timeout: c.Timeout,
		})

	case ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     c.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: &http.Client{Timeout: c.Timeout},
		})
		if err != nil {
			return nil, fmt.Errorf("create genai client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
		})

	case ProviderArk:
		timeout := c.Timeout
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			Timeout:     &timeout,
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", c.Provider)
	}
}

func loadLLMConfig() (LLMConfig, error) {
	temperature, err := parseOptionalFloatEnv("LLM_TEMPERATURE")
	if err != nil {
		return LLMConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("LLM_TOP_P")
	if err != nil {
		return LLMConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("LLM_MAX_TOKENS")
	if err != nil {
		return LLMConfig{}, err
	}

	timeout, err := parseDurationEnv("LLM_TIMEOUT", 90*time.Second)
	if err != nil {
		return LLMConfig{}, err
	}

	backoff, err := parseDurationEnv("LLM_RETRY_BACKOFF", 500*time.Millisecond)
	if err != nil {
		return LLMConfig{}, err
	}

	attempts := 3
	if override, err := parseOptionalIntEnv("LLM_MAX_ATTEMPTS"); err != nil {
		return LLMConfig{}, err
	} else if override != nil {
		if *override < 1 {
			attempts = 1
		} else {
			attempts = *override
		}
	}

	intro, err := parseBoolEnv("LLM_INTRO_SHORTCUT", true)
	if err != nil {
		return LLMConfig{}, err
	}

	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderGroq))
	cfg := LLMConfig{
		Provider:      provider,
		Model:         strings.TrimSpace(os.Getenv("LLM_MODEL")),
		BaseURL:       strings.TrimSpace(os.Getenv("LLM_BASE_URL")),
		Temperature:   temperature,
		TopP:          topP,
		MaxTokens:     maxTokens,
		Timeout:       timeout,
		MaxAttempts:   attempts,
		RetryBackoff:  backoff,
		IntroShortcut: intro,
		ContextFile:   strings.TrimSpace(os.Getenv("LLM_CONTEXT_FILE")),
		Persona:       getEnvOrDefault("ASSISTANT_PERSONA", "niva"),
	}

	switch provider {
	case ProviderGroq:
		cfg.APIKey = firstEnv("LLM_API_KEY", "GROQ_API_KEY")
		cfg.Model = orDefault(cfg.Model, "openai/gpt-oss-20b")
		cfg.BaseURL = orDefault(cfg.BaseURL, "https://api.groq.com/openai/v1")
	case ProviderOpenAI:
		cfg.APIKey = firstEnv("LLM_API_KEY", "OPENAI_API_KEY")
		cfg.Model = orDefault(cfg.Model, "gpt-4o-mini")
	case ProviderGemini:
		cfg.APIKey = firstEnv("LLM_API_KEY", "GEMINI_API_KEY")
		cfg.Model = orDefault(cfg.Model, "gemini-1.5-pro-002")
	case ProviderOllama:
		cfg.BaseURL = orDefault(cfg.BaseURL, getEnvOrDefault("OLLAMA_SERVER", "http://localhost:11434"))
		cfg.Model = orDefault(cfg.Model, "llama3.1")
	case ProviderArk:
		cfg.APIKey = firstEnv("LLM_API_KEY", "ARK_API_KEY")
		cfg.AccessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		cfg.SecretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
		cfg.Model = orDefault(cfg.Model, strings.TrimSpace(os.Getenv("Model")))
		cfg.BaseURL = orDefault(cfg.BaseURL, "https://ark.cn-beijing.volces.com/api/v3")
		cfg.Region = getEnvOrDefault("ARK_REGION", "cn-beijing")
	default:
		return LLMConfig{}, fmt.Errorf("unsupported LLM_PROVIDER %q", provider)
	}

	return cfg, nil
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func toFloat32(v *float64) *float32 {
	if v == nil {
		return nil
	}
	val := float32(*v)
	return &val
}

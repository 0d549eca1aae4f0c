package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Speech    SpeechConfig
	History   HistoryConfig
	Notify    NotifyConfig
	Knowledge KnowledgeConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	llm, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	history, err := loadHistoryConfig()
	if err != nil {
		return nil, err
	}

	notify, err := loadNotifyConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		LLM:       llm,
		Speech:    speech,
		History:   history,
		Notify:    notify,
		Knowledge: loadKnowledgeConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	origins := splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":3000" 或 "127.0.0.1:3000"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// Speech synthesis backends.
const (
	TTSProviderLocal      = "local"
	TTSProviderElevenLabs = "elevenlabs"
	TTSProviderVolcengine = "volcengine"
)

// Policies applied when one message of a reply fails to synthesize.
const (
	FailurePolicyStrict  = "strict"
	FailurePolicyDegrade = "degrade"
)

// SpeechConfig 描述语音合成与口型同步配置。
type SpeechConfig struct {
	Provider     string
	ServerURL    string
	VoiceID      string
	APIKey       string
	ModelID      string
	OutputFormat string
	Language     string

	// 火山引擎
	AppID       string
	AccessToken string

	Timeout       time.Duration
	FailurePolicy string

	LipSyncEnabled bool
	RhubarbPath    string
	AudioDir       string
}

// LoadSpeech 只解析语音相关配置，供不需要模型和历史存储的工具使用。
func LoadSpeech() (SpeechConfig, error) {
	return loadSpeechConfig()
}

func loadSpeechConfig() (SpeechConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("TTS_PROVIDER", TTSProviderLocal))

	timeout, err := parseDurationEnv("TTS_TIMEOUT", 60*time.Second)
	if err != nil {
		return SpeechConfig{}, err
	}

	lipsync, err := parseBoolEnv("LIPSYNC_ENABLED", false)
	if err != nil {
		return SpeechConfig{}, err
	}

	policy := strings.ToLower(getEnvOrDefault("TTS_FAILURE_POLICY", FailurePolicyStrict))
	if policy != FailurePolicyStrict && policy != FailurePolicyDegrade {
		return SpeechConfig{}, fmt.Errorf("invalid TTS_FAILURE_POLICY value %q", policy)
	}

	cfg := SpeechConfig{
		Provider:       provider,
		ServerURL:      strings.TrimRight(getEnvOrDefault("TTS_SERVER_URL", "http://loadbalancer:4000"), "/"),
		OutputFormat:   getEnvOrDefault("ELEVENLABS_OUTPUT_FORMAT", "mp3_44100_128"),
		ModelID:        getEnvOrDefault("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),
		Language:       strings.TrimSpace(os.Getenv("TTS_LANGUAGE")),
		AppID:          strings.TrimSpace(os.Getenv("SPEECH_APP_ID")),
		AccessToken:    strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN")),
		Timeout:        timeout,
		FailurePolicy:  policy,
		LipSyncEnabled: lipsync,
		RhubarbPath:    getEnvOrDefault("RHUBARB_PATH", "./bin/rhubarb"),
		AudioDir:       strings.TrimSpace(os.Getenv("AUDIO_DIR")),
	}

	switch provider {
	case TTSProviderLocal:
		cfg.VoiceID = getEnvOrDefault("TTS_VOICE_ID", "p364")
	case TTSProviderElevenLabs:
		cfg.APIKey = strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY"))
		cfg.VoiceID = getEnvOrDefault("TTS_VOICE_ID", "9BWtsMINqrJLrRacOk9x")
		if cfg.APIKey == "" {
			return SpeechConfig{}, fmt.Errorf("ELEVENLABS_API_KEY is required when TTS_PROVIDER=elevenlabs")
		}
	case TTSProviderVolcengine:
		cfg.VoiceID = getEnvOrDefault("TTS_VOICE_ID", "en_female_amy_jupiter_bigtts")
		if cfg.AppID == "" || cfg.AccessToken == "" {
			return SpeechConfig{}, fmt.Errorf("SPEECH_APP_ID and SPEECH_ACCESS_TOKEN are required when TTS_PROVIDER=volcengine")
		}
	default:
		return SpeechConfig{}, fmt.Errorf("unsupported TTS_PROVIDER %q", provider)
	}

	// rhubarb 只能分析 wav，本地 TTS 服务之外的提供方都返回压缩音频。
	if cfg.LipSyncEnabled && provider != TTSProviderLocal {
		return SpeechConfig{}, fmt.Errorf("LIPSYNC_ENABLED requires TTS_PROVIDER=local (wav output)")
	}

	return cfg, nil
}

// History storage backends.
const (
	HistoryMongo  = "mongo"
	HistorySQLite = "sqlite"
	HistoryMemory = "memory"
)

// HistoryConfig 描述对话历史存储。
type HistoryConfig struct {
	Backend       string
	MongoURI      string
	MongoDatabase string
	SQLitePath    string
	ContextLimit  int
	DefaultID     string
}

func loadHistoryConfig() (HistoryConfig, error) {
	limit := 20
	if override, err := parseOptionalIntEnv("HISTORY_CONTEXT_LIMIT"); err != nil {
		return HistoryConfig{}, err
	} else if override != nil {
		if *override < 0 {
			return HistoryConfig{}, fmt.Errorf("HISTORY_CONTEXT_LIMIT must not be negative")
		}
		limit = *override
	}

	cfg := HistoryConfig{
		Backend:       strings.ToLower(getEnvOrDefault("HISTORY_BACKEND", HistoryMongo)),
		MongoURI:      strings.TrimSpace(os.Getenv("MONGODB_URI")),
		MongoDatabase: getEnvOrDefault("MONGODB_DATABASE", "chats"),
		SQLitePath:    getEnvOrDefault("SQLITE_PATH", "data/history.db"),
		ContextLimit:  limit,
		DefaultID:     getEnvOrDefault("HISTORY_DEFAULT_ID", "default"),
	}

	switch cfg.Backend {
	case HistoryMongo:
		if cfg.MongoURI == "" {
			return HistoryConfig{}, fmt.Errorf("MONGODB_URI is required when HISTORY_BACKEND=mongo")
		}
	case HistorySQLite, HistoryMemory:
	default:
		return HistoryConfig{}, fmt.Errorf("unsupported HISTORY_BACKEND %q", cfg.Backend)
	}

	return cfg, nil
}

// NotifyConfig 描述日志通知 webhook。
type NotifyConfig struct {
	WebhookURL string
	QueueSize  int
	Username   string
}

// Enabled 表示是否配置了 webhook。
func (c NotifyConfig) Enabled() bool {
	return c.WebhookURL != ""
}

func loadNotifyConfig() (NotifyConfig, error) {
	size := 64
	if override, err := parseOptionalIntEnv("NOTIFY_QUEUE_SIZE"); err != nil {
		return NotifyConfig{}, err
	} else if override != nil && *override > 0 {
		size = *override
	}

	return NotifyConfig{
		WebhookURL: strings.TrimSpace(os.Getenv("NOTIFY_WEBHOOK_URL")),
		QueueSize:  size,
		Username:   strings.TrimSpace(os.Getenv("NOTIFY_USERNAME")),
	}, nil
}

// KnowledgeConfig 描述 LLM 不可用时的知识兜底。
type KnowledgeConfig struct {
	Fallback      string
	WikipediaLang string
}

// WikipediaEnabled 表示是否启用维基百科兜底。
func (c KnowledgeConfig) WikipediaEnabled() bool {
	return c.Fallback == "wikipedia"
}

func loadKnowledgeConfig() KnowledgeConfig {
	return KnowledgeConfig{
		Fallback:      strings.ToLower(strings.TrimSpace(os.Getenv("KNOWLEDGE_FALLBACK"))),
		WikipediaLang: getEnvOrDefault("WIKIPEDIA_LANG", "en"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// firstEnv 返回第一个非空的环境变量值。
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

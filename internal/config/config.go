package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultPort               = 8000
	defaultVersion            = "1.0.0"
	defaultLLMTimeout         = 30 * time.Second
	defaultLLMWorkers         = 16
	maxLLMWorkers             = 256
	defaultRateLimitPerMinute = 60
	defaultRateLimitBurst     = 10
	defaultJobsTTL            = time.Hour
	defaultJobsMaxEntries     = 1000
)

// Config is built once at process start and handed to every component.
type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
	Redis     RedisConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port         int
	Version      string
	APIKey       string
	AllowOrigins []string
}

type LLMConfig struct {
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string

	OpenAIModel    string
	AnthropicModel string
	GeminiModel    string

	OpenAIBaseURL    string
	AnthropicBaseURL string

	OpenAIOAuth OAuthConfig

	Timeout      time.Duration
	Workers      int
	QueueTimeout time.Duration

	// StubResponse switches every provider to a fixed reply; local demos only.
	StubResponse string
}

type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Enabled reports whether client-credentials auth is fully configured.
func (o OAuthConfig) Enabled() bool {
	return o.TokenURL != "" && o.ClientID != "" && o.ClientSecret != ""
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

type JobsConfig struct {
	Backend    string
	TTL        time.Duration
	MaxEntries int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LoggingConfig struct {
	Level  string
	Format string
	Output string
	File   string
}

// Load reads configuration from the environment, overlaid on an optional
// YAML file named by BRIDGE_CONFIG_FILE. Environment values win.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("BRIDGE_CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("BRIDGE_VERSION", defaultVersion)
	v.SetDefault("OPENAI_MODEL", "gpt-4")
	v.SetDefault("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1")
	v.SetDefault("LLM_TIMEOUT_MS", int(defaultLLMTimeout/time.Millisecond))
	v.SetDefault("LLM_WORKERS", defaultLLMWorkers)
	v.SetDefault("LLM_QUEUE_TIMEOUT_MS", 0)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", defaultRateLimitPerMinute)
	v.SetDefault("RATE_LIMIT_BURST", defaultRateLimitBurst)
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.SetDefault("JOBS_BACKEND", "memory")
	v.SetDefault("JOBS_TTL", defaultJobsTTL.String())
	v.SetDefault("JOBS_MAX_ENTRIES", defaultJobsMaxEntries)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_OUTPUT", "stdout")
}

func fromViper(v *viper.Viper) *Config {
	geminiKey := trimmed(v, "GEMINI_API_KEY")
	if geminiKey == "" {
		geminiKey = trimmed(v, "GOOGLE_API_KEY")
	}

	timeout := millis(v, "LLM_TIMEOUT_MS", defaultLLMTimeout)
	queueTimeout := millis(v, "LLM_QUEUE_TIMEOUT_MS", 0)
	if queueTimeout <= 0 {
		queueTimeout = timeout
	}

	workers := v.GetInt("LLM_WORKERS")
	if workers <= 0 {
		workers = defaultLLMWorkers
	}
	if workers > maxLLMWorkers {
		workers = maxLLMWorkers
	}

	port := v.GetInt("PORT")
	if port <= 0 {
		port = defaultPort
	}

	rpm := v.GetInt("RATE_LIMIT_PER_MINUTE")
	if rpm < 0 {
		rpm = defaultRateLimitPerMinute
	}
	burst := v.GetInt("RATE_LIMIT_BURST")
	if burst <= 0 {
		burst = defaultRateLimitBurst
	}

	ttl := v.GetDuration("JOBS_TTL")
	if ttl <= 0 {
		ttl = defaultJobsTTL
	}
	maxEntries := v.GetInt("JOBS_MAX_ENTRIES")
	if maxEntries <= 0 {
		maxEntries = defaultJobsMaxEntries
	}

	return &Config{
		Server: ServerConfig{
			Port:         port,
			Version:      trimmed(v, "BRIDGE_VERSION"),
			APIKey:       trimmed(v, "BRIDGE_API_KEY"),
			AllowOrigins: splitList(v.GetString("CORS_ALLOW_ORIGINS")),
		},
		LLM: LLMConfig{
			OpenAIKey:        trimmed(v, "OPENAI_API_KEY"),
			AnthropicKey:     trimmed(v, "ANTHROPIC_API_KEY"),
			GeminiKey:        geminiKey,
			OpenAIModel:      trimmed(v, "OPENAI_MODEL"),
			AnthropicModel:   trimmed(v, "ANTHROPIC_MODEL"),
			GeminiModel:      trimmed(v, "GEMINI_MODEL"),
			OpenAIBaseURL:    strings.TrimRight(trimmed(v, "OPENAI_BASE_URL"), "/"),
			AnthropicBaseURL: strings.TrimRight(trimmed(v, "ANTHROPIC_BASE_URL"), "/"),
			OpenAIOAuth: OAuthConfig{
				TokenURL:     trimmed(v, "OPENAI_OAUTH_TOKEN_URL"),
				ClientID:     trimmed(v, "OPENAI_OAUTH_CLIENT_ID"),
				ClientSecret: trimmed(v, "OPENAI_OAUTH_CLIENT_SECRET"),
				Scopes:       strings.Fields(strings.ReplaceAll(v.GetString("OPENAI_OAUTH_SCOPES"), ",", " ")),
			},
			Timeout:      timeout,
			Workers:      workers,
			QueueTimeout: queueTimeout,
			StubResponse: v.GetString("LLM_STUB_RESPONSE"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: rpm,
			Burst:             burst,
		},
		Jobs: JobsConfig{
			Backend:    strings.ToLower(trimmed(v, "JOBS_BACKEND")),
			TTL:        ttl,
			MaxEntries: maxEntries,
		},
		Redis: RedisConfig{
			Addr:     trimmed(v, "REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(trimmed(v, "LOG_LEVEL")),
			Format: strings.ToLower(trimmed(v, "LOG_FORMAT")),
			Output: strings.ToLower(trimmed(v, "LOG_OUTPUT")),
			File:   trimmed(v, "LOG_FILE"),
		},
	}
}

func trimmed(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func millis(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	parsed := v.GetInt(key)
	if parsed <= 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmedPart := strings.TrimSpace(part); trimmedPart != "" {
			values = append(values, trimmedPart)
		}
	}
	return values
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	SQLite      SQLiteConfig
	Redis       RedisConfig
	Cache       CacheConfig
	LLM         LLMConfig
	Zendesk     ZendeskConfig
	ChannelTalk ChannelTalkConfig
	Pipeline    PipelineConfig
	RateLimit   RateLimitConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins string
	HSTS           bool
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig selects the fetch cache backend: "memory", "redis" or "none".
type CacheConfig struct {
	Backend    string
	TTLSeconds int
}

type LLMConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Temperature   float32
	MaxTokens     int
	TimeoutSec    int
	MaxInputChars int
}

func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

type ZendeskConfig struct {
	Subdomain  string
	Email      string
	APIToken   string
	TimeoutSec int
}

func (c ZendeskConfig) Enabled() bool {
	return c.Subdomain != "" && c.Email != "" && c.APIToken != ""
}

type ChannelTalkConfig struct {
	BaseURL      string
	AccessKey    string
	AccessSecret string
	TimeoutSec   int
}

func (c ChannelTalkConfig) Enabled() bool {
	return c.AccessKey != "" && c.AccessSecret != ""
}

type PipelineConfig struct {
	RulesFile            string
	FieldTitle           string
	FieldTitleCandidates []string
	PhraseLimit          int
	KeywordLimit         int
	LookbackDays         int
}

type RateLimitConfig struct {
	AnalyzePerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Load reads .env files, config.yaml and TICKET_* environment variables, in
// increasing order of precedence.
func Load() (*Config, error) {
	for _, f := range []string{".env", ".env.local"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ticket")

	v.SetEnvPrefix("TICKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("invalid cache backend %q", c.Cache.Backend)
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}
	if c.Pipeline.FieldTitle == "" {
		return fmt.Errorf("pipeline.fieldTitle is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 120)
	v.SetDefault("server.bodyLimit", 4194304)
	v.SetDefault("server.allowedOrigins", "*")
	v.SetDefault("server.hsts", false)

	v.SetDefault("sqlite.path", "./data/ticket.db")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttlSeconds", 120)

	v.SetDefault("llm.apiKey", os.Getenv("OPENAI_API_KEY"))
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.maxTokens", 1500)
	v.SetDefault("llm.timeoutSec", 60)
	v.SetDefault("llm.maxInputChars", 16000)

	v.SetDefault("zendesk.subdomain", os.Getenv("ZENDESK_SUBDOMAIN"))
	v.SetDefault("zendesk.email", os.Getenv("ZENDESK_EMAIL"))
	v.SetDefault("zendesk.apiToken", os.Getenv("ZENDESK_API_TOKEN"))
	v.SetDefault("zendesk.timeoutSec", 20)

	v.SetDefault("channelTalk.baseURL", "https://api.channel.io")
	v.SetDefault("channelTalk.accessKey", os.Getenv("CHANNEL_ACCESS_KEY"))
	v.SetDefault("channelTalk.accessSecret", os.Getenv("CHANNEL_ACCESS_SECRET"))
	v.SetDefault("channelTalk.timeoutSec", 20)

	v.SetDefault("pipeline.rulesFile", "")
	v.SetDefault("pipeline.fieldTitle", "문의유형(고객)")
	v.SetDefault("pipeline.fieldTitleCandidates", []string{"문의유형", "문의 유형", "문의유형(고객)"})
	v.SetDefault("pipeline.phraseLimit", 15)
	v.SetDefault("pipeline.keywordLimit", 50)
	v.SetDefault("pipeline.lookbackDays", 30)

	v.SetDefault("rateLimit.analyzePerMinute", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}

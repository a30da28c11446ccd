package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	DB       DBConfig
	NATS     NATSConfig
	WhatsApp WhatsAppConfig
	Speech   SpeechConfig
	LLM      LLMConfig
	Limits   LimitsConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32

	// MigrationsPath, when non-empty, makes the process apply pending
	// migrations on startup.
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL string
}

// WhatsAppConfig holds the Business Cloud API credentials for the
// messaging channel.
type WhatsAppConfig struct {
	APIURL        string
	PhoneNumberID string
	AccessToken   string
	VerifyToken   string
}

type SpeechConfig struct {
	STTURL string
	TTSURL string
	APIKey string
}

type LLMConfig struct {
	APIURL     string
	APIKey     string
	Model      string
	EmbedModel string
}

// LimitsConfig bounds per-user message admission, conversation state
// retention, and downstream call budgets.
type LimitsConfig struct {
	RateMax       int
	RateWindowSec int

	// WebhookRateMax bounds webhook requests per source IP, independent
	// of the per-user message quota.
	WebhookRateMax       int
	WebhookRateWindowSec int
	ContextTTLSec int
	HistoryMax    int
	CallTimeout   time.Duration
	TurnTimeout   time.Duration
	RetrievalTopK int
	MinRelevance  float64
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               k.String("server.host"),
			Port:               k.Int("server.port"),
			CORSAllowedOrigins: splitCSV(k.String("server.cors.origins")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		WhatsApp: WhatsAppConfig{
			APIURL:        k.String("whatsapp.api.url"),
			PhoneNumberID: k.String("whatsapp.phone.number.id"),
			AccessToken:   k.String("whatsapp.access.token"),
			VerifyToken:   k.String("whatsapp.verify.token"),
		},
		Speech: SpeechConfig{
			STTURL: k.String("speech.stt.url"),
			TTSURL: k.String("speech.tts.url"),
			APIKey: k.String("speech.api.key"),
		},
		LLM: LLMConfig{
			APIURL:     k.String("llm.api.url"),
			APIKey:     k.String("llm.api.key"),
			Model:      k.String("llm.model"),
			EmbedModel: k.String("llm.embed.model"),
		},
		Limits: LimitsConfig{
			RateMax:              k.Int("limits.rate.max"),
			RateWindowSec:        k.Int("limits.rate.window.sec"),
			WebhookRateMax:       k.Int("limits.webhook.rate.max"),
			WebhookRateWindowSec: k.Int("limits.webhook.rate.window.sec"),
			ContextTTLSec: k.Int("limits.context.ttl.sec"),
			HistoryMax:    k.Int("limits.history.max"),
			RetrievalTopK: k.Int("limits.retrieval.topk"),
			MinRelevance:  k.Float64("limits.min.relevance"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "sehatline"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "sehatline"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.WhatsApp.APIURL == "" {
		cfg.WhatsApp.APIURL = "https://graph.facebook.com/v18.0"
	}
	if cfg.Speech.STTURL == "" {
		cfg.Speech.STTURL = "https://speech.googleapis.com"
	}
	if cfg.Speech.TTSURL == "" {
		cfg.Speech.TTSURL = "https://texttospeech.googleapis.com"
	}
	if cfg.LLM.APIURL == "" {
		cfg.LLM.APIURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-1.5-flash"
	}
	if cfg.LLM.EmbedModel == "" {
		cfg.LLM.EmbedModel = "text-embedding-004"
	}
	if cfg.Limits.RateMax == 0 {
		cfg.Limits.RateMax = 10
	}
	if cfg.Limits.RateWindowSec == 0 {
		cfg.Limits.RateWindowSec = 60
	}
	if cfg.Limits.WebhookRateMax == 0 {
		cfg.Limits.WebhookRateMax = 300
	}
	if cfg.Limits.WebhookRateWindowSec == 0 {
		cfg.Limits.WebhookRateWindowSec = 60
	}
	if cfg.Limits.ContextTTLSec == 0 {
		cfg.Limits.ContextTTLSec = 1800
	}
	if cfg.Limits.HistoryMax == 0 {
		cfg.Limits.HistoryMax = 6
	}
	if cfg.Limits.RetrievalTopK == 0 {
		cfg.Limits.RetrievalTopK = 3
	}
	if cfg.Limits.MinRelevance == 0 {
		cfg.Limits.MinRelevance = 0.55
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	callTimeoutStr := k.String("limits.call.timeout")
	if callTimeoutStr == "" {
		callTimeoutStr = "10s"
	}
	cfg.Limits.CallTimeout, err = time.ParseDuration(callTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing call timeout: %w", err)
	}

	turnTimeoutStr := k.String("limits.turn.timeout")
	if turnTimeoutStr == "" {
		turnTimeoutStr = "25s"
	}
	cfg.Limits.TurnTimeout, err = time.ParseDuration(turnTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing turn timeout: %w", err)
	}

	return cfg, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Event transport identifiers accepted by events.transport.
const (
	EventTransportNATS  = "nats"
	EventTransportRedis = "redis"
	EventTransportNone  = "none"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	LogLevel    string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	EventTransport      string
	EventURL            string
	EventSubjectPrefix  string
	EventBufferSize     int
	EventPublishTimeout time.Duration

	AnalyticsCacheTTL     time.Duration
	MasteryThreshold      int
	SingleOpenQuizAttempt bool

	AIProvider string
	AIAPIKey   string
	AIBaseURL  string
	AIModel    string

	SeedEnabled bool
	SeedToken   string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// EventsEnabled reports whether a broker transport was configured.
func (c Config) EventsEnabled() bool {
	return c.EventTransport != EventTransportNone && strings.TrimSpace(c.EventURL) != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LEARNFLOW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "LearnFlow API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("events.transport", EventTransportNATS)
	v.SetDefault("events.subject_prefix", "learnflow")
	v.SetDefault("events.buffer", 256)
	v.SetDefault("events.publish_timeout", "1s")
	v.SetDefault("analytics.cache_ttl", "1m")
	v.SetDefault("progress.mastery_threshold", 90)
	v.SetDefault("quiz.single_open_attempt", false)
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("seed.enabled", false)

	publishTimeout, err := parseDuration(v.GetString("events.publish_timeout"), time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid events publish timeout: %w", err)
	}

	cacheTTL, err := parseDuration(v.GetString("analytics.cache_ttl"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid analytics cache ttl: %w", err)
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		LogLevel:              strings.ToLower(v.GetString("log.level")),
		DatabaseURL:           v.GetString("database.url"),
		RedisURL:              v.GetString("redis.url"),
		JWTSecret:             v.GetString("jwt.secret"),
		EventTransport:        strings.ToLower(strings.TrimSpace(v.GetString("events.transport"))),
		EventURL:              v.GetString("events.url"),
		EventSubjectPrefix:    v.GetString("events.subject_prefix"),
		EventBufferSize:       v.GetInt("events.buffer"),
		EventPublishTimeout:   publishTimeout,
		AnalyticsCacheTTL:     cacheTTL,
		MasteryThreshold:      v.GetInt("progress.mastery_threshold"),
		SingleOpenQuizAttempt: v.GetBool("quiz.single_open_attempt"),
		AIProvider:            strings.ToLower(v.GetString("ai.provider")),
		AIAPIKey:              v.GetString("ai.api_key"),
		AIBaseURL:             v.GetString("ai.base_url"),
		AIModel:               v.GetString("ai.model"),
		SeedEnabled:           v.GetBool("seed.enabled"),
		SeedToken:             v.GetString("seed.token"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.EventTransport {
	case EventTransportNATS, EventTransportRedis, EventTransportNone:
	case "":
		cfg.EventTransport = EventTransportNone
	default:
		return Config{}, fmt.Errorf("unsupported events transport %q", cfg.EventTransport)
	}

	if cfg.EventBufferSize <= 0 {
		cfg.EventBufferSize = 256
	}

	if cfg.MasteryThreshold < 0 || cfg.MasteryThreshold > 100 {
		return Config{}, fmt.Errorf("mastery threshold must be between 0 and 100")
	}

	if cfg.SeedEnabled && strings.TrimSpace(cfg.SeedToken) == "" {
		return Config{}, fmt.Errorf("seed token must be provided when seeding is enabled")
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}

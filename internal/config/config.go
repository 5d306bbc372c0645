package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr  string     `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	PublicURL string     `env:"PUBLIC_URL"`
	JWTSecret string     `env:"JWT_SECRET"`

	// Verdict cache. An empty CacheDSN keeps verdicts in SQLite at DBPath.
	DBPath   string        `env:"DB_PATH" envDefault:"data/tuttifrutti.db"`
	CacheDSN string        `env:"CACHE_DSN"`
	RedisURL string        `env:"REDIS_URL"`
	RedisTTL time.Duration `env:"REDIS_TTL" envDefault:"24h"`

	JudgeURL      string        `env:"JUDGE_URL"`
	JudgeAPIKey   string        `env:"JUDGE_API_KEY"`
	JudgeTimeout  time.Duration `env:"JUDGE_TIMEOUT" envDefault:"15s"`
	JudgeLanguage string        `env:"JUDGE_LANGUAGE" envDefault:"es"`

	CountdownSeconds   int           `env:"COUNTDOWN_SECONDS" envDefault:"3"`
	RoundDuration      time.Duration `env:"ROUND_DURATION" envDefault:"60s"`
	SettleBuffer       time.Duration `env:"SETTLE_BUFFER" envDefault:"2s"`
	CategoriesPerRound int           `env:"CATEGORIES_PER_ROUND" envDefault:"8"`
	DefaultRounds      int           `env:"DEFAULT_ROUNDS" envDefault:"5"`
	MaxRounds          int           `env:"MAX_ROUNDS" envDefault:"20"`

	RoomIdleTTL    time.Duration `env:"ROOM_IDLE_TTL" envDefault:"1h"`
	EmptyRoomGrace time.Duration `env:"EMPTY_ROOM_GRACE" envDefault:"5m"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`

	WSRateLimit float64 `env:"WS_RATE_LIMIT" envDefault:"20"`
	WSRateBurst int     `env:"WS_RATE_BURST" envDefault:"40"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.CategoriesPerRound < 1:
		return fmt.Errorf("CATEGORIES_PER_ROUND must be positive, got %d", c.CategoriesPerRound)
	case c.MaxRounds < 1:
		return fmt.Errorf("MAX_ROUNDS must be positive, got %d", c.MaxRounds)
	case c.DefaultRounds < 1 || c.DefaultRounds > c.MaxRounds:
		return fmt.Errorf("DEFAULT_ROUNDS must be between 1 and MAX_ROUNDS, got %d", c.DefaultRounds)
	case c.RoundDuration <= 0:
		return fmt.Errorf("ROUND_DURATION must be positive, got %s", c.RoundDuration)
	case c.CountdownSeconds < 0:
		return fmt.Errorf("COUNTDOWN_SECONDS must not be negative, got %d", c.CountdownSeconds)
	case c.SweepInterval <= 0:
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	case c.WSRateLimit <= 0 || c.WSRateBurst < 1:
		return fmt.Errorf("WS_RATE_LIMIT and WS_RATE_BURST must be positive")
	}
	return nil
}

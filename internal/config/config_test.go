package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTPAddr != ":8080" || cfg.LogLevel != slog.LevelInfo {
		t.Errorf("http = %q level = %v", cfg.HTTPAddr, cfg.LogLevel)
	}
	if cfg.RoundDuration != time.Minute || cfg.SettleBuffer != 2*time.Second || cfg.CountdownSeconds != 3 {
		t.Errorf("round timing = %s %s %d", cfg.RoundDuration, cfg.SettleBuffer, cfg.CountdownSeconds)
	}
	if cfg.CategoriesPerRound != 8 || cfg.DefaultRounds != 5 || cfg.MaxRounds != 20 {
		t.Errorf("round shape = %d %d %d", cfg.CategoriesPerRound, cfg.DefaultRounds, cfg.MaxRounds)
	}
	if cfg.CacheDSN != "" || cfg.RedisURL != "" || cfg.JudgeURL != "" {
		t.Errorf("optional backends enabled by default: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("ROUND_DURATION", "90s")
	t.Setenv("CACHE_DSN", "postgres://localhost/tutti")
	t.Setenv("WS_RATE_LIMIT", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("level = %v", cfg.LogLevel)
	}
	if cfg.RoundDuration != 90*time.Second {
		t.Errorf("round duration = %s", cfg.RoundDuration)
	}
	if cfg.CacheDSN != "postgres://localhost/tutti" || cfg.WSRateLimit != 2.5 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{name: "bad duration", key: "ROUND_DURATION", value: "soon", want: "parsing environment"},
		{name: "zero categories", key: "CATEGORIES_PER_ROUND", value: "0", want: "CATEGORIES_PER_ROUND"},
		{name: "default above max", key: "DEFAULT_ROUNDS", value: "21", want: "DEFAULT_ROUNDS"},
		{name: "negative countdown", key: "COUNTDOWN_SECONDS", value: "-1", want: "COUNTDOWN_SECONDS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

package config

import (
	"fmt"
	"strconv"
	"time"
)

// applyEnv накладывает переменные окружения SITEKEEPER_* на cfg
func applyEnv(getenv func(string) string, cfg *Config) error {
	texts := map[string]*string{
		"ADDRESS":        &cfg.Address,
		"DB":             &cfg.DatabasePath,
		"JWT_SECRET":     &cfg.JWTSecret,
		"LOG_LEVEL":      &cfg.LogLevel,
		"ADMIN_USERNAME": &cfg.AdminUsername,
		"ADMIN_PASSWORD": &cfg.AdminPassword,
	}
	for name, dst := range texts {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"TOKEN_TTL":        &cfg.TokenTTL,
		"PING_INTERVAL":    &cfg.PingInterval,
		"SHUTDOWN_TIMEOUT": &cfg.ShutdownTimeout,
	}
	for name, dst := range durations {
		v := getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"FEED_BUFFER":      &cfg.FeedBuffer,
		"LOGIN_RATE_LIMIT": &cfg.LoginRateLimit,
	}
	for name, dst := range ints {
		v := getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	return nil
}

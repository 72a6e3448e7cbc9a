package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration принимает в JSON как строку ("30s", "12h"), так и число наносекунд
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// jsonConfig DTO для чтения файла конфигурации; пустые значения не перекрывают текущие
type jsonConfig struct {
	Address         string   `json:"address"`
	DatabasePath    string   `json:"database_path"`
	JWTSecret       string   `json:"jwt_secret"`
	LogLevel        string   `json:"log_level"`
	AdminUsername   string   `json:"admin_username"`
	AdminPassword   string   `json:"admin_password"`
	TokenTTL        Duration `json:"token_ttl"`
	PingInterval    Duration `json:"ping_interval"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
	FeedBuffer      int      `json:"feed_buffer"`
	LoginRateLimit  *int     `json:"login_rate_limit"`
}

// parseJSON накладывает значения из JSON файла на cfg
func parseJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var c jsonConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&cfg.Address, c.Address)
	setString(&cfg.DatabasePath, c.DatabasePath)
	setString(&cfg.JWTSecret, c.JWTSecret)
	setString(&cfg.LogLevel, c.LogLevel)
	setString(&cfg.AdminUsername, c.AdminUsername)
	setString(&cfg.AdminPassword, c.AdminPassword)
	setDuration(&cfg.TokenTTL, c.TokenTTL)
	setDuration(&cfg.PingInterval, c.PingInterval)
	setDuration(&cfg.ShutdownTimeout, c.ShutdownTimeout)
	if c.FeedBuffer != 0 {
		cfg.FeedBuffer = c.FeedBuffer
	}
	// 0 здесь осмысленное значение (лимит выключен)
	if c.LoginRateLimit != nil {
		cfg.LoginRateLimit = *c.LoginRateLimit
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v Duration) {
	if v != 0 {
		*dst = time.Duration(v)
	}
}

// Package config собирает настройки сервера: значения по умолчанию,
// затем JSON файл (-c), затем флаги командной строки, затем переменные окружения SITEKEEPER_*.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/sitekeeper/internal/validation"
)

// EnvPrefix префикс переменных окружения сервера
const EnvPrefix = "SITEKEEPER_"

// Config holds runtime settings of the content server
type Config struct {
	Address         string        // адрес HTTP сервера
	DatabasePath    string        // путь к файлу SQLite
	JWTSecret       string        // HMAC секрет для подписи токенов; пустой = сгенерировать при старте
	LogLevel        string        // debug, info, warn, error
	AdminUsername   string        // оператор, создаваемый при старте, если его нет
	AdminPassword   string        // пароль этого оператора
	TokenTTL        time.Duration // время жизни access token
	PingInterval    time.Duration // период ping в websocket-ленте
	ShutdownTimeout time.Duration // время на graceful shutdown
	FeedBuffer      int           // очередь событий одного подписчика ленты
	LoginRateLimit  int           // попыток входа с одного IP в минуту, 0 = без ограничения
}

// Defaults returns development defaults
func Defaults() *Config {
	return &Config{
		Address:         ":8080",
		DatabasePath:    "sitekeeper.db",
		LogLevel:        "info",
		TokenTTL:        12 * time.Hour,
		PingInterval:    54 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		FeedBuffer:      64,
		LoginRateLimit:  10,
	}
}

// Load builds a Config from defaults, an optional JSON file, args and environment.
// getenv is usually os.Getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := Defaults()

	fs, fv := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	path := fv.configPath
	if path == "" {
		path = getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := parseJSON(path, cfg); err != nil {
			return nil, err
		}
	}

	applyFlags(fs, fv, cfg)

	if err := applyEnv(getenv, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	var errs []error

	if c.Address == "" {
		errs = append(errs, errors.New("address is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if c.PingInterval <= 0 {
		errs = append(errs, errors.New("ping interval must be positive"))
	}
	if c.FeedBuffer <= 0 {
		errs = append(errs, errors.New("feed buffer must be positive"))
	}
	if c.LoginRateLimit < 0 {
		errs = append(errs, errors.New("login rate limit must not be negative"))
	}

	switch {
	case c.AdminUsername == "" && c.AdminPassword != "":
		errs = append(errs, errors.New("admin password is set without admin username"))
	case c.AdminUsername != "":
		if err := validation.ValidateUsername(c.AdminUsername); err != nil {
			errs = append(errs, fmt.Errorf("admin username: %w", err))
		}
		if err := validation.ValidatePassword(c.AdminPassword); err != nil {
			errs = append(errs, fmt.Errorf("admin password: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

package config

import (
	"flag"
	"time"
)

// flagValues значения флагов; в Config попадают только явно заданные
type flagValues struct {
	configPath      string
	address         string
	databasePath    string
	jwtSecret       string
	logLevel        string
	adminUsername   string
	tokenTTL        time.Duration
	pingInterval    time.Duration
	shutdownTimeout time.Duration
	feedBuffer      int
	loginRateLimit  int
}

// newFlagSet описывает флаги сервера
//
//	-c string            путь к JSON файлу конфигурации
//	-a string            адрес HTTP сервера (":8080")
//	-d string            путь к файлу SQLite
//	-s string            секрет подписи JWT
//	-t duration          время жизни access token
//	-l string            уровень логирования
//	-admin string        оператор, создаваемый при старте
//	-ping duration       период ping в ленте изменений
//	-feed-buffer int     очередь событий подписчика
//	-login-rate int      попыток входа в минуту с одного IP
//	-shutdown duration   таймаут graceful shutdown
//
// Пароль оператора задается только в файле или окружении.
func newFlagSet() (*flag.FlagSet, *flagValues) {
	fv := &flagValues{}
	fs := flag.NewFlagSet("sitekeeper-server", flag.ContinueOnError)

	fs.StringVar(&fv.configPath, "c", "", "path to JSON config file")
	fs.StringVar(&fv.address, "a", "", "address and port to run server")
	fs.StringVar(&fv.databasePath, "d", "", "path to SQLite database")
	fs.StringVar(&fv.jwtSecret, "s", "", "JWT signing secret")
	fs.DurationVar(&fv.tokenTTL, "t", 0, "access token lifetime")
	fs.StringVar(&fv.logLevel, "l", "", "log level (debug, info, warn, error)")
	fs.StringVar(&fv.adminUsername, "admin", "", "operator to create at startup")
	fs.DurationVar(&fv.pingInterval, "ping", 0, "feed ping interval")
	fs.IntVar(&fv.feedBuffer, "feed-buffer", 0, "per-subscriber feed queue size")
	fs.IntVar(&fv.loginRateLimit, "login-rate", 0, "login attempts per minute per IP (0 disables)")
	fs.DurationVar(&fv.shutdownTimeout, "shutdown", 0, "graceful shutdown timeout")

	return fs, fv
}

// applyFlags переносит в cfg флаги, заданные в командной строке
func applyFlags(fs *flag.FlagSet, fv *flagValues, cfg *Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			cfg.Address = fv.address
		case "d":
			cfg.DatabasePath = fv.databasePath
		case "s":
			cfg.JWTSecret = fv.jwtSecret
		case "t":
			cfg.TokenTTL = fv.tokenTTL
		case "l":
			cfg.LogLevel = fv.logLevel
		case "admin":
			cfg.AdminUsername = fv.adminUsername
		case "ping":
			cfg.PingInterval = fv.pingInterval
		case "feed-buffer":
			cfg.FeedBuffer = fv.feedBuffer
		case "login-rate":
			cfg.LoginRateLimit = fv.loginRateLimit
		case "shutdown":
			cfg.ShutdownTimeout = fv.shutdownTimeout
		}
	})
}

package main

import (
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/gate/core/queue"
)

// Config is the process configuration, read from the environment.
type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"gate"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"` // empty keeps the APP_ENV preset level

	Dispatch       queue.Config `envPrefix:"GATE_"`
	LoggingEnabled bool         `env:"GATE_LOGGING_ENABLED" envDefault:"false"`
	LimitersFile   string       `env:"GATE_LIMITERS_FILE"`

	EventMode      string        `env:"GATE_EVENT_MODE" envDefault:"sync"`
	EventWorkers   int           `env:"GATE_EVENT_WORKERS" envDefault:"4"`
	EventQueueSize int           `env:"GATE_EVENT_QUEUE_SIZE" envDefault:"256"`
	EventShutdown  time.Duration `env:"GATE_EVENT_SHUTDOWN_TIMEOUT" envDefault:"5s"`

	HealthInterval time.Duration `env:"GATE_HEALTH_INTERVAL" envDefault:"1m"`

	// Optional backends; empty disables them
	RedisURL    string `env:"REDIS_URL"`
	PostgresURL string `env:"PG_CONN_URL"`
}

func (c Config) asyncEvents() bool {
	return strings.EqualFold(c.EventMode, "async")
}

// level reports the LOG_LEVEL override. Unset or unparsable values report false.
func (c Config) level() (slog.Level, bool) {
	var level slog.Level
	if c.LogLevel == "" {
		return level, false
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, false
	}
	return level, true
}

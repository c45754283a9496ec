package queue

import "time"

// Config holds pool sizing and shutdown settings.
// Designed for environment-based configuration; prefixes are applied by the caller.
type Config struct {
	Workers         int           `env:"WORKERS" envDefault:"4"`
	QueueSize       int           `env:"QUEUE_SIZE" envDefault:"256"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		QueueSize:       256,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Package config fills configuration structs from the process environment.
//
// Load parses env tags with caarlos0/env after reading an optional .env file
// through godotenv. The result is kept per struct type, so repeated calls for
// the same type return the first parsed value until Reset is called:
//
//	type Config struct {
//		Workers int           `env:"GATE_WORKERS" envDefault:"4"`
//		Grace   time.Duration `env:"GATE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
//		Redis   string        `env:"REDIS_URL"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// MustLoad panics instead of returning an error and fits package main.
//
// # Limiter tables
//
// Throttle limiters referenced by command handlers are declared in a YAML
// file. Values may reference environment variables as ${NAME}; unknown keys
// and unresolved variables are errors.
//
//	limiters:
//	  greeting:
//	    capacity: 10
//	    refill_rate: 10
//	    refill_interval: ${GREETING_INTERVAL}
//
//	table, err := config.LoadLimiters(cfg.LimitersFile)
//	limiters, err := ratelimiter.NewLimiters(store, table)
package config

package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once
	cache      sync.Map // reflect.Type -> any (a T value)
	loadMu     sync.Mutex
)

// Load populates cfg from the environment. The first call for a type parses
// the environment and caches the result; later calls copy the cached value.
// A .env file in the working directory is read once, before the first parse,
// without overriding variables that are already set.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilConfig
	}

	t := reflect.TypeFor[T]()
	if cached, ok := cache.Load(t); ok {
		*cfg = cached.(T)
		return nil
	}

	loadMu.Lock()
	defer loadMu.Unlock()

	// Another goroutine may have loaded it while we waited
	if cached, ok := cache.Load(t); ok {
		*cfg = cached.(T)
		return nil
	}

	dotenvOnce.Do(loadDotenv)

	var v T
	if err := env.Parse(&v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrParse, t, err)
	}

	cache.Store(t, v)
	*cfg = v
	return nil
}

// MustLoad is like Load but panics on failure. Intended for program startup.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// Reset drops every cached configuration. Tests use it after changing the environment.
func Reset() {
	loadMu.Lock()
	defer loadMu.Unlock()
	cache.Clear()
}

func loadDotenv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		// A malformed .env must not go unnoticed, but env parsing still decides
		fmt.Fprintf(os.Stderr, "config: read .env: %v\n", err)
	}
}

package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gate/core/config"
	"github.com/dmitrymomot/gate/pkg/ratelimiter"
)

type dispatchConfig struct {
	Workers         int           `env:"TEST_GATE_WORKERS" envDefault:"4"`
	ShutdownTimeout time.Duration `env:"TEST_GATE_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

type requiredConfig struct {
	URL string `env:"TEST_GATE_REQUIRED_URL,required"`
}

func TestLoad(t *testing.T) {
	t.Run("parses and caches per type", func(t *testing.T) {
		config.Reset()
		t.Setenv("TEST_GATE_WORKERS", "8")

		var first dispatchConfig
		require.NoError(t, config.Load(&first))
		assert.Equal(t, 8, first.Workers)
		assert.Equal(t, 5*time.Second, first.ShutdownTimeout)

		t.Setenv("TEST_GATE_WORKERS", "16")
		var second dispatchConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, first, second)

		config.Reset()
		var third dispatchConfig
		require.NoError(t, config.Load(&third))
		assert.Equal(t, 16, third.Workers)
	})

	t.Run("missing required variable", func(t *testing.T) {
		config.Reset()

		var cfg requiredConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParse)
		assert.Panics(t, func() { config.MustLoad(&cfg) })
	})

	t.Run("nil target", func(t *testing.T) {
		assert.ErrorIs(t, config.Load[dispatchConfig](nil), config.ErrNilConfig)
	})
}

func TestParseLimiters(t *testing.T) {
	t.Run("valid table", func(t *testing.T) {
		t.Setenv("TEST_GATE_MAIL_CAPACITY", "3")

		table, err := config.ParseLimiters(strings.NewReader(`
limiters:
  mail:
    capacity: ${TEST_GATE_MAIL_CAPACITY}
    refill_rate: 1
    refill_interval: 150ms
  sms:
    capacity: 1
    refill_rate: 1
    refill_interval: 1m
`))
		require.NoError(t, err)
		assert.Equal(t, map[string]ratelimiter.Config{
			"mail": {Capacity: 3, RefillRate: 1, RefillInterval: 150 * time.Millisecond},
			"sms":  {Capacity: 1, RefillRate: 1, RefillInterval: time.Minute},
		}, table)
	})

	t.Run("empty document", func(t *testing.T) {
		table, err := config.ParseLimiters(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, table)
	})

	t.Run("invalid bucket", func(t *testing.T) {
		_, err := config.ParseLimiters(strings.NewReader(`
limiters:
  mail:
    capacity: 0
    refill_rate: 1
    refill_interval: 1s
`))
		assert.ErrorIs(t, err, config.ErrInvalidLimiters)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
		assert.Contains(t, err.Error(), "mail")
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := config.ParseLimiters(strings.NewReader(`
limiters:
  mail:
    burst: 5
`))
		assert.ErrorIs(t, err, config.ErrInvalidLimiters)
	})

	t.Run("unresolved variable", func(t *testing.T) {
		_, err := config.ParseLimiters(strings.NewReader(`
limiters:
  mail:
    capacity: ${TEST_GATE_UNSET_VARIABLE}
    refill_rate: 1
    refill_interval: 1s
`))
		assert.ErrorIs(t, err, config.ErrInvalidLimiters)
	})
}

func TestLoadLimiters(t *testing.T) {
	t.Parallel()

	t.Run("empty path", func(t *testing.T) {
		t.Parallel()

		table, err := config.LoadLimiters("")
		require.NoError(t, err)
		assert.Empty(t, table)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := config.LoadLimiters(t.TempDir() + "/missing.yaml")
		assert.ErrorIs(t, err, config.ErrLimitersFile)
	})
}

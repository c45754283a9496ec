package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/gate/core/command"
	"github.com/dmitrymomot/gate/core/config"
	"github.com/dmitrymomot/gate/core/event"
	"github.com/dmitrymomot/gate/core/logger"
	"github.com/dmitrymomot/gate/core/queue"
	"github.com/dmitrymomot/gate/pkg/ratelimiter"
)

func TestGreetingHandler(t *testing.T) {
	t.Parallel()

	bus := event.NewBus()
	var seen []string
	require.NoError(t, bus.Subscribe(event.NewSubscriber("seen", func(ctx context.Context, s string) error {
		seen = append(seen, s)
		return nil
	})))

	h := newGreetingHandler(bus)
	assert.Equal(t, "Greeting", h.CommandName())

	n, err := h.Handle(context.Background(), Greeting("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []string{"EVENT_hello"}, seen)

	require.NoError(t, bus.Close(time.Second))
	_, err = h.Handle(context.Background(), Greeting("late"))
	assert.ErrorIs(t, err, event.ErrBusClosed)
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	opts, err := parseFlags([]string{"-g", "a", "--greet=b", "--serve", "c"}, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, opts.greetings)
	assert.True(t, opts.serve)

	_, err = parseFlags([]string{"--help"}, &out)
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, out.String(), "--greet")
}

func TestRun(t *testing.T) {
	t.Run("greets and exits", func(t *testing.T) {
		var out bytes.Buffer
		err := run(context.Background(), []string{"hello", "hi"}, &out, io.Discard)
		require.NoError(t, err)
		assert.Equal(t, "hello\t5\nhi\t2\n", out.String())
	})

	t.Run("throttles with a limiter table", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "limiters.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
limiters:
  greeting:
    capacity: 1
    refill_rate: 1
    refill_interval: 150ms
`), 0o600))

		var out bytes.Buffer
		start := time.Now()
		err := run(context.Background(), []string{"--limiters", path, "a", "b"}, &out, io.Discard)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
		assert.Equal(t, "a\t1\nb\t1\n", out.String())
	})

	t.Run("bad limiter table", func(t *testing.T) {
		var out bytes.Buffer
		err := run(context.Background(), []string{"--limiters", filepath.Join(t.TempDir(), "missing.yaml")}, &out, io.Discard)
		assert.Error(t, err)
	})

	t.Run("log level and format override the env preset", func(t *testing.T) {
		config.Reset()
		t.Cleanup(config.Reset)
		t.Setenv("APP_ENV", "development")
		t.Setenv("LOG_LEVEL", "info")

		var out, logs bytes.Buffer
		require.NoError(t, run(context.Background(), []string{"--json", "hi"}, &out, &logs))
		assert.Equal(t, "hi\t2\n", out.String())

		var msgs []string
		for line := range strings.SplitSeq(strings.TrimSpace(logs.String()), "\n") {
			var rec map[string]any
			require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
			assert.NotEqual(t, "DEBUG", rec["level"], line)
			assert.Equal(t, "development", rec["env"])
			msgs = append(msgs, fmt.Sprint(rec["msg"]))
		}
		assert.Contains(t, msgs, "gate started")
	})

	t.Run("warn level hides info records", func(t *testing.T) {
		config.Reset()
		t.Cleanup(config.Reset)
		t.Setenv("LOG_LEVEL", "warn")

		var out, logs bytes.Buffer
		require.NoError(t, run(context.Background(), []string{"hi"}, &out, &logs))
		assert.NotContains(t, logs.String(), "gate started")
		assert.NotContains(t, logs.String(), "level=DEBUG")
	})
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("preset level without override", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := newLogger(Config{AppName: "gate", AppEnv: "development"}, false, &buf)
		log.Debug("visible")
		assert.Contains(t, buf.String(), "level=DEBUG")
	})

	t.Run("production preset honours an explicit level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := newLogger(Config{AppName: "gate", AppEnv: "production", LogLevel: "error"}, false, &buf)
		log.Warn("hidden")
		assert.Empty(t, buf.String())

		log.Error("shown")
		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "production", rec["env"])
	})
}

func TestReleaser(t *testing.T) {
	t.Parallel()

	t.Run("releases in reverse order and keeps going after a failure", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		rel := newReleaser(logger.New(logger.WithOutput(&buf), logger.WithJSONFormatter()))

		var order []string
		step := func(name string, err error) func() error {
			return func() error {
				order = append(order, name)
				return err
			}
		}
		rel.add("store", step("store", nil))
		rel.add("bus", step("bus", errors.New("stuck")))
		rel.add("dispatcher", step("dispatcher", nil))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, rel.Run(ctx)())

		assert.Equal(t, []string{"dispatcher", "bus", "store"}, order)
		assert.Contains(t, buf.String(), "component release failed")
		assert.Contains(t, buf.String(), "stuck")
	})

	t.Run("in-flight command finishes publishing before the bus closes", func(t *testing.T) {
		t.Parallel()

		cfg := Config{
			EventMode:      "async",
			EventWorkers:   1,
			EventQueueSize: 8,
			EventShutdown:  time.Second,
			Dispatch:       queue.Config{Workers: 1, QueueSize: 1, ShutdownTimeout: time.Second},
		}
		log := logger.Discard()
		rel := newReleaser(log)

		bus, _, err := newBus(context.Background(), cfg, log, rel)
		require.NoError(t, err)

		seen := make(chan string, 1)
		require.NoError(t, bus.Subscribe(event.NewSubscriber("seen", func(ctx context.Context, s string) error {
			seen <- s
			return nil
		})))

		started := make(chan struct{})
		h := command.NewHandlerFunc(func(ctx context.Context, g Greeting) (int, error) {
			close(started)
			time.Sleep(50 * time.Millisecond)
			if err := bus.Publish(ctx, "EVENT_"+string(g)); err != nil {
				return 0, err
			}
			return len(g), nil
		})
		registry, err := command.NewRegistry(h)
		require.NoError(t, err)
		limiters, err := ratelimiter.NewLimiters(ratelimiter.NewMemoryStore(), nil)
		require.NoError(t, err)

		d, err := newDispatcher(cfg, log, registry, limiters, rel)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(rel.Run(ctx))

		future := command.Submit[int](context.Background(), d, Greeting("late"))
		<-started
		cancel()
		require.NoError(t, eg.Wait())

		n, err := future.AwaitWithTimeout(time.Second)
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		select {
		case s := <-seen:
			assert.Equal(t, "EVENT_late", s)
		default:
			t.Fatal("event was not delivered before the bus closed")
		}
		assert.ErrorIs(t, bus.Healthcheck(context.Background()), event.ErrBusClosed)
	})
}

package event_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gate/core/event"
	"github.com/dmitrymomot/gate/core/queue"
)

type UserCreated struct {
	Email string
}

type OrderPlaced struct {
	ID int
}

type Named interface {
	EventName() string
}

type Renamed struct{ To string }

func (r Renamed) EventName() string { return "renamed:" + r.To }

func TestBus_Publish(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("no subscribers is a no-op", func(t *testing.T) {
		t.Parallel()

		bus := event.NewBus()
		require.NoError(t, bus.Publish(ctx, UserCreated{Email: "a@b.c"}))

		stats := bus.Stats()
		assert.Zero(t, stats.Published)
		assert.Zero(t, stats.Delivered)
		assert.Zero(t, stats.Failed)
	})

	t.Run("delivers only to matching type", func(t *testing.T) {
		t.Parallel()

		bus := event.NewBus()
		var users, orders []any
		require.NoError(t, bus.Subscribe(
			event.NewSubscriber("users", func(ctx context.Context, evt UserCreated) error {
				users = append(users, evt)
				return nil
			}),
			event.NewSubscriber("orders", func(ctx context.Context, evt OrderPlaced) error {
				orders = append(orders, evt)
				return nil
			}),
		))

		require.NoError(t, bus.Publish(ctx, UserCreated{Email: "a@b.c"}))

		assert.Equal(t, []any{UserCreated{Email: "a@b.c"}}, users)
		assert.Empty(t, orders)
		assert.Equal(t, int64(1), bus.Stats().Delivered)
	})

	t.Run("interface subscribers see implementations", func(t *testing.T) {
		t.Parallel()

		bus := event.NewBus()
		var names []string
		var all atomic.Int32
		require.NoError(t, bus.Subscribe(
			event.NewSubscriber("named", func(ctx context.Context, evt Named) error {
				names = append(names, evt.EventName())
				return nil
			}),
			event.NewSubscriber("all", func(ctx context.Context, evt any) error {
				all.Add(1)
				return nil
			}),
		))

		require.NoError(t, bus.Publish(ctx, Renamed{To: "bob"}))
		require.NoError(t, bus.Publish(ctx, OrderPlaced{ID: 1}))

		assert.Equal(t, []string{"renamed:bob"}, names)
		assert.Equal(t, int32(2), all.Load())
	})

	t.Run("sync delivery preserves subscription order", func(t *testing.T) {
		t.Parallel()

		bus := event.NewBus()
		var order []string
		for _, name := range []string{"first", "second", "third"} {
			require.NoError(t, bus.Subscribe(event.NewSubscriber(name, func(ctx context.Context, evt string) error {
				order = append(order, name)
				return nil
			})))
		}

		require.NoError(t, bus.Publish(ctx, "ping"))
		assert.Equal(t, []string{"first", "second", "third"}, order)
	})

	t.Run("failures are isolated per subscriber", func(t *testing.T) {
		t.Parallel()

		var handled []event.Delivery
		var handledErrs []error
		bus := event.NewBus(event.WithErrorHandler(func(ctx context.Context, d event.Delivery, err error) {
			handled = append(handled, d)
			handledErrs = append(handledErrs, err)
		}))

		var reached atomic.Int32
		require.NoError(t, bus.Subscribe(
			event.NewSubscriber("fails", func(ctx context.Context, evt string) error {
				return errors.New("mail server down")
			}),
			event.NewSubscriber("panics", func(ctx context.Context, evt string) error {
				panic("nil map")
			}),
			event.NewSubscriber("works", func(ctx context.Context, evt string) error {
				reached.Add(1)
				return nil
			}),
		))

		require.NoError(t, bus.Publish(ctx, "ping"))

		assert.Equal(t, int32(1), reached.Load())
		require.Len(t, handled, 2)
		assert.Equal(t, "fails", handled[0].Subscriber)
		assert.Equal(t, "string", handled[0].EventName)
		assert.Equal(t, "panics", handled[1].Subscriber)
		assert.Contains(t, handledErrs[1].Error(), "panicked")

		stats := bus.Stats()
		assert.Equal(t, int64(1), stats.Delivered)
		assert.Equal(t, int64(2), stats.Failed)
	})

	t.Run("closed bus rejects events", func(t *testing.T) {
		t.Parallel()

		bus := event.NewBus()
		require.NoError(t, bus.Close(time.Second))
		require.NoError(t, bus.Close(time.Second))
		assert.ErrorIs(t, bus.Publish(ctx, "ping"), event.ErrBusClosed)
	})

	t.Run("nil subscriber", func(t *testing.T) {
		t.Parallel()

		bus := event.NewBus()
		assert.ErrorIs(t, bus.Subscribe(nil), event.ErrNilSubscriber)
		assert.Zero(t, bus.Stats().Subscribers)
	})
}

func TestBus_AsyncDelivery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("publish returns before subscribers finish", func(t *testing.T) {
		t.Parallel()

		bus := event.NewBus(event.WithAsyncDelivery(2, 10))
		release := make(chan struct{})
		done := make(chan string, 2)

		require.NoError(t, bus.Subscribe(
			event.NewSubscriber("slow", func(ctx context.Context, evt string) error {
				<-release
				done <- "slow"
				return nil
			}),
			event.NewSubscriber("fast", func(ctx context.Context, evt string) error {
				done <- "fast"
				return nil
			}),
		))

		require.NoError(t, bus.Publish(ctx, "ping"))

		select {
		case got := <-done:
			assert.Equal(t, "fast", got)
		case <-time.After(time.Second):
			t.Fatal("fast subscriber not delivered")
		}

		close(release)
		select {
		case got := <-done:
			assert.Equal(t, "slow", got)
		case <-time.After(time.Second):
			t.Fatal("slow subscriber not delivered")
		}

		require.NoError(t, bus.Close(time.Second))
		assert.True(t, bus.Stats().Async)
		assert.Equal(t, int64(2), bus.Stats().Delivered)
	})

	t.Run("full delivery queue is reported", func(t *testing.T) {
		t.Parallel()

		bus := event.NewBus(event.WithAsyncDelivery(1, 1))
		release := make(chan struct{})
		started := make(chan struct{}, 1)

		require.NoError(t, bus.Subscribe(event.NewSubscriber("blocker", func(ctx context.Context, evt string) error {
			started <- struct{}{}
			<-release
			return nil
		})))

		require.NoError(t, bus.Publish(ctx, "one"))
		<-started
		require.NoError(t, bus.Publish(ctx, "two"))

		err := bus.Publish(ctx, "three")
		assert.ErrorIs(t, err, queue.ErrQueueFull)
		assert.Equal(t, int64(1), bus.Stats().Dropped)

		close(release)
		<-started
		require.NoError(t, bus.Close(time.Second))
	})

	t.Run("close abandons stuck deliveries", func(t *testing.T) {
		t.Parallel()

		var abandoned atomic.Int32
		bus := event.NewBus(
			event.WithAsyncDelivery(1, 4),
			event.WithErrorHandler(func(ctx context.Context, d event.Delivery, err error) {
				if errors.Is(err, queue.ErrTaskAbandoned) {
					abandoned.Add(1)
				}
			}),
		)

		started := make(chan struct{}, 1)
		require.NoError(t, bus.Subscribe(event.NewSubscriber("stuck", func(ctx context.Context, evt string) error {
			started <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		})))

		require.NoError(t, bus.Publish(ctx, "one"))
		<-started
		require.NoError(t, bus.Publish(ctx, "two"))

		err := bus.Close(50 * time.Millisecond)
		var shutdownErr *queue.ShutdownError
		require.ErrorAs(t, err, &shutdownErr)
		assert.Equal(t, 2, shutdownErr.Abandoned)
		assert.Equal(t, int32(2), abandoned.Load())
		assert.ErrorIs(t, bus.Publish(ctx, "three"), event.ErrBusClosed)
	})

	t.Run("concurrent subscribe and publish", func(t *testing.T) {
		t.Parallel()

		bus := event.NewBus(event.WithAsyncDelivery(4, 1000))
		var received atomic.Int64

		var wg sync.WaitGroup
		for i := range 10 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				assert.NoError(t, bus.Subscribe(event.NewSubscriber(fmt.Sprintf("sub-%d", i), func(ctx context.Context, evt int) error {
					received.Add(1)
					return nil
				})))
			}()
			go func() {
				defer wg.Done()
				assert.NoError(t, bus.Publish(ctx, i))
			}()
		}
		wg.Wait()

		require.NoError(t, bus.Close(time.Second))
		assert.Equal(t, 10, bus.Stats().Subscribers)
		assert.Equal(t, received.Load(), bus.Stats().Delivered)
	})
}

func TestBus_Healthcheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("sync bus", func(t *testing.T) {
		t.Parallel()

		bus := event.NewBus()
		require.NoError(t, bus.Healthcheck(ctx))
		require.NoError(t, bus.Close(time.Second))
		assert.ErrorIs(t, bus.Healthcheck(ctx), event.ErrBusClosed)
	})

	t.Run("async bus", func(t *testing.T) {
		t.Parallel()

		bus := event.NewBus(event.WithAsyncDelivery(1, 1))
		require.NoError(t, bus.Healthcheck(ctx))
		require.NoError(t, bus.Close(time.Second))
		assert.ErrorIs(t, bus.Healthcheck(ctx), event.ErrBusClosed)
	})
}

func TestLoggingSubscriber(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("logs every event at info when enabled", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
		bus := event.NewBus(event.WithLogger(log), event.WithLoggingSubscriber(true))

		require.NoError(t, bus.Publish(ctx, UserCreated{Email: "a@b.c"}))

		assert.Contains(t, buf.String(), "event published")
		assert.Contains(t, buf.String(), "event=UserCreated")
		assert.Zero(t, bus.Stats().Delivered)
	})

	t.Run("logs at debug when disabled", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
		bus := event.NewBus(event.WithLogger(log), event.WithLoggingSubscriber(false))

		require.NoError(t, bus.Publish(ctx, "quiet"))
		assert.NotContains(t, buf.String(), "event published")
	})

	t.Run("can be removed", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		bus := event.NewBus(event.WithLogger(log), event.WithoutLoggingSubscriber())

		require.NoError(t, bus.Publish(ctx, "silent"))
		assert.NotContains(t, buf.String(), "event published")
	})
}

func TestName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "UserCreated", event.Name(UserCreated{}))
	assert.Equal(t, "UserCreated", event.Name(&UserCreated{}))
	assert.Equal(t, "string", event.Name("EVENT_hello"))
	assert.Equal(t, "<nil>", event.Name(nil))
}

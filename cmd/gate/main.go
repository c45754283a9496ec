package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/gate/core/command"
	"github.com/dmitrymomot/gate/core/config"
	"github.com/dmitrymomot/gate/core/event"
	"github.com/dmitrymomot/gate/core/health"
	"github.com/dmitrymomot/gate/core/logger"
	"github.com/dmitrymomot/gate/integration/database/pg"
	"github.com/dmitrymomot/gate/integration/database/redis"
	"github.com/dmitrymomot/gate/pkg/async"
	"github.com/dmitrymomot/gate/pkg/ratelimiter"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

const journalTable = "event_journal"

type options struct {
	greetings    []string
	serve        bool
	json         bool
	limitersFile string
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("gate", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringSliceVarP(&opts.greetings, "greet", "g", nil, "Submit a greeting command; repeatable")
	fs.BoolVar(&opts.serve, "serve", false, "Keep running until interrupted")
	fs.BoolVar(&opts.json, "json", false, "Write logs as JSON")
	fs.StringVar(&opts.limitersFile, "limiters", "", "Limiter table file, overrides GATE_LIMITERS_FILE")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	// Positional arguments are greetings too
	opts.greetings = append(opts.greetings, fs.Args()...)
	return opts, nil
}

func run(ctx context.Context, args []string, out, logOut io.Writer) error {
	opts, err := parseFlags(args, out)
	if err != nil {
		return err
	}

	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return err
	}
	if opts.limitersFile != "" {
		cfg.LimitersFile = opts.limitersFile
	}

	log := newLogger(cfg, opts.json, logOut)

	// Cancelled when the greetings are done, unless serving
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	rel := newReleaser(log)

	comps, err := assemble(ctx, cfg, log, eg, rel)
	if err != nil {
		rel.release()
		return err
	}
	eg.Go(rel.Run(ctx))

	if err := health.Readiness(ctx, log, comps.checks...); err != nil {
		cancel()
		_ = eg.Wait()
		return err
	}
	if opts.serve {
		eg.Go(health.Monitor(log, cfg.HealthInterval, comps.checks...)(ctx))
	}

	log.Info("gate started",
		logger.Component("gate"),
		logger.Count("limiters", len(comps.limiters.Names())),
		slog.Bool("async_events", cfg.asyncEvents()))

	eg.Go(func() error {
		batch := command.WithCorrelationID(ctx, uuid.NewString())
		err := greet(batch, comps.dispatcher, opts.greetings, out)
		if !opts.serve {
			cancel()
		}
		return err
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	log.Info("gate stopped", logger.Component("gate"))
	return nil
}

// newLogger applies the APP_ENV preset first so LOG_LEVEL and --json override it.
func newLogger(cfg Config, json bool, w io.Writer) *slog.Logger {
	opts := []logger.Option{logger.WithOutput(w)}
	if cfg.AppEnv == "production" {
		opts = append(opts, logger.WithProduction(cfg.AppName))
	} else {
		opts = append(opts, logger.WithDevelopment(cfg.AppName))
	}
	if level, ok := cfg.level(); ok {
		opts = append(opts, logger.WithLevel(level))
	}
	if json {
		opts = append(opts, logger.WithJSONFormatter())
	}
	return logger.New(opts...)
}

type components struct {
	dispatcher *command.Dispatcher
	limiters   *ratelimiter.Limiters
	checks     []health.Check
}

// assemble builds every component and registers it with rel. Registration
// order is store, journal, bus, dispatcher, so shutdown drains the dispatcher
// first and closes the stores last.
func assemble(ctx context.Context, cfg Config, log *slog.Logger, eg *errgroup.Group, rel *releaser) (*components, error) {
	var checks []health.Check

	store, check, err := newStore(ctx, cfg, log, eg, rel)
	if err != nil {
		return nil, err
	}
	checks = append(checks, check...)

	table, err := config.LoadLimiters(cfg.LimitersFile)
	if err != nil {
		return nil, err
	}
	limiters, err := ratelimiter.NewLimiters(store, table)
	if err != nil {
		return nil, err
	}

	bus, check, err := newBus(ctx, cfg, log, rel)
	if err != nil {
		return nil, err
	}
	checks = append(checks, check...)

	var handlerOpts []command.HandlerOption
	if limiters.Has(GreetingLimiter) {
		handlerOpts = append(handlerOpts, command.WithThrottle(GreetingLimiter))
	}
	registry, err := command.NewRegistry(newGreetingHandler(bus, handlerOpts...))
	if err != nil {
		return nil, err
	}

	dispatcher, err := newDispatcher(cfg, log, registry, limiters, rel)
	if err != nil {
		return nil, err
	}
	checks = append(checks, health.NewCheck("command-dispatcher", dispatcher.Healthcheck))

	return &components{dispatcher: dispatcher, limiters: limiters, checks: checks}, nil
}

func newDispatcher(cfg Config, log *slog.Logger, registry *command.Registry, limiters *ratelimiter.Limiters, rel *releaser) (*command.Dispatcher, error) {
	runners := append([]command.Runner{command.TracingRunner(nil)},
		command.DefaultRunners(log, cfg.LoggingEnabled, limiters)...)

	dispatcher, err := command.NewDispatcher(registry,
		command.WithRunners(runners...),
		command.WithThrottler(limiters),
		command.WithWorkers(cfg.Dispatch.Workers),
		command.WithQueueSize(cfg.Dispatch.QueueSize),
		command.WithShutdownTimeout(cfg.Dispatch.ShutdownTimeout),
		command.WithLoggingEnabled(cfg.LoggingEnabled),
		command.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	rel.add("command-dispatcher", func() error {
		return dispatcher.Shutdown(cfg.Dispatch.ShutdownTimeout)
	})
	return dispatcher, nil
}

func greet(ctx context.Context, d *command.Dispatcher, greetings []string, out io.Writer) error {
	futures := make([]*async.Future[int], len(greetings))
	for i, g := range greetings {
		futures[i] = command.Submit[int](ctx, d, Greeting(g))
	}

	var errs []error
	for i, g := range greetings {
		n, err := futures[i].AwaitContext(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("greet %q: %w", g, err))
			continue
		}
		fmt.Fprintf(out, "%s\t%d\n", g, n)
	}
	return errors.Join(errs...)
}

func newStore(ctx context.Context, cfg Config, log *slog.Logger, eg *errgroup.Group, rel *releaser) (ratelimiter.Store, []health.Check, error) {
	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, redis.Config{
			ConnectionURL:  cfg.RedisURL,
			RetryAttempts:  3,
			RetryInterval:  time.Second,
			ConnectTimeout: 30 * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		rel.add("redis", client.Close)

		store, err := redis.NewStore(client)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis limiter store", logger.Component("ratelimiter"))
		return store, []health.Check{health.NewCheck("redis", redis.Healthcheck(client))}, nil
	}

	store := ratelimiter.NewMemoryStore(ratelimiter.WithMemoryStoreLogger(log))
	eg.Go(store.Run(ctx))
	return store, nil, nil
}

// newBus registers the journal pool before the bus, so pending deliveries
// drain before the pool closes.
func newBus(ctx context.Context, cfg Config, log *slog.Logger, rel *releaser) (*event.Bus, []health.Check, error) {
	var (
		journal *pg.Journal
		checks  []health.Check
	)
	if cfg.PostgresURL != "" {
		db, err := pg.Connect(ctx, pg.Config{
			ConnectionString: cfg.PostgresURL,
			RetryAttempts:    3,
			RetryInterval:    time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		rel.add("postgres", func() error {
			db.Close()
			return nil
		})

		journal, err = pg.NewJournal(db, journalTable)
		if err != nil {
			return nil, nil, err
		}
		if err := journal.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		checks = append(checks, health.NewCheck("postgres", pg.Healthcheck(db)))
	}

	busOpts := []event.Option{
		event.WithLogger(log),
		event.WithLoggingSubscriber(cfg.LoggingEnabled),
		event.WithShutdownTimeout(cfg.EventShutdown),
	}
	if cfg.asyncEvents() {
		busOpts = append(busOpts, event.WithAsyncDelivery(cfg.EventWorkers, cfg.EventQueueSize))
	}
	bus := event.NewBus(busOpts...)
	rel.add("event-bus", func() error {
		return bus.Close(cfg.EventShutdown)
	})
	checks = append(checks, health.NewCheck("event-bus", bus.Healthcheck))

	if journal != nil {
		if err := bus.Subscribe(journal.Subscriber()); err != nil {
			return nil, nil, err
		}
		log.Info("recording events", logger.Component("event-journal"))
	}
	return bus, checks, nil
}

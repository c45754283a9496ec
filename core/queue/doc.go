// Package queue provides a bounded worker pool with graceful-then-forced shutdown.
//
// A Pool runs a fixed number of worker goroutines that drain a buffered queue of
// tasks. Submit never blocks: a full queue is reported as ErrQueueFull and a pool
// that is shutting down rejects work with ErrPoolClosed.
//
// # Usage
//
//	pool := queue.NewPool(
//		queue.WithName("dispatch"),
//		queue.WithWorkers(8),
//		queue.WithQueueSize(128),
//		queue.WithLogger(logger),
//	)
//
//	err := pool.Submit(queue.NewTask(
//		func(ctx context.Context) { resize(ctx, img) },
//		func(err error) { log.Printf("resize abandoned: %v", err) },
//	))
//
// # Shutdown
//
// Shutdown(grace) closes the queue and waits for workers to finish everything
// already accepted. If grace elapses first, the pool context passed to Task.Run
// is cancelled and every task that has not finished is abandoned: Abandon is
// called with ErrTaskAbandoned, whether the task was still queued or already
// running. Running goroutines cannot be killed; a task that ignores ctx keeps
// running, but its completion is no longer counted. The returned *ShutdownError
// carries the number of abandoned tasks and matches ErrShutdownTimeout.
//
// Shutdown is idempotent. For errgroup based lifecycles use Run:
//
//	g.Go(pool.Run(ctx))
//
// # Configuration
//
// Config carries env tags without a prefix so owners can embed it under their own:
//
//	type DispatchConfig struct {
//		Pool queue.Config `envPrefix:"GATE_"`
//	}
package queue

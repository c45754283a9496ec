// Package async provides a generic Future used to hand results of work executed on
// another goroutine back to the caller.
//
// # Core Types
//
// Future[T] represents the result of an asynchronous computation. It is resolved exactly
// once, either by the goroutine spawned by Async or by whoever owns the future returned
// from Pending. Waiting is possible with Await, AwaitContext and AwaitWithTimeout;
// IsComplete and Done allow polling and select-based coordination.
//
// # Usage
//
// Run a function asynchronously:
//
//	future := async.Async(ctx, 123, fetchUser)
//
//	// Do other work...
//
//	user, err := future.Await()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Resolve a future from a worker you control:
//
//	future := async.Pending[int]()
//	pool.Submit(func() {
//		future.Resolve(compute())
//	})
//	n, err := future.AwaitWithTimeout(time.Second)
//	if errors.Is(err, async.ErrTimeout) {
//		log.Println("operation timed out")
//	}
//
// Resolve only records the first outcome, so a late completion after the future was
// already failed (for example by a forced shutdown) is silently dropped.
//
// # Coordination Utilities
//
// AwaitAll waits for every future and returns the first error encountered in argument
// order.
package async

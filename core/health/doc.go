// Package health aggregates dependency checks.
//
// Checks follow the func(context.Context) error signature used by
// Dispatcher.Healthcheck, redis.Healthcheck and pg.Healthcheck:
//
//	checks := []health.Check{
//		health.NewCheck("dispatcher", dispatcher.Healthcheck),
//		health.NewCheck("postgres", pg.Healthcheck(pool)),
//	}
//	if err := health.Readiness(ctx, log, checks...); err != nil {
//		return err
//	}
//	eg.Go(health.Monitor(log, time.Minute, checks...)(ctx))
package health

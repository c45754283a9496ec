package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/gate/core/logger"
)

// releaser closes components in reverse order of registration: producers are
// registered after the resources they use, so they drain first.
type releaser struct {
	log   *slog.Logger
	steps []releaseStep
}

type releaseStep struct {
	name  string
	close func() error
}

func newReleaser(log *slog.Logger) *releaser {
	return &releaser{log: log}
}

func (r *releaser) add(name string, fn func() error) {
	r.steps = append(r.steps, releaseStep{name: name, close: fn})
}

// Run blocks until ctx is done and then releases every component.
// Register all components before starting it.
func (r *releaser) Run(ctx context.Context) func() error {
	return func() error {
		<-ctx.Done()
		r.release()
		return nil
	}
}

// release closes every component, last registered first. A failing step is
// logged and does not stop the ones after it.
func (r *releaser) release() {
	start := time.Now()

	var errs []error
	for i := len(r.steps) - 1; i >= 0; i-- {
		step := r.steps[i]
		if err := step.close(); err != nil {
			r.log.Warn("component release failed", logger.Component(step.name), logger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			continue
		}
		r.log.Debug("component released", logger.Component(step.name))
	}
	r.steps = nil

	r.log.Info("components released", logger.Elapsed(start), logger.Errors(errs...))
}

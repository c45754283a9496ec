package command

import "context"

// Next invokes the remainder of the chain.
type Next func(ctx context.Context, ec *ExecutionContext) (any, error)

// Runner is one step of the chain. A runner may act before or after calling
// next, change ec's metadata, or return without calling next at all.
type Runner interface {
	Run(ctx context.Context, ec *ExecutionContext, next Next) (any, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, ec *ExecutionContext, next Next) (any, error)

func (f RunnerFunc) Run(ctx context.Context, ec *ExecutionContext, next Next) (any, error) {
	return f(ctx, ec, next)
}

// Terminal is implemented by runners that must be innermost.
type Terminal interface {
	Runner
	terminal()
}

// DefaultRunner invokes the handler. It is always the last step of a chain
// and is appended by BuildChain; it accepts no continuation.
type DefaultRunner struct{}

func (DefaultRunner) terminal() {}

// Run calls ec.Handler.Handle and returns its result verbatim.
// A non-nil next means the chain was assembled wrongly; the handler is not called.
func (DefaultRunner) Run(ctx context.Context, ec *ExecutionContext, next Next) (any, error) {
	if next != nil {
		return nil, misconfigured("default runner invoked with a continuation")
	}
	if ec == nil || ec.Handler == nil {
		return nil, misconfigured("default runner invoked without a handler")
	}
	return ec.Handler.Handle(ctx, ec.Command)
}

// Chain is an immutable, ordered composition of runners ending in the default runner.
type Chain struct {
	runners []Runner
	entry   Next
}

// BuildChain composes runners outer to inner and appends the default runner.
// Listing a terminal runner or a nil runner is a misconfiguration. Duplicates
// are kept; composition order decides precedence.
func BuildChain(runners ...Runner) (*Chain, error) {
	for i, r := range runners {
		if r == nil {
			return nil, misconfigured("runner %d is nil", i)
		}
		if _, ok := r.(Terminal); ok {
			return nil, misconfigured("runner %d is terminal; the default runner is appended automatically", i)
		}
	}

	c := &Chain{runners: append([]Runner(nil), runners...)}
	c.entry = c.compose(func(ctx context.Context, ec *ExecutionContext) (any, error) {
		return DefaultRunner{}.Run(ctx, ec, nil)
	})
	return c, nil
}

// MustBuildChain is like BuildChain but panics on misconfiguration.
func MustBuildChain(runners ...Runner) *Chain {
	c, err := BuildChain(runners...)
	if err != nil {
		panic(err)
	}
	return c
}

// Execute runs ec through the chain.
func (c *Chain) Execute(ctx context.Context, ec *ExecutionContext) (any, error) {
	return c.entry(ctx, ec)
}

// Len returns the number of runners including the default runner.
func (c *Chain) Len() int {
	return len(c.runners) + 1
}

// compose wraps terminal with every runner, first runner outermost.
func (c *Chain) compose(terminal Next) Next {
	next := terminal
	// Reverse order required: wrapping innermost first makes it execute last
	for i := len(c.runners) - 1; i >= 0; i-- {
		r, inner := c.runners[i], next
		next = func(ctx context.Context, ec *ExecutionContext) (any, error) {
			return r.Run(ctx, ec, inner)
		}
	}
	return next
}

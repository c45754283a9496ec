package main

import (
	"context"

	"github.com/dmitrymomot/gate/core/command"
	"github.com/dmitrymomot/gate/core/event"
)

// Greeting is a demo command. Its handler publishes "EVENT_<text>" and
// returns the text length.
type Greeting string

// GreetingLimiter throttles greetings when the limiter table defines it.
const GreetingLimiter = "greeting"

func newGreetingHandler(pub event.Publisher, opts ...command.HandlerOption) command.Handler {
	return command.NewHandlerFunc(func(ctx context.Context, g Greeting) (int, error) {
		if err := pub.Publish(ctx, "EVENT_"+string(g)); err != nil {
			return 0, err
		}
		return len(g), nil
	}, opts...)
}

package command

import (
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Registry maps command types to their single handler.
// Registration happens at startup; once sealed by a Dispatcher the table never
// changes and Resolve reads it without locking.
type Registry struct {
	mu       sync.Mutex
	sealed   bool
	handlers map[reflect.Type]Handler
}

// NewRegistry creates a registry holding handlers.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[reflect.Type]Handler, len(handlers))}
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a handler. A nil handler, an interface command type, a second
// handler for the same type or registration after sealing is a misconfiguration.
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return misconfigured("nil handler")
	}

	t := h.CommandType()
	if t == nil || t.Kind() == reflect.Interface {
		return misconfigured("handler %s: command type must be concrete", h.CommandName())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return misconfigured("registry is sealed, cannot register %s", h.CommandName())
	}
	if _, exists := r.handlers[t]; exists {
		return misconfigured("duplicate handler for command %s", t)
	}

	r.handlers[t] = h
	return nil
}

// Resolve returns the handler for cmd's runtime type.
func (r *Registry) Resolve(cmd any) (Handler, error) {
	if h, ok := r.handlers[reflect.TypeOf(cmd)]; ok {
		return h, nil
	}
	return nil, &HandlerNotFoundError{Command: cmd}
}

// Handlers returns the registered handlers ordered by command name.
func (r *Registry) Handlers() []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h)
	}
	slices.SortFunc(out, func(a, b Handler) int {
		return strings.Compare(a.CommandName(), b.CommandName())
	})
	return out
}

// seal forbids further registration. Resolve is only lock-free after sealing.
func (r *Registry) seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

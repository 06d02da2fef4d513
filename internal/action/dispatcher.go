package action

import "sync"

// Handler reacts to dispatched actions.
//
// HandleAction must not call Dispatch on the same Dispatcher; dispatch is
// serialized and a re-entrant call deadlocks. A panicking handler indicates a
// reducer bug and propagates to the caller of Dispatch.
type Handler interface {
	HandleAction(a Action)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(a Action)

// HandleAction calls f(a).
func (f HandlerFunc) HandleAction(a Action) {
	f(a)
}

// Dispatcher delivers each action synchronously to every registered handler.
//
// Thread-safety model:
//   - Dispatch(): safe from any goroutine; one action is delivered at a time
//   - DispatchIf(): like Dispatch, with cond checked under the same lock
//   - Register(): safe from any goroutine; takes effect for the next Dispatch
//
// Handlers are invoked in registration order. Dispatch never retries and
// never recovers a handler panic.
type Dispatcher struct {
	mu       sync.Mutex
	handlers []Handler
}

// NewDispatcher creates a dispatcher with the given handlers, in order.
func NewDispatcher(handlers ...Handler) *Dispatcher {
	d := &Dispatcher{}
	d.handlers = append(d.handlers, handlers...)
	return d
}

// Register appends a handler after all previously registered handlers.
func (d *Dispatcher) Register(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// Dispatch delivers a to every handler before returning.
func (d *Dispatcher) Dispatch(a Action) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, h := range d.handlers {
		h.HandleAction(a)
	}
}

// DispatchIf delivers a only if cond reports true. cond runs while dispatch
// is held, so no other action can land between the check and delivery.
// cond must not dispatch.
func (d *Dispatcher) DispatchIf(cond func() bool, a Action) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !cond() {
		return false
	}
	for _, h := range d.handlers {
		h.HandleAction(a)
	}
	return true
}

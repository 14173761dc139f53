package netio

// eventBufferFloor is the reactor event-buffer size used when newReactor is
// given a non-positive size, shared by the epoll and poll reactors.
// NewEventLoop never passes one: applyDefaults first replaces an unset
// EventLoopConfig.EventBufferSize with defaultEventBufferSize (256).
const eventBufferFloor = 32

// Reactor is the non-blocking I/O runtime the loop drives. It is the
// external collaborator described in spec.md §1/§6 — the loop is the only
// thing that talks to it, and only from the loop thread (except Signal,
// which is the one cross-thread-safe call).
type Reactor interface {
	// RegisterWakeup creates a cross-thread-signalable handle. callback runs
	// on the goroutine that calls Run, once per coalesced Signal.
	RegisterWakeup(callback func()) (Wakeup, error)

	// RegisterRead arms fd for read readiness; callback runs on the Run
	// goroutine whenever fd becomes readable.
	RegisterRead(fd int, callback func()) error

	// Deregister removes fd from the reactor. It does not close fd.
	Deregister(fd int) error

	// Run drives the reactor until no handles (wakeups or registered fds)
	// remain active, then returns.
	Run() error

	// Close releases the reactor's own resources. It fails if any handle is
	// still active.
	Close() error
}

// Wakeup is a cross-thread, edge-triggered, coalescing signal: multiple
// Signal calls between two callback invocations collapse into one.
type Wakeup interface {
	Signal() error
	Close() error
}

package netio

import (
	"net"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

// EventLoop is the single point of contact between application threads and
// the OS's non-blocking UDP I/O. One loop thread drives the reactor and is
// the sole mutator of OS-level handles; application threads submit tasks and
// park on task_cond/close_cond until the loop thread completes them. See
// SPEC_FULL.md §2-§5 for the full concurrency contract this mirrors.
type EventLoop struct {
	config EventLoopConfig

	reactor    Reactor
	taskWakeup Wakeup
	stopWakeup Wakeup
	resolver   *resolverBridge
	bufferPool BufferPool

	mu        sync.Mutex
	taskCond  *sync.Cond
	closeCond *sync.Cond

	tasks        []*task
	openPorts    *portSet
	closingPorts *portSet

	loopInitialized       bool
	taskWakeupInitialized bool
	stopWakeupInitialized bool

	started atomic.Bool
	closed  atomic.Bool
	done    chan struct{}
}

// NewEventLoop constructs and starts an EventLoop eagerly. If any
// construction step fails, the partially-built loop is returned with
// Valid() == false; callers must check Valid before using it and are still
// expected to call Close so any handles that did get created are released.
func NewEventLoop(config EventLoopConfig) *EventLoop {
	config.applyDefaults()
	raiseFileLimit(config.MaxOpenFiles)

	el := &EventLoop{
		config:       config,
		openPorts:    newPortSet(),
		closingPorts: newPortSet(),
		bufferPool:   NewBufferPool(config.SocketBufferSize),
		done:         make(chan struct{}),
	}
	el.taskCond = sync.NewCond(&el.mu)
	el.closeCond = sync.NewCond(&el.mu)

	reactor, err := newReactor(config.EventBufferSize)
	if err != nil {
		log.Error().Msgf("netio: %s: %v: %+v", config.Name, errReactorInitFailed, err)
		return el
	}
	el.reactor = reactor
	el.loopInitialized = true

	taskWakeup, err := reactor.RegisterWakeup(el.processTasks)
	if err != nil {
		log.Error().Msgf("netio: %s: task wakeup init: %+v", config.Name, err)
		return el
	}
	el.taskWakeup = taskWakeup
	el.taskWakeupInitialized = true

	stopWakeup, err := reactor.RegisterWakeup(el.handleStop)
	if err != nil {
		log.Error().Msgf("netio: %s: stop wakeup init: %+v", config.Name, err)
		return el
	}
	el.stopWakeup = stopWakeup
	el.stopWakeupInitialized = true

	resolver, err := newResolverBridge(el, config.ResolverCacheSize, config.ResolverCacheTTL)
	if err != nil {
		log.Error().Msgf("netio: %s: resolver init: %+v", config.Name, err)
		return el
	}
	el.resolver = resolver

	el.started.Store(true)
	go el.run()
	return el
}

// Valid reports whether construction fully succeeded. Every public operation
// besides Valid and NumPorts requires Valid() == true; violating that is a
// programming error and panics.
func (el *EventLoop) Valid() bool {
	return el.loopInitialized && el.taskWakeupInitialized && el.stopWakeupInitialized && el.resolver != nil
}

func (el *EventLoop) mustBeValid() {
	if !el.Valid() {
		panic("netio: event loop is not valid")
	}
}

// NumPorts returns the number of currently open ports. Safe to call even on
// an invalid loop.
func (el *EventLoop) NumPorts() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.openPorts.len()
}

func (el *EventLoop) run() {
	if el.config.LockOsThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	defer close(el.done)
	if err := el.reactor.Run(); err != nil {
		log.Error().Msgf("netio: %s: reactor run: %+v", el.config.Name, err)
	}
}

// AddUDPReceiver binds a receiver at config.BindAddress (a zero port means
// kernel-chosen) and delivers incoming datagrams to writer. On success
// config.BindAddress is rewritten to the bound address and the returned
// handle is non-nil. On failure it returns nil only after the partially
// created port's async close has fully finished.
func (el *EventLoop) AddUDPReceiver(config *UDPReceiverConfig, writer PacketWriter) PortHandle {
	el.mustBeValid()
	t := newTask(taskAddUDPReceiver)
	t.receiverConfig = config
	t.receiverWriter = writer
	el.runTask(t)
	if t.state != taskSucceeded {
		if t.port != nil {
			el.waitPortClosed(t.port)
		}
		return nil
	}
	return t.port
}

// AddUDPSender creates a sender bound at config.BindAddress. On success
// config.BindAddress is rewritten to the bound address and the returned
// PacketWriter accepts outbound packets from any thread. Failure semantics
// mirror AddUDPReceiver.
func (el *EventLoop) AddUDPSender(config *UDPSenderConfig) (PortHandle, PacketWriter) {
	el.mustBeValid()
	t := newTask(taskAddUDPSender)
	t.senderConfig = config
	el.runTask(t)
	if t.state != taskSucceeded {
		if t.port != nil {
			el.waitPortClosed(t.port)
		}
		return nil, nil
	}
	return t.port, t.senderWriter
}

// RemovePort removes a previously returned port and blocks until its async
// close has finished. Passing an unknown handle is a programming error.
func (el *EventLoop) RemovePort(handle PortHandle) {
	el.mustBeValid()

	el.mu.Lock()
	known := el.openPorts.contains(handle)
	el.mu.Unlock()
	if !known {
		panic("netio: remove_port: unknown handle")
	}

	t := newTask(taskRemovePort)
	t.removeTarget = handle
	el.runTask(t)
	el.waitPortClosed(handle)
}

// ResolveEndpointAddress blocks the caller until the asynchronous resolution
// of uri completes, returning the resolved address and whether it succeeded.
func (el *EventLoop) ResolveEndpointAddress(uri string) (*net.UDPAddr, bool) {
	el.mustBeValid()
	t := newTask(taskResolve)
	t.resolveReq = &resolveRequest{endpointURI: uri}
	t.resolveReq.owner = t
	el.runTask(t)
	return t.resolveReq.resolvedAddress, t.state == taskSucceeded
}

// Close stops the loop: every open port is moved through async close, both
// wakeups are closed, the loop thread is joined, and the reactor is closed.
// If the loop never finished construction, it instead drives the reactor
// once on the calling goroutine so any handles that were created can finish
// closing before the reactor itself is closed.
func (el *EventLoop) Close() error {
	if !el.closed.CAS(false, true) {
		panic("netio: event loop closed twice")
	}
	if !el.started.Load() {
		return el.closeUninitialized()
	}
	if err := el.stopWakeup.Signal(); err != nil {
		log.Error().Msgf("netio: %s: stop signal: %+v", el.config.Name, err)
	}
	<-el.done
	return el.reactor.Close()
}

func (el *EventLoop) closeUninitialized() error {
	if el.taskWakeupInitialized {
		if err := el.taskWakeup.Close(); err != nil {
			log.Error().Msgf("netio: %s: close task wakeup: %+v", el.config.Name, err)
		}
	}
	if el.stopWakeupInitialized {
		if err := el.stopWakeup.Close(); err != nil {
			log.Error().Msgf("netio: %s: close stop wakeup: %+v", el.config.Name, err)
		}
	}
	if !el.loopInitialized {
		return nil
	}
	if err := el.reactor.Run(); err != nil {
		log.Error().Msgf("netio: %s: reactor run during teardown: %+v", el.config.Name, err)
	}
	return el.reactor.Close()
}

// runTask is run_task_: push the task, signal the task-wakeup, then park on
// task_cond until the loop thread has moved it out of Pending.
func (el *EventLoop) runTask(t *task) {
	el.mu.Lock()
	el.tasks = append(el.tasks, t)
	el.mu.Unlock()

	if err := el.taskWakeup.Signal(); err != nil {
		log.Error().Msgf("netio: %s: task wakeup signal: %+v", el.config.Name, err)
	}

	el.mu.Lock()
	for t.state == taskPending {
		el.taskCond.Wait()
	}
	el.mu.Unlock()
}

// waitPortClosed blocks until p is no longer in closingPorts.
func (el *EventLoop) waitPortClosed(p Port) {
	el.mu.Lock()
	for el.closingPorts.contains(p) {
		el.closeCond.Wait()
	}
	el.mu.Unlock()
}

// processTasks is the task-wakeup callback, running on the loop thread:
// drain tasks FIFO, run each handler under the mutex, and broadcast
// task_cond once if anything left Pending (batched notification).
func (el *EventLoop) processTasks() {
	el.mu.Lock()
	pending := el.tasks
	el.tasks = nil

	anyDone := false
	for _, t := range pending {
		el.dispatchTask(t)
		if t.state != taskPending {
			anyDone = true
		}
	}
	if anyDone {
		el.taskCond.Broadcast()
	}
	el.mu.Unlock()
}

// dispatchTask runs with el.mu held; handlers are non-blocking by contract.
func (el *EventLoop) dispatchTask(t *task) {
	switch t.kind {
	case taskAddUDPReceiver:
		el.handleAddUDPReceiver(t)
	case taskAddUDPSender:
		el.handleAddUDPSender(t)
	case taskRemovePort:
		el.handleRemovePort(t)
	case taskResolve:
		el.handleResolve(t)
	}
}

func (el *EventLoop) handleAddUDPReceiver(t *task) {
	port := newUDPReceiverPort(el, t.receiverConfig.BindAddress, t.receiverWriter, el.bufferPool)
	t.port = port

	if !port.Open() {
		el.asyncClosePortLocked(port)
		t.state = taskFailed
		return
	}
	t.receiverConfig.BindAddress = port.Address()
	el.openPorts.add(port)
	t.state = taskSucceeded
}

func (el *EventLoop) handleAddUDPSender(t *task) {
	port := newUDPSenderPort(el, t.senderConfig.BindAddress)
	t.port = port

	if !port.Open() {
		el.asyncClosePortLocked(port)
		t.state = taskFailed
		return
	}
	t.senderConfig.BindAddress = port.Address()
	t.senderWriter = port.Writer()
	el.openPorts.add(port)
	t.state = taskSucceeded
}

func (el *EventLoop) handleRemovePort(t *task) {
	el.openPorts.remove(t.removeTarget)
	el.asyncClosePortLocked(t.removeTarget)
	t.state = taskSucceeded
}

func (el *EventLoop) handleResolve(t *task) {
	if el.resolver.asyncResolve(t.resolveReq) {
		return // left Pending; handleResolved completes it later.
	}
	if t.resolveReq.success {
		t.state = taskSucceeded
	} else {
		t.state = taskFailed
	}
}

// asyncClosePortLocked is async_close_port_. Called with el.mu held.
func (el *EventLoop) asyncClosePortLocked(p Port) {
	if p.AsyncClose() {
		el.closingPorts.add(p)
	}
}

// handleClosed is the loop-facing half of a Port's async close completion.
// Ports call it (via a goroutine hop, never while holding el.mu themselves)
// once their OS handle has been released. A no-op if p isn't in
// closingPorts, so a port that double-reports completion is harmless.
func (el *EventLoop) handleClosed(p Port) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if !el.closingPorts.contains(p) {
		return
	}
	el.closingPorts.remove(p)
	el.closeCond.Broadcast()
}

// handleResolved recovers the owning task via the request's back-pointer,
// sets its state, and broadcasts task_cond. Runs on the resolver's
// background goroutine rather than the loop thread, which is safe here
// because it only ever touches mutex-protected state, never an OS handle.
func (el *EventLoop) handleResolved(req *resolveRequest) {
	el.mu.Lock()
	if req.success {
		req.owner.state = taskSucceeded
	} else {
		req.owner.state = taskFailed
	}
	el.taskCond.Broadcast()
	el.mu.Unlock()
}

// handleStop is the stop-wakeup callback: move every open port into the
// close pipeline, close both wakeups so no further tasks can arrive, and
// drain whatever is left in the queue through processTasks. Any task still
// Pending after this
// (e.g. an in-flight resolve) will never complete — destroying a loop with
// outstanding calls is a documented precondition violation, not a case this
// recovers from (see SPEC_FULL.md Open Questions).
func (el *EventLoop) handleStop() {
	el.mu.Lock()
	for p := el.openPorts.front(); p != nil; p = el.openPorts.front() {
		el.openPorts.remove(p)
		el.asyncClosePortLocked(p)
	}
	el.mu.Unlock()

	if err := el.taskWakeup.Close(); err != nil {
		log.Error().Msgf("netio: %s: close task wakeup: %+v", el.config.Name, err)
	}
	if err := el.stopWakeup.Close(); err != nil {
		log.Error().Msgf("netio: %s: close stop wakeup: %+v", el.config.Name, err)
	}

	el.processTasks()
}

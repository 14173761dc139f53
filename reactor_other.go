//go:build !linux && !windows

package netio

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// pollReactor is the non-Linux unix fallback. It is built on poll(2) rather
// than each platform's native facility (kqueue on BSD/Darwin, epoll on
// Linux), trading peak throughput for one implementation that is correct
// everywhere unix.Poll is — the same trade the teacher's netpoll.go family
// never had to make because dynproxy only ever shipped for linux/amd64.
type pollReactor struct {
	eventBufferSize int

	mu      sync.Mutex
	readCBs map[int]func()
	wakeups map[int]*pipeWakeup
	active  int
	rebuild chan struct{}
}

func newReactor(eventBufferSize int) (Reactor, error) {
	if eventBufferSize <= 0 {
		eventBufferSize = eventBufferFloor
	}
	return &pollReactor{
		eventBufferSize: eventBufferSize,
		readCBs:         make(map[int]func()),
		wakeups:         make(map[int]*pipeWakeup),
		rebuild:         make(chan struct{}, 1),
	}, nil
}

func (r *pollReactor) RegisterRead(fd int, callback func()) error {
	r.mu.Lock()
	r.readCBs[fd] = callback
	r.active++
	r.mu.Unlock()
	r.kick()
	return nil
}

func (r *pollReactor) Deregister(fd int) error {
	r.mu.Lock()
	if _, ok := r.readCBs[fd]; ok {
		delete(r.readCBs, fd)
		r.active--
	}
	r.mu.Unlock()
	r.kick()
	return nil
}

func (r *pollReactor) RegisterWakeup(callback func()) (Wakeup, error) {
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK); err != nil {
		return nil, err
	}
	w := &pipeWakeup{readFD: fds[0], writeFD: fds[1], reactor: r, callback: callback}

	r.mu.Lock()
	r.wakeups[fds[0]] = w
	r.active++
	r.mu.Unlock()
	r.kick()
	return w, nil
}

func (r *pollReactor) kick() {
	select {
	case r.rebuild <- struct{}{}:
	default:
	}
}

func (r *pollReactor) Run() error {
	for {
		r.mu.Lock()
		if r.active == 0 {
			r.mu.Unlock()
			return nil
		}
		pfds := make([]unix.PollFd, 0, max(len(r.readCBs)+len(r.wakeups), r.eventBufferSize))
		for fd := range r.readCBs {
			pfds = append(pfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		}
		for fd := range r.wakeups {
			pfds = append(pfds, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
		}
		r.mu.Unlock()

		n, err := unix.Poll(pfds, 200)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n == 0 {
			select {
			case <-r.rebuild:
			default:
			}
			continue
		}

		for _, pfd := range pfds {
			if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
				continue
			}
			fd := int(pfd.Fd)

			r.mu.Lock()
			w, isWakeup := r.wakeups[fd]
			cb, isRead := r.readCBs[fd]
			r.mu.Unlock()

			switch {
			case isWakeup:
				w.drain()
				w.callback()
			case isRead:
				cb()
			}
		}
	}
}

func (r *pollReactor) Close() error {
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()
	if active != 0 {
		return fmt.Errorf("netio: reactor close: %d handles still active", active)
	}
	return nil
}

func (r *pollReactor) closeWakeup(readFD, writeFD int) {
	r.mu.Lock()
	if _, ok := r.wakeups[readFD]; ok {
		delete(r.wakeups, readFD)
		r.active--
	}
	r.mu.Unlock()
	unix.Close(readFD)
	unix.Close(writeFD)
	r.kick()
}

// pipeWakeup rides on a self-pipe instead of an eventfd, since eventfd is
// Linux-only; poll(2) treats the pipe's read end exactly like any other
// readable fd.
type pipeWakeup struct {
	readFD, writeFD int
	reactor         *pollReactor
	callback        func()
}

func (w *pipeWakeup) Signal() error {
	_, err := unix.Write(w.writeFD, []byte{1})
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

func (w *pipeWakeup) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(w.readFD, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (w *pipeWakeup) Close() error {
	w.reactor.closeWakeup(w.readFD, w.writeFD)
	return nil
}

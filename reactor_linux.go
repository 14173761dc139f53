package netio

import (
	"encoding/binary"
	"fmt"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

// epollReactor is an epoll(7)-based Reactor, the Go-native reshaping of the
// teacher's raw epoll wrapper (epoll_linux_amd64.go, netpoll_linux_amd64.go):
// same EPOLLIN|EPOLLPRI read mask, same EPOLL_CTL_ADD/DEL vocabulary, same
// "EINTR -> Gosched and retry" wait loop. Wakeups ride on
// eventfd(2) instead of the libuv async handle the original C++ used.
type epollReactor struct {
	epfd            int
	eventBufferSize int

	mu      sync.Mutex
	readCBs map[int]func()
	wakeups map[int]*eventfdWakeup
	active  int
}

const reactorReadEvents = unix.EPOLLPRI | unix.EPOLLIN

func newEpollReactor(eventBufferSize int) (*epollReactor, error) {
	if eventBufferSize <= 0 {
		eventBufferSize = eventBufferFloor
	}
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	return &epollReactor{
		epfd:            fd,
		eventBufferSize: eventBufferSize,
		readCBs:         make(map[int]func()),
		wakeups:         make(map[int]*eventfdWakeup),
	}, nil
}

func newReactor(eventBufferSize int) (Reactor, error) {
	return newEpollReactor(eventBufferSize)
}

func (r *epollReactor) RegisterRead(fd int, callback func()) error {
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: reactorReadEvents}); err != nil {
		return os.NewSyscallError("epoll_ctl add", err)
	}
	r.mu.Lock()
	r.readCBs[fd] = callback
	r.active++
	r.mu.Unlock()
	return nil
}

func (r *epollReactor) Deregister(fd int) error {
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	r.mu.Lock()
	if _, ok := r.readCBs[fd]; ok {
		delete(r.readCBs, fd)
		r.active--
	}
	r.mu.Unlock()
	if err != nil {
		return os.NewSyscallError("epoll_ctl del", err)
	}
	return nil
}

func (r *epollReactor) RegisterWakeup(callback func()) (Wakeup, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, os.NewSyscallError("eventfd2", err)
	}
	w := &eventfdWakeup{fd: fd, reactor: r, callback: callback}

	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: reactorReadEvents}); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("epoll_ctl add", err)
	}

	r.mu.Lock()
	r.wakeups[fd] = w
	r.active++
	r.mu.Unlock()
	return w, nil
}

func (r *epollReactor) Run() error {
	events := make([]unix.EpollEvent, r.eventBufferSize)
	for {
		r.mu.Lock()
		active := r.active
		r.mu.Unlock()
		if active == 0 {
			return nil
		}

		n, err := unix.EpollWait(r.epfd, events, -1)
		if n < 0 && err == unix.EINTR {
			runtime.Gosched()
			continue
		}
		if err != nil {
			return os.NewSyscallError("epoll_wait", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)

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

func (r *epollReactor) Close() error {
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()
	if active != 0 {
		return fmt.Errorf("netio: reactor close: %d handles still active", active)
	}
	return os.NewSyscallError("close", unix.Close(r.epfd))
}

func (r *epollReactor) closeWakeup(fd int) error {
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	r.mu.Lock()
	if _, ok := r.wakeups[fd]; ok {
		delete(r.wakeups, fd)
		r.active--
	}
	r.mu.Unlock()
	if cerr := unix.Close(fd); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return os.NewSyscallError("eventfd close", err)
	}
	return nil
}

type eventfdWakeup struct {
	fd       int
	reactor  *epollReactor
	callback func()
}

func (w *eventfdWakeup) Signal() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(w.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return os.NewSyscallError("eventfd write", err)
	}
	return nil
}

func (w *eventfdWakeup) drain() {
	var buf [8]byte
	unix.Read(w.fd, buf[:])
}

func (w *eventfdWakeup) Close() error {
	return w.reactor.closeWakeup(w.fd)
}

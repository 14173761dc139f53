//go:build windows

package netio

import "errors"

// newReactor has no Windows implementation. IOCP support would need its own
// reactor (the shape momentics-hioload-ws's reactor_windows.go/iocp_reactor.go
// show), which is out of scope here; this loop ships for the epoll/poll
// targets the teacher and the rest of the pack actually run on.
func newReactor(eventBufferSize int) (Reactor, error) {
	return nil, errors.New("netio: windows reactor not implemented")
}

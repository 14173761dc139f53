package netio

import (
	"errors"
	"net"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// isClosedConnError reports whether err is the expected result of reading
// from a socket that AsyncClose already closed, so callers can skip logging
// the routine case.
func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// connFD extracts the connection's underlying file descriptor without
// duplicating it, the way momentics-hioload-ws's examples/reactor_echo
// getFD does via SyscallConn/raw.Control. conn.File() would hand back a
// dup'd fd wrapped in a new *os.File; letting that *os.File go out of scope
// leaves its GC finalizer to close the dup at an unpredictable time, which
// would pull the rug out from under whatever's registered with the reactor.
// The fd returned here is only ever registered for readiness and tuned with
// socket options — it must never be unix.Close'd directly, since it's the
// same fd net.UDPConn owns and closes via conn.Close().
func connFD(conn *net.UDPConn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	if err := raw.Control(func(f uintptr) { fd = int(f) }); err != nil {
		return -1, err
	}
	return fd, nil
}

// setUDPSocketOptions tunes a UDP socket's kernel buffers, the UDP
// equivalent of the teacher's setTcpSocketOptions/setTlsSocketOptions.
func setUDPSocketOptions(fd int, bufferSize int) {
	if err := unix.SetNonblock(fd, true); err != nil {
		log.Error().Msgf("netio: socket options: O_NONBLOCK: %+v", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, bufferSize); err != nil {
		log.Error().Msgf("netio: socket options: SO_RCVBUF: %+v", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, bufferSize); err != nil {
		log.Error().Msgf("netio: socket options: SO_SNDBUF: %+v", err)
	}
}

// raiseFileLimit raises RLIMIT_NOFILE the way the teacher's monitor.go does
// for the whole process, so a loop handling many ports doesn't run out of
// descriptors. A zero max leaves the current limit untouched.
func raiseFileLimit(max uint64) {
	if max == 0 {
		return
	}
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		log.Error().Msgf("netio: getrlimit RLIMIT_NOFILE: %+v", err)
		return
	}
	if limit.Cur >= max {
		return
	}
	limit.Cur = max
	if limit.Max < max {
		limit.Max = max
	}
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		log.Error().Msgf("netio: setrlimit RLIMIT_NOFILE: %+v", err)
	}
}

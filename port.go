package netio

import "net"

// Port is the contract a concrete UDP endpoint must satisfy to be managed by
// the loop. Open and AsyncClose are only ever called from the loop thread;
// Address and Writer may be called from any thread once Open has returned
// successfully.
type Port interface {
	// Open binds/registers the port with the reactor. Must be called on the
	// loop thread only.
	Open() bool

	// Address returns the bound address. Valid after a successful Open.
	Address() *net.UDPAddr

	// AsyncClose starts closing the port. It returns true if completion will
	// be reported later via the loop's handleClosed callback, or false if the
	// port was already closed and no callback will follow.
	AsyncClose() bool
}

// PacketWriter is a packet-accepting sink, usable from any thread.
type PacketWriter interface {
	WritePacket(data []byte, addr *net.UDPAddr) error
}

// PacketWriterFunc adapts a plain function to PacketWriter.
type PacketWriterFunc func(data []byte, addr *net.UDPAddr) error

func (f PacketWriterFunc) WritePacket(data []byte, addr *net.UDPAddr) error {
	return f(data, addr)
}

// senderPort is the subset of Port implemented by ports that also expose an
// outbound writer.
type senderPort interface {
	Port
	Writer() PacketWriter
}

// PortHandle is the opaque, non-owning identifier returned to callers. It is
// valid only until RemovePort returns.
type PortHandle = Port

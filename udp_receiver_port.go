package netio

import (
	"net"

	"github.com/rs/zerolog/log"
)

// UDPReceiverConfig configures a receiver port. BindAddress is rewritten to
// the actually bound address on success (spec.md §3/§4.1); a zero port
// means kernel-chosen.
type UDPReceiverConfig struct {
	BindAddress *net.UDPAddr
}

// udpReceiverPort is the concrete Port the add-receiver handler creates.
// Open/AsyncClose are only ever invoked from the loop thread, matching
// Port's contract; incoming datagrams are delivered to writer from the
// reactor's Run goroutine, which is also the loop thread.
type udpReceiverPort struct {
	loop        *EventLoop
	writer      PacketWriter
	pool        BufferPool
	bindAddress *net.UDPAddr

	conn *net.UDPConn
	fd   int
	addr *net.UDPAddr
}

func newUDPReceiverPort(loop *EventLoop, bindAddress *net.UDPAddr, writer PacketWriter, pool BufferPool) *udpReceiverPort {
	return &udpReceiverPort{loop: loop, bindAddress: bindAddress, writer: writer, pool: pool}
}

func (p *udpReceiverPort) Open() bool {
	conn, err := net.ListenUDP("udp", p.bindAddress)
	if err != nil {
		log.Error().Msgf("netio: receiver %s: %v: %+v", p.bindAddress, errBindFailed, err)
		return false
	}

	fd, err := connFD(conn)
	if err != nil {
		log.Error().Msgf("netio: can't get fd for receiver %s: %+v", p.bindAddress, err)
		conn.Close()
		return false
	}
	setUDPSocketOptions(fd, p.loop.config.SocketBufferSize)

	if err := p.loop.reactor.RegisterRead(fd, p.onReadable); err != nil {
		log.Error().Msgf("netio: can't register receiver %s with reactor: %+v", p.bindAddress, err)
		conn.Close()
		return false
	}

	p.conn = conn
	p.fd = fd
	p.addr = conn.LocalAddr().(*net.UDPAddr)
	return true
}

func (p *udpReceiverPort) Address() *net.UDPAddr {
	return p.addr
}

func (p *udpReceiverPort) onReadable() {
	buf := p.pool.Get()
	n, addr, err := p.conn.ReadFromUDP(buf)
	if err != nil {
		if !isClosedConnError(err) {
			log.Error().Msgf("netio: receiver %s: read error: %+v", p.addr, err)
		}
		p.pool.Put(buf)
		return
	}
	if err := p.writer.WritePacket(buf[:n], addr); err != nil {
		log.Error().Msgf("netio: receiver %s: delivery to writer failed: %+v", p.addr, err)
	}
	p.pool.Put(buf)
}

func (p *udpReceiverPort) AsyncClose() bool {
	if p.conn == nil {
		return false
	}
	if err := p.loop.reactor.Deregister(p.fd); err != nil {
		log.Error().Msgf("netio: receiver %s: deregister failed: %+v", p.addr, err)
	}
	if err := p.conn.Close(); err != nil {
		log.Error().Msgf("netio: receiver %s: close failed: %+v", p.addr, err)
	}
	p.conn = nil
	go p.loop.handleClosed(p)
	return true
}

package netio

import (
	"net"

	"github.com/rs/zerolog/log"
)

// UDPSenderConfig configures a sender port. BindAddress is rewritten to the
// actually bound local address on success.
type UDPSenderConfig struct {
	BindAddress *net.UDPAddr
}

// udpSenderPort is the concrete Port the add-sender handler creates. Its
// Writer is safe to call from any thread once Open has succeeded — writes go
// straight to the kernel via net.UDPConn.WriteToUDP, which is itself safe
// for concurrent use.
type udpSenderPort struct {
	loop        *EventLoop
	bindAddress *net.UDPAddr

	conn *net.UDPConn
	fd   int
	addr *net.UDPAddr
}

func newUDPSenderPort(loop *EventLoop, bindAddress *net.UDPAddr) *udpSenderPort {
	return &udpSenderPort{loop: loop, bindAddress: bindAddress}
}

func (p *udpSenderPort) Open() bool {
	conn, err := net.ListenUDP("udp", p.bindAddress)
	if err != nil {
		log.Error().Msgf("netio: sender %s: %v: %+v", p.bindAddress, errBindFailed, err)
		return false
	}

	fd, err := connFD(conn)
	if err != nil {
		log.Error().Msgf("netio: can't get fd for sender %s: %+v", p.bindAddress, err)
		conn.Close()
		return false
	}
	setUDPSocketOptions(fd, p.loop.config.SocketBufferSize)

	p.conn = conn
	p.fd = fd
	p.addr = conn.LocalAddr().(*net.UDPAddr)
	return true
}

func (p *udpSenderPort) Address() *net.UDPAddr {
	return p.addr
}

func (p *udpSenderPort) Writer() PacketWriter {
	return p
}

func (p *udpSenderPort) WritePacket(data []byte, addr *net.UDPAddr) error {
	_, err := p.conn.WriteToUDP(data, addr)
	return err
}

func (p *udpSenderPort) AsyncClose() bool {
	if p.conn == nil {
		return false
	}
	if err := p.conn.Close(); err != nil {
		log.Error().Msgf("netio: sender %s: close failed: %+v", p.addr, err)
	}
	p.conn = nil
	go p.loop.handleClosed(p)
	return true
}

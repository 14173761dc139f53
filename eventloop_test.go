package netio

import (
	"net"
	"testing"
	"time"
)

func loopbackAddr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

func newTestLoop(t *testing.T) *EventLoop {
	t.Helper()
	loop := NewEventLoop(DefaultEventLoopConfig("test"))
	if !loop.Valid() {
		t.Fatalf("event loop construction failed")
	}
	t.Cleanup(func() {
		if err := loop.Close(); err != nil {
			t.Fatalf("close: %+v", err)
		}
	})
	return loop
}

func noopWriter() PacketWriter {
	return PacketWriterFunc(func(data []byte, addr *net.UDPAddr) error { return nil })
}

func TestReceiverBindEphemeralThenRemove(t *testing.T) {
	loop := newTestLoop(t)

	cfg := &UDPReceiverConfig{BindAddress: loopbackAddr(0)}
	handle := loop.AddUDPReceiver(cfg, noopWriter())
	if handle == nil {
		t.Fatalf("add_udp_receiver returned nil")
	}
	if cfg.BindAddress.Port == 0 {
		t.Fatalf("bind_address port was not rewritten")
	}
	if got := loop.NumPorts(); got != 1 {
		t.Fatalf("num_ports = %d, want 1", got)
	}

	loop.RemovePort(handle)
	if got := loop.NumPorts(); got != 0 {
		t.Fatalf("num_ports after remove = %d, want 0", got)
	}
}

func TestSenderWriterPublication(t *testing.T) {
	loop := newTestLoop(t)

	received := make(chan []byte, 1)
	receiverWriter := PacketWriterFunc(func(data []byte, addr *net.UDPAddr) error {
		buf := append([]byte(nil), data...)
		received <- buf
		return nil
	})

	receiver := loop.AddUDPReceiver(&UDPReceiverConfig{BindAddress: loopbackAddr(0)}, receiverWriter)
	if receiver == nil {
		t.Fatalf("add_udp_receiver returned nil")
	}

	senderCfg := &UDPSenderConfig{BindAddress: loopbackAddr(0)}
	senderHandle, writer := loop.AddUDPSender(senderCfg)
	if senderHandle == nil || writer == nil {
		t.Fatalf("add_udp_sender returned nil handle or writer")
	}

	payload := []byte("hello")
	if err := writer.WritePacket(payload, receiver.Address()); err != nil {
		t.Fatalf("write_packet: %+v", err)
	}

	select {
	case got := <-received:
		if string(got) != string(payload) {
			t.Fatalf("delivered payload = %q, want %q", got, payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for delivery")
	}
}

func TestBindConflict(t *testing.T) {
	loop := newTestLoop(t)

	first := loop.AddUDPReceiver(&UDPReceiverConfig{BindAddress: loopbackAddr(0)}, noopWriter())
	if first == nil {
		t.Fatalf("first add_udp_receiver returned nil")
	}
	fixedAddr := first.Address()

	second := loop.AddUDPReceiver(&UDPReceiverConfig{BindAddress: loopbackAddr(fixedAddr.Port)}, noopWriter())
	if second != nil {
		t.Fatalf("second add_udp_receiver on a bound port unexpectedly succeeded")
	}
	if got := loop.NumPorts(); got != 1 {
		t.Fatalf("num_ports = %d, want 1", got)
	}
}

func TestResolveEndpointAddressLiteralIP(t *testing.T) {
	loop := newTestLoop(t)

	addr, ok := loop.ResolveEndpointAddress("rtp://127.0.0.1:5000")
	if !ok {
		t.Fatalf("resolve of a literal IP failed")
	}
	if addr.Port != 5000 || !addr.IP.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Fatalf("resolved address = %+v, want 127.0.0.1:5000", addr)
	}
}

func TestResolveEndpointAddressFailure(t *testing.T) {
	loop := newTestLoop(t)

	_, ok := loop.ResolveEndpointAddress("rtp://not.a.valid.hostname.invalid.:5000")
	if ok {
		t.Fatalf("resolve of an unresolvable host unexpectedly succeeded")
	}

	handle := loop.AddUDPReceiver(&UDPReceiverConfig{BindAddress: loopbackAddr(0)}, noopWriter())
	if handle == nil {
		t.Fatalf("loop unusable after a resolve failure")
	}
}

func TestShutdownWithLivePorts(t *testing.T) {
	loop := NewEventLoop(DefaultEventLoopConfig("test-shutdown"))
	if !loop.Valid() {
		t.Fatalf("event loop construction failed")
	}

	for i := 0; i < 3; i++ {
		if h := loop.AddUDPReceiver(&UDPReceiverConfig{BindAddress: loopbackAddr(0)}, noopWriter()); h == nil {
			t.Fatalf("add_udp_receiver %d returned nil", i)
		}
	}
	if got := loop.NumPorts(); got != 3 {
		t.Fatalf("num_ports = %d, want 3", got)
	}

	if err := loop.Close(); err != nil {
		t.Fatalf("close with live ports: %+v", err)
	}
}

func TestRemovePortUnknownHandlePanics(t *testing.T) {
	loop := newTestLoop(t)

	other := NewEventLoop(DefaultEventLoopConfig("other"))
	defer other.Close()
	foreign := other.AddUDPReceiver(&UDPReceiverConfig{BindAddress: loopbackAddr(0)}, noopWriter())
	if foreign == nil {
		t.Fatalf("add_udp_receiver on other loop returned nil")
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("remove_port with an unknown handle did not panic")
		}
	}()
	loop.RemovePort(foreign)
}

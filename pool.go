package netio

import "github.com/valyala/bytebufferpool"

// BufferPool hands out and reclaims read buffers for UDP ports. It is one of
// the injected, opaque allocators spec.md §1/§3 calls out as out of scope for
// this core — callers may supply their own; the default wraps
// bytebufferpool, a dependency the pack carries (entertainment-venue-rcproxy)
// but never itself wires up.
type BufferPool interface {
	Get() []byte
	Put(buf []byte)
}

type bytebufferPool struct {
	pool bytebufferpool.Pool
	size int
}

// NewBufferPool returns the default BufferPool, sized for one UDP datagram.
func NewBufferPool(datagramSize int) BufferPool {
	return &bytebufferPool{size: datagramSize}
}

func (p *bytebufferPool) Get() []byte {
	bb := p.pool.Get()
	if cap(bb.B) < p.size {
		bb.B = make([]byte, p.size)
	} else {
		bb.B = bb.B[:p.size]
	}
	return bb.B
}

func (p *bytebufferPool) Put(buf []byte) {
	bb := &bytebufferpool.ByteBuffer{B: buf}
	p.pool.Put(bb)
}

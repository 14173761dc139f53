package netio

import "testing"

func TestBufferPoolGetSize(t *testing.T) {
	pool := NewBufferPool(1500)
	buf := pool.Get()
	if len(buf) != 1500 {
		t.Fatalf("len(buf) = %d, want 1500", len(buf))
	}
	pool.Put(buf)
}

func TestBufferPoolReturnedBufferIsReusable(t *testing.T) {
	pool := NewBufferPool(64)

	first := pool.Get()
	pool.Put(first)

	second := pool.Get()
	if len(second) != 64 {
		t.Fatalf("len(second) = %d, want 64", len(second))
	}
	pool.Put(second)
}

package netio

import (
	"net"
	"testing"
)

type fakePort struct{ id int }

func (f *fakePort) Open() bool            { return true }
func (f *fakePort) Address() *net.UDPAddr { return nil }
func (f *fakePort) AsyncClose() bool      { return false }

func TestPortSetAddRemoveContains(t *testing.T) {
	s := newPortSet()
	a, b, c := &fakePort{1}, &fakePort{2}, &fakePort{3}

	s.add(a)
	s.add(b)
	s.add(c)
	if got := s.len(); got != 3 {
		t.Fatalf("len = %d, want 3", got)
	}
	if !s.contains(b) {
		t.Fatalf("contains(b) = false, want true")
	}

	if !s.remove(b) {
		t.Fatalf("remove(b) = false, want true")
	}
	if s.contains(b) {
		t.Fatalf("contains(b) after remove = true, want false")
	}
	if got := s.len(); got != 2 {
		t.Fatalf("len after remove = %d, want 2", got)
	}

	if s.remove(b) {
		t.Fatalf("remove(b) a second time = true, want false")
	}
}

func TestPortSetAddIsIdempotent(t *testing.T) {
	s := newPortSet()
	a := &fakePort{1}
	s.add(a)
	s.add(a)
	if got := s.len(); got != 1 {
		t.Fatalf("len after duplicate add = %d, want 1", got)
	}
}

func TestPortSetFrontDrain(t *testing.T) {
	s := newPortSet()
	ports := []*fakePort{{1}, {2}, {3}}
	for _, p := range ports {
		s.add(p)
	}

	drained := 0
	for p := s.front(); p != nil; p = s.front() {
		s.remove(p)
		drained++
	}
	if drained != len(ports) {
		t.Fatalf("drained %d ports, want %d", drained, len(ports))
	}
	if s.front() != nil {
		t.Fatalf("front() on empty set = non-nil")
	}
}

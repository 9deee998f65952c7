package alloc

import "sync"

// Simple backs regions with Go slices. Budget, when positive, limits
// total bytes handed out, which is how tests model a tiny device.
// Poison, when non-zero, is written over fresh regions so callers can't
// rely on memory arriving zeroed.
type Simple struct {
	sync.Mutex
	space
	Poison byte
}

func NewSimple(origin uint32, budget int) *Simple {
	return &Simple{space: space{Origin: origin, Budget: budget}}
}

func (s *Simple) Obtain(n int) (*Region, error) {
	s.Lock()
	defer s.Unlock()
	addr, err := s.reserve(n)
	if err != nil {
		return nil, err
	}
	mem := make([]byte, n)
	if s.Poison != 0 {
		for i := range mem {
			mem[i] = s.Poison
		}
	}
	return &Region{Addr: addr, Mem: mem}, nil
}

func (s *Simple) Free(r *Region) error {
	s.Lock()
	defer s.Unlock()
	if err := s.release(r.Addr); err != nil {
		return err
	}
	r.Mem = nil
	return nil
}

func (s *Simple) Live() int {
	s.Lock()
	defer s.Unlock()
	return s.space.Live()
}

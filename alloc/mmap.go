//go:build unix

package alloc

import (
	"sync"

	"golang.org/x/sys/unix"
)

// Mmap backs every region with its own anonymous private mapping.
type Mmap struct {
	sync.Mutex
	space
	maps map[uint32][]byte
}

func NewMmap(origin uint32, budget int) *Mmap {
	return &Mmap{space: space{Origin: origin, Budget: budget}}
}

func (m *Mmap) Obtain(n int) (*Region, error) {
	m.Lock()
	defer m.Unlock()
	addr, err := m.reserve(n)
	if err != nil {
		return nil, err
	}
	page := unix.Getpagesize()
	data, err := unix.Mmap(-1, 0, (n+page-1)/page*page, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		m.release(addr)
		return nil, err
	}
	if m.maps == nil {
		m.maps = make(map[uint32][]byte)
	}
	m.maps[addr] = data
	return &Region{Addr: addr, Mem: data[:n:n]}, nil
}

func (m *Mmap) Free(r *Region) error {
	m.Lock()
	defer m.Unlock()
	data, ok := m.maps[r.Addr]
	if !ok {
		return m.release(r.Addr)
	}
	if err := unix.Munmap(data); err != nil {
		return err
	}
	delete(m.maps, r.Addr)
	r.Mem = nil
	return m.release(r.Addr)
}

func (m *Mmap) Live() int {
	m.Lock()
	defer m.Unlock()
	return m.space.Live()
}

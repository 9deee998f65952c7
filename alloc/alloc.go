// Package alloc is the raw memory facility heaps get their regions from.
//
// Regions live in an emulated 32-bit address space: every facility hands
// out addresses starting at its Origin, so segments stay plain integers
// no matter where the backing memory really is.
package alloc

import (
	"errors"
	"fmt"
)

const DefaultOrigin = 0x100

const align = 4

var (
	ErrBudget        = errors.New("alloc: budget exhausted")
	ErrUnknownRegion = errors.New("alloc: unknown region")
	ErrBadSize       = errors.New("alloc: bad region size")
)

// Region is a contiguous addressable byte range. Mem[i] is the byte at Addr+i.
type Region struct {
	Addr uint32
	Mem  []byte
}

func (r *Region) Size() int {
	return len(r.Mem)
}

func (r *Region) End() uint32 {
	return r.Addr + uint32(len(r.Mem))
}

type Facility interface {
	Obtain(n int) (*Region, error)
	Free(r *Region) error
}

// space assigns addresses to regions by bumping an offset.
// Freeing the last region moves the offset back.
type space struct {
	Origin     uint32
	Budget     int
	CurOff     uint32
	TotalAlloc int

	live map[uint32]uint32
}

func (s *space) reserve(n int) (uint32, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrBadSize, n)
	}
	sz := (n + align - 1) &^ (align - 1)
	if s.Budget > 0 && s.TotalAlloc+sz > s.Budget {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrBudget, sz, s.Budget-s.TotalAlloc)
	}
	if s.Origin == 0 {
		s.Origin = DefaultOrigin
	}
	if s.live == nil {
		s.live = make(map[uint32]uint32)
	}
	addr := s.Origin + s.CurOff
	s.CurOff += uint32(sz)
	s.TotalAlloc += sz
	s.live[addr] = uint32(sz)
	return addr, nil
}

func (s *space) release(addr uint32) error {
	sz, ok := s.live[addr]
	if !ok {
		return fmt.Errorf("%w: %#x", ErrUnknownRegion, addr)
	}
	delete(s.live, addr)
	s.TotalAlloc -= int(sz)
	if addr+sz == s.Origin+s.CurOff {
		s.CurOff = addr - s.Origin
	}
	return nil
}

// Live is number of regions not yet freed.
func (s *space) Live() int {
	return len(s.live)
}

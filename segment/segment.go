package segment

import "fmt"

// Segment is an address range handed out by a heap: Addr is absolute,
// Size is a byte count. Zero Size is the empty segment.
type Segment struct {
	Addr uint32
	Size uint16
}

var Empty = Segment{}

func (s Segment) IsEmpty() bool {
	return s.Size == 0
}

// End is the first address past s. It wraps for segments touching the top
// of the address space, containment checks use end instead.
func (s Segment) End() uint32 {
	return s.Addr + uint32(s.Size)
}

func (s Segment) end() uint64 {
	return uint64(s.Addr) + uint64(s.Size)
}

// IsInside reports whether s lies entirely within outer.
// Empty segment is never inside anything.
func (s Segment) IsInside(outer Segment) bool {
	if s.IsEmpty() || outer.IsEmpty() {
		return false
	}
	return s.Addr >= outer.Addr && s.end() <= outer.end()
}

func (s Segment) Overlaps(o Segment) bool {
	if s.IsEmpty() || o.IsEmpty() {
		return false
	}
	return uint64(s.Addr) < o.end() && uint64(o.Addr) < s.end()
}

func (s Segment) String() string {
	return fmt.Sprintf("[%#x, +%d)", s.Addr, s.Size)
}

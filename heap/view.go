package heap

import (
	"fmt"
	"reflect"
	"strings"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/modern-go/reflect2"

	"github.com/funny-falcon/bitheap/segment"
)

// Bytes gives access to segment's memory.
func (h *Heap) Bytes(seg segment.Segment) ([]byte, error) {
	if !h.ready {
		return nil, ErrNotReady
	}
	if !h.isOurs(seg) {
		return nil, fmt.Errorf("%w: %v", ErrNotOurs, seg)
	}
	idx := int(seg.Addr - h.data.Addr)
	end := idx + int(seg.Size)
	return h.data.Mem[idx:end:end], nil
}

// Get points *ptr at segment's first byte. ptr must be **T, where T holds
// no Go pointers and fits the segment.
//
//	var hdr *Header
//	err := h.Get(seg, &hdr)
func (h *Heap) Get(seg segment.Segment, ptr interface{}) error {
	mem, err := h.Bytes(seg)
	if err != nil {
		return err
	}
	typ := reflect2.TypeOf(ptr)
	if typ == nil || typ.Kind() != reflect.Ptr || typ.Type1().Elem().Kind() != reflect.Ptr {
		return fmt.Errorf("%w: %T is not a pointer to pointer", ErrView, ptr)
	}
	if typ.IsNil(ptr) {
		return fmt.Errorf("%w: nil %T", ErrView, ptr)
	}
	elem := typ.Type1().Elem().Elem()
	if elem.Size() > uintptr(len(mem)) {
		return fmt.Errorf("%w: %s needs %d bytes, segment has %d", ErrView, elem, elem.Size(), len(mem))
	}
	*(*unsafe.Pointer)(reflect2.PtrOf(ptr)) = unsafe.Pointer(&mem[0])
	return nil
}

// Occupancy is a snapshot of used byte indices, zero-based.
func (h *Heap) Occupancy() *roaring.Bitmap {
	rb := roaring.New()
	if !h.ready {
		return rb
	}
	limit := h.limit()
	for cur := uint16(0); cur < limit; {
		start := h.bm.NextSet(cur, limit)
		if start == limit {
			break
		}
		end := h.bm.NextClear(start, limit)
		rb.AddRange(uint64(start), uint64(end))
		cur = end
	}
	return rb
}

const mapWidth = 64

// Map draws the bitmap, '#' for used byte and '.' for free one.
func (h *Heap) Map() string {
	if !h.ready {
		return ""
	}
	var sb strings.Builder
	limit := int(h.limit())
	sb.Grow(limit + limit/mapWidth + 1)
	for i := 0; i < limit; i++ {
		if h.bm.Has(uint16(i)) {
			sb.WriteByte('#')
		} else {
			sb.WriteByte('.')
		}
		if i%mapWidth == mapWidth-1 || i == limit-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

type Stats struct {
	Capacity      int     `json:"capacity"`
	Base          uint32  `json:"base"`
	Used          int     `json:"used"`
	Free          int     `json:"free"`
	LargestFree   int     `json:"largest_free"`
	FreeSpans     int     `json:"free_spans"`
	Fragmentation float64 `json:"fragmentation"`
	Live          int     `json:"live"`
	Reserves      uint64  `json:"reserves"`
	Releases      uint64  `json:"releases"`
	ReserveFails  uint64  `json:"reserve_fails"`
	ReleaseFails  uint64  `json:"release_fails"`
}

func (h *Heap) Stats() Stats {
	if !h.ready {
		return Stats{}
	}
	limit := h.limit()
	st := Stats{
		Capacity:     int(limit),
		Base:         h.data.Addr,
		Used:         h.bm.Count(limit),
		Live:         h.cnt.live,
		Reserves:     h.cnt.reserves,
		Releases:     h.cnt.releases,
		ReserveFails: h.cnt.reserveFails,
		ReleaseFails: h.cnt.releaseFails,
	}
	st.Free = st.Capacity - st.Used
	for cur := uint16(0); cur < limit; {
		start := h.bm.NextClear(cur, limit)
		if start == limit {
			break
		}
		end := h.bm.NextSet(start, limit)
		st.FreeSpans++
		if ln := int(end - start); ln > st.LargestFree {
			st.LargestFree = ln
		}
		cur = end
	}
	if st.Free > 0 {
		st.Fragmentation = 1 - float64(st.LargestFree)/float64(st.Free)
	}
	return st
}

// Package heap is a bitmap heap: one pre-obtained data region carved into
// variable-size segments, with one occupancy bit per managed byte.
//
// Speed is not the goal, neither is footprint (overhead is N/8 bytes for
// N managed bytes). The goal is resilience to fragmentation: every
// reservation is best-fit over all free spans.
//
// Heap does no locking. Callers serialize access themselves.
package heap

import (
	"errors"
	"fmt"
	"math"

	"github.com/funny-falcon/bitheap/alloc"
	"github.com/funny-falcon/bitheap/internal/bitmap"
	"github.com/funny-falcon/bitheap/segment"
)

// MaxCapacity keeps every bit index within uint16.
const MaxCapacity = math.MaxUint16 / bitmap.BitsInByte

type Heap struct {
	fa  alloc.Facility
	log Logger

	data *alloc.Region
	bits *alloc.Region
	bm   bitmap.Bitmap

	ready  bool
	closed bool

	// size of previous reservation request, drives placement side
	lastSize uint16

	cnt counters
}

type counters struct {
	live         int
	reserves     uint64
	releases     uint64
	reserveFails uint64
	releaseFails uint64
}

func New(fa alloc.Facility, log Logger) *Heap {
	if log == nil {
		log = NopLogger{}
	}
	return &Heap{fa: fa, log: log}
}

// Init obtains data region of capacity bytes and its bitmap.
// On failure nothing stays allocated.
func (h *Heap) Init(capacity int) error {
	switch {
	case h.closed:
		return ErrClosed
	case h.ready:
		return ErrReady
	case capacity <= 0 || capacity > MaxCapacity:
		return fmt.Errorf("%w: %d (max %d)", ErrCapacity, capacity, MaxCapacity)
	}

	data, err := h.fa.Obtain(capacity)
	if err != nil {
		h.log.Logf("heap: no memory for %d data bytes: %v", capacity, err)
		return fmt.Errorf("%w: data: %w", ErrNoMemory, err)
	}

	bits, err := h.fa.Obtain(bitmap.Size(capacity))
	if err != nil {
		h.log.Logf("heap: no memory for %d bitmap bytes: %v", bitmap.Size(capacity), err)
		if ferr := h.fa.Free(data); ferr != nil {
			return errors.Join(fmt.Errorf("%w: bitmap: %w", ErrNoMemory, err), ferr)
		}
		return fmt.Errorf("%w: bitmap: %w", ErrNoMemory, err)
	}

	h.data, h.bits = data, bits
	h.bm = bitmap.Bitmap(bits.Mem)
	h.bm.Reset()
	h.lastSize = 0
	h.cnt = counters{}
	h.ready = true
	h.log.Logf("heap: ready, %d bytes at %#x", capacity, data.Addr)
	return nil
}

func (h *Heap) IsReady() bool {
	return h.ready
}

// Close gives both regions back to the facility. Heap can't be used after.
func (h *Heap) Close() error {
	if !h.ready {
		h.closed = true
		return nil
	}
	h.ready, h.closed = false, true
	err := errors.Join(h.fa.Free(h.bits), h.fa.Free(h.data))
	h.data, h.bits, h.bm = nil, nil, nil
	h.log.Logf("heap: closed")
	return err
}

func (h *Heap) Base() uint32 {
	if !h.ready {
		return 0
	}
	return h.data.Addr
}

func (h *Heap) Capacity() int {
	if !h.ready {
		return 0
	}
	return h.data.Size()
}

func (h *Heap) limit() uint16 {
	return uint16(h.data.Size())
}

func (h *Heap) region() segment.Segment {
	return segment.Segment{Addr: h.data.Addr, Size: h.limit()}
}

// Reserve returns zeroed segment of given size.
// Zero size gives empty segment and doesn't touch the bitmap.
func (h *Heap) Reserve(size uint16) (segment.Segment, error) {
	if size == 0 {
		return segment.Empty, nil
	}
	if !h.ready {
		return segment.Empty, ErrNotReady
	}

	idx, ok := h.insertIndex(size)
	if !ok {
		h.cnt.reserveFails++
		h.log.Logf("heap: no span for %d bytes", size)
		return segment.Empty, fmt.Errorf("%w: %d bytes", ErrNoFit, size)
	}

	if !h.bm.IsSolid(idx, size, false) {
		h.cnt.reserveFails++
		h.log.Logf("heap: span [%d, +%d) is not free", idx, size)
		return segment.Empty, fmt.Errorf("%w: reserve at %d, %d bytes", ErrCorrupt, idx, size)
	}

	h.bm.SetRange(idx, size, true)
	clear(h.data.Mem[idx : int(idx)+int(size)])

	seg := segment.Segment{Addr: h.data.Addr + uint32(idx), Size: size}
	h.cnt.live++
	h.cnt.reserves++
	h.log.Logf("heap: reserved %v", seg)
	return seg, nil
}

// insertIndex finds best-fit span for size. Span smaller than previous
// request is filled from its right edge, others from the left one.
func (h *Heap) insertIndex(size uint16) (uint16, bool) {
	limit := h.limit()
	var bestIdx, bestLen uint16
	found := false
	for cur := uint16(0); cur < limit; {
		start := h.bm.NextClear(cur, limit)
		if start == limit {
			break
		}
		end := h.bm.NextSet(start, limit)
		if ln := end - start; ln >= size && (!found || ln < bestLen) {
			bestIdx, bestLen, found = start, ln, true
			if ln == size {
				break
			}
		}
		cur = end
	}

	last := h.lastSize
	h.lastSize = size

	if !found {
		return 0, false
	}
	if bestLen < last {
		return bestIdx + bestLen - size, true
	}
	return bestIdx, true
}

func (h *Heap) isOurs(seg segment.Segment) bool {
	return seg.IsInside(h.region())
}

// Release frees segment and zeroes it, so caller's handle goes invalid.
// Releasing an empty segment is an error, unlike reserving one.
func (h *Heap) Release(seg *segment.Segment) error {
	if seg.IsEmpty() {
		seg.Addr = 0
		return ErrEmpty
	}
	if !h.ready {
		return ErrNotReady
	}
	if !h.isOurs(*seg) {
		h.cnt.releaseFails++
		h.log.Logf("heap: release of foreign %v", *seg)
		return fmt.Errorf("%w: %v", ErrNotOurs, *seg)
	}

	idx := uint16(seg.Addr - h.data.Addr)

	// checked before zeroing: double free must not wipe a live neighbour
	if !h.bm.IsSolid(idx, seg.Size, true) {
		h.cnt.releaseFails++
		h.log.Logf("heap: release of not reserved %v", *seg)
		return fmt.Errorf("%w: release %v", ErrCorrupt, *seg)
	}

	clear(h.data.Mem[idx : int(idx)+int(seg.Size)])
	h.bm.SetRange(idx, seg.Size, false)

	h.log.Logf("heap: released %v", *seg)
	*seg = segment.Empty
	h.cnt.live--
	h.cnt.releases++
	return nil
}

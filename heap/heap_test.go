package heap_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funny-falcon/bitheap/alloc"
	"github.com/funny-falcon/bitheap/heap"
	"github.com/funny-falcon/bitheap/segment"
)

const origin = 0x100

func newHeap(t *testing.T, capacity int) (*heap.Heap, *alloc.Simple) {
	t.Helper()
	fa := alloc.NewSimple(origin, 0)
	fa.Poison = 0xAA
	h := heap.New(fa, nil)
	require.NoError(t, h.Init(capacity))
	t.Cleanup(func() { h.Close() })
	return h, fa
}

func reserve(t *testing.T, h *heap.Heap, size uint16) segment.Segment {
	t.Helper()
	seg, err := h.Reserve(size)
	require.NoError(t, err)
	require.Equal(t, size, seg.Size)
	return seg
}

func TestInitCapacity(t *testing.T) {
	fa := alloc.NewSimple(origin, 0)
	h := heap.New(fa, nil)

	require.ErrorIs(t, h.Init(heap.MaxCapacity+1), heap.ErrCapacity)
	require.ErrorIs(t, h.Init(0), heap.ErrCapacity)
	require.ErrorIs(t, h.Init(-1), heap.ErrCapacity)
	require.False(t, h.IsReady())
	require.Equal(t, 0, fa.Live())

	require.Equal(t, 8191, heap.MaxCapacity)
	require.NoError(t, h.Init(heap.MaxCapacity))
	require.True(t, h.IsReady())
	require.Equal(t, heap.MaxCapacity, h.Capacity())
	require.Equal(t, uint32(origin), h.Base())
	require.Equal(t, 2, fa.Live())

	require.ErrorIs(t, h.Init(10), heap.ErrReady)
	require.Equal(t, 2, fa.Live())
}

func TestInitNoMemory(t *testing.T) {
	t.Run("data", func(t *testing.T) {
		fa := alloc.NewSimple(origin, 64)
		h := heap.New(fa, nil)
		err := h.Init(100)
		require.ErrorIs(t, err, heap.ErrNoMemory)
		require.ErrorIs(t, err, alloc.ErrBudget)
		require.False(t, h.IsReady())
		require.Equal(t, 0, fa.Live())
	})

	t.Run("bitmap rolls back data", func(t *testing.T) {
		fa := alloc.NewSimple(origin, 1000)
		h := heap.New(fa, nil)
		err := h.Init(1000)
		require.ErrorIs(t, err, heap.ErrNoMemory)
		require.False(t, h.IsReady())
		require.Equal(t, 0, fa.Live())
		require.Equal(t, 0, fa.TotalAlloc)

		// smaller heap fits the same budget
		require.NoError(t, h.Init(800))
		require.True(t, h.IsReady())
	})
}

func TestNotReady(t *testing.T) {
	h := heap.New(alloc.NewSimple(origin, 0), nil)

	_, err := h.Reserve(5)
	require.ErrorIs(t, err, heap.ErrNotReady)

	seg := segment.Segment{Addr: origin, Size: 5}
	require.ErrorIs(t, h.Release(&seg), heap.ErrNotReady)
	require.Equal(t, segment.Segment{Addr: origin, Size: 5}, seg)

	seg, err = h.Reserve(0)
	require.NoError(t, err)
	require.True(t, seg.IsEmpty())

	require.Equal(t, heap.Stats{}, h.Stats())
	require.Equal(t, "", h.Map())
	require.True(t, h.Occupancy().IsEmpty())
}

func TestScenario(t *testing.T) {
	h, _ := newHeap(t, 1000)

	first := reserve(t, h, 100)
	require.Equal(t, uint32(origin), first.Addr)
	mem, err := h.Bytes(first)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 100), mem)

	second := reserve(t, h, 800)
	require.Equal(t, uint32(origin+100), second.Addr)

	_, err = h.Reserve(200)
	require.ErrorIs(t, err, heap.ErrNoFit)

	require.NoError(t, h.Release(&first))
	require.Equal(t, segment.Empty, first)

	again := reserve(t, h, 100)
	require.Equal(t, uint32(origin), again.Addr)

	st := h.Stats()
	assert.Equal(t, 1000, st.Capacity)
	assert.Equal(t, 900, st.Used)
	assert.Equal(t, 100, st.Free)
	assert.Equal(t, 100, st.LargestFree)
	assert.Equal(t, 1, st.FreeSpans)
	assert.Equal(t, 2, st.Live)
	assert.Equal(t, uint64(3), st.Reserves)
	assert.Equal(t, uint64(1), st.Releases)
	assert.Equal(t, uint64(1), st.ReserveFails)
}

func TestPlacementSides(t *testing.T) {
	h, _ := newHeap(t, 100)

	a := reserve(t, h, 10)
	require.Equal(t, uint32(origin), a.Addr)
	b := reserve(t, h, 50)
	require.Equal(t, uint32(origin+10), b.Addr)

	require.NoError(t, h.Release(&a))

	// spans: [0,10) and [60,100); best fit is [0,10), shorter than 50,
	// so it is filled from the right
	c := reserve(t, h, 5)
	require.Equal(t, uint32(origin+5), c.Addr)

	// [0,5) is not shorter than previous request, so left edge
	d := reserve(t, h, 3)
	require.Equal(t, uint32(origin), d.Addr)
}

func TestBestFitTieKeepsLeftmost(t *testing.T) {
	h, _ := newHeap(t, 30)

	segs := make([]segment.Segment, 5)
	for i := range segs[:4] {
		segs[i] = reserve(t, h, 5)
	}
	segs[4] = reserve(t, h, 10)
	require.Equal(t, uint32(origin+20), segs[4].Addr)

	require.NoError(t, h.Release(&segs[3]))
	require.NoError(t, h.Release(&segs[1]))

	seg := reserve(t, h, 5)
	require.Equal(t, uint32(origin+5), seg.Addr)
	seg = reserve(t, h, 5)
	require.Equal(t, uint32(origin+15), seg.Addr)

	_, err := h.Reserve(1)
	require.ErrorIs(t, err, heap.ErrNoFit)
}

func TestBestFitPicksSmallest(t *testing.T) {
	h, _ := newHeap(t, 100)

	// holes of 20 at [0,20), 8 at [30,38), 12 at [48,60)
	hole1 := reserve(t, h, 20)
	reserve(t, h, 10)
	hole2 := reserve(t, h, 8)
	reserve(t, h, 10)
	hole3 := reserve(t, h, 12)
	reserve(t, h, 40)
	require.NoError(t, h.Release(&hole1))
	require.NoError(t, h.Release(&hole2))
	require.NoError(t, h.Release(&hole3))

	seg := reserve(t, h, 10)
	require.Equal(t, uint32(origin+50), seg.Addr, "12-byte hole is the best fit, filled from the right")

	seg = reserve(t, h, 8)
	require.Equal(t, uint32(origin+30), seg.Addr, "exact fit")
}

func TestLastSizeUpdatedOnFailure(t *testing.T) {
	h, _ := newHeap(t, 100)

	reserve(t, h, 10)
	reserve(t, h, 10)

	_, err := h.Reserve(81)
	require.ErrorIs(t, err, heap.ErrNoFit)

	// span [20,100) is 80, shorter than failed 81, so the right edge is used
	seg := reserve(t, h, 30)
	require.Equal(t, uint32(origin+70), seg.Addr)
}

func TestZeroFill(t *testing.T) {
	h, _ := newHeap(t, 64)

	seg := reserve(t, h, 20)
	mem, err := h.Bytes(seg)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 20), mem)

	for i := range mem {
		mem[i] = 0xFF
	}
	kept := seg
	require.NoError(t, h.Release(&seg))

	// hygiene: released bytes are wiped too
	mem, err = h.Bytes(kept)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 20), mem)

	seg = reserve(t, h, 30)
	mem, err = h.Bytes(seg)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 30), mem)
}

func TestReleaseNotOurs(t *testing.T) {
	h, _ := newHeap(t, 50)
	reserve(t, h, 10)
	before := h.Occupancy()

	for _, seg := range []segment.Segment{
		{Addr: origin - 1, Size: 2},
		{Addr: origin + 45, Size: 6},
		{Addr: origin + 50, Size: 1},
		{Addr: 0, Size: 1},
		{Addr: 0xFFFFFFF0, Size: 0x20},
		{Addr: 0xFFFFFFFF, Size: 0xFFFF},
	} {
		s := seg
		require.NotPanics(t, func() {
			require.ErrorIs(t, h.Release(&s), heap.ErrNotOurs, "%v", seg)
		})
		require.Equal(t, seg, s)
		require.True(t, before.Equals(h.Occupancy()))

		require.NotPanics(t, func() {
			_, err := h.Bytes(seg)
			require.ErrorIs(t, err, heap.ErrNotOurs, "%v", seg)
			var b *byte
			require.ErrorIs(t, h.Get(seg, &b), heap.ErrNotOurs, "%v", seg)
		})
	}
	require.Equal(t, uint64(6), h.Stats().ReleaseFails)
}

func TestDoubleFree(t *testing.T) {
	h, _ := newHeap(t, 50)

	seg := reserve(t, h, 10)
	copied := seg
	require.NoError(t, h.Release(&seg))
	require.ErrorIs(t, h.Release(&copied), heap.ErrCorrupt)
}

func TestReleaseHalfUsedKeepsNeighbour(t *testing.T) {
	h, _ := newHeap(t, 50)

	seg := reserve(t, h, 10)
	mem, err := h.Bytes(seg)
	require.NoError(t, err)
	for i := range mem {
		mem[i] = byte(i + 1)
	}
	before := h.Occupancy()

	bad := segment.Segment{Addr: seg.Addr + 5, Size: 10}
	require.ErrorIs(t, h.Release(&bad), heap.ErrCorrupt)
	require.True(t, before.Equals(h.Occupancy()))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, mem)
}

func TestZeroSize(t *testing.T) {
	h, _ := newHeap(t, 50)
	before := h.Occupancy()

	seg, err := h.Reserve(0)
	require.NoError(t, err)
	require.Equal(t, segment.Empty, seg)
	require.True(t, before.Equals(h.Occupancy()))

	// empty segment is never owned, releasing it fails
	require.ErrorIs(t, h.Release(&seg), heap.ErrEmpty)

	seg = segment.Segment{Addr: origin + 3}
	require.ErrorIs(t, h.Release(&seg), heap.ErrEmpty)
	require.Equal(t, segment.Empty, seg)
}

func TestRoundTrip(t *testing.T) {
	h, _ := newHeap(t, 200)
	a := reserve(t, h, 30)
	reserve(t, h, 17)
	require.NoError(t, h.Release(&a))
	reserve(t, h, 5)

	before := h.Occupancy()
	for _, size := range []uint16{1, 7, 8, 25, 100} {
		seg := reserve(t, h, size)
		require.False(t, before.Equals(h.Occupancy()))
		require.NoError(t, h.Release(&seg))
		require.True(t, before.Equals(h.Occupancy()), "size %d", size)
	}
}

type header struct {
	Kind  uint16
	Flags uint16
	Len   uint32
}

func TestGet(t *testing.T) {
	h, _ := newHeap(t, 64)

	seg := reserve(t, h, 8)
	var hdr *header
	require.NoError(t, h.Get(seg, &hdr))
	require.Equal(t, header{}, *hdr)
	hdr.Len = 42

	var again *header
	require.NoError(t, h.Get(seg, &again))
	require.Equal(t, uint32(42), again.Len)

	mem, err := h.Bytes(seg)
	require.NoError(t, err)
	require.NotEqual(t, make([]byte, 8), mem)

	require.ErrorIs(t, h.Get(seg, hdr), heap.ErrView)
	require.ErrorIs(t, h.Get(seg, header{}), heap.ErrView)

	small := reserve(t, h, 4)
	require.ErrorIs(t, h.Get(small, &hdr), heap.ErrView)

	require.ErrorIs(t, h.Get(segment.Segment{Addr: 1, Size: 8}, &hdr), heap.ErrNotOurs)
}

func TestMap(t *testing.T) {
	h, _ := newHeap(t, 70)
	reserve(t, h, 3)
	seg := reserve(t, h, 62)
	require.NoError(t, h.Release(&seg))
	reserve(t, h, 2)

	want := strings.Repeat("#", 5) + strings.Repeat(".", 59) + "\n" + strings.Repeat(".", 6) + "\n"
	require.Equal(t, want, h.Map())
}

func TestClose(t *testing.T) {
	fa := alloc.NewSimple(origin, 0)
	h := heap.New(fa, nil)
	require.NoError(t, h.Init(100))
	reserve(t, h, 10)

	require.NoError(t, h.Close())
	require.False(t, h.IsReady())
	require.Equal(t, 0, fa.Live())

	_, err := h.Reserve(1)
	require.ErrorIs(t, err, heap.ErrNotReady)
	require.ErrorIs(t, h.Init(100), heap.ErrClosed)
	require.NoError(t, h.Close())
}

func TestMmapFacility(t *testing.T) {
	fa := alloc.NewMmap(origin, 0)
	h := heap.New(fa, nil)
	require.NoError(t, h.Init(heap.MaxCapacity))
	defer h.Close()

	seg := reserve(t, h, heap.MaxCapacity)
	require.Equal(t, uint32(origin), seg.Addr)
	_, err := h.Reserve(1)
	require.ErrorIs(t, err, heap.ErrNoFit)

	require.NoError(t, h.Release(&seg))
	require.Equal(t, 0, h.Stats().Used)
}

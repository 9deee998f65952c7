package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/funny-falcon/bitheap/alloc"
	"github.com/funny-falcon/bitheap/heap"
	"github.com/funny-falcon/bitheap/segment"
)

// Explorer owns one heap and remembers segments by caller given names.
// Heap does no locking, so every access goes under the mutex.
type Explorer struct {
	sync.Mutex
	Heap  *heap.Heap
	Named map[string]segment.Segment
	seq   int

	// Changed, if set, is touched after every successful reserve or release.
	Changed *Debounce
}

var errUnknownID = errors.New("unknown segment id")

func NewExplorer(fa alloc.Facility, log heap.Logger, capacity int) (*Explorer, error) {
	h := heap.New(fa, log)
	if err := h.Init(capacity); err != nil {
		return nil, err
	}
	return &Explorer{
		Heap:  h,
		Named: make(map[string]segment.Segment),
	}, nil
}

func (ex *Explorer) Close() error {
	if ex.Changed != nil {
		ex.Changed.Stop()
	}
	ex.Lock()
	defer ex.Unlock()
	ex.Named = nil
	return ex.Heap.Close()
}

// Reserve reserves size bytes under id. Empty id gets a generated one.
func (ex *Explorer) Reserve(id string, size uint16) (string, segment.Segment, error) {
	ex.Lock()
	defer ex.Unlock()
	if id == "" {
		ex.seq++
		id = fmt.Sprintf("s%d", ex.seq)
	}
	if _, ok := ex.Named[id]; ok {
		return id, segment.Empty, fmt.Errorf("segment id %q is already used", id)
	}
	seg, err := ex.Heap.Reserve(size)
	if err != nil {
		logf("reserve %s of %d: %v", id, size, err)
		return id, seg, err
	}
	if !seg.IsEmpty() {
		ex.Named[id] = seg
		ex.touch()
	}
	return id, seg, nil
}

func (ex *Explorer) ReleaseID(id string) error {
	ex.Lock()
	defer ex.Unlock()
	seg, ok := ex.Named[id]
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownID, id)
	}
	if err := ex.Heap.Release(&seg); err != nil {
		logf("release %s: %v", id, err)
		return err
	}
	delete(ex.Named, id)
	ex.touch()
	return nil
}

// Release frees a raw segment, forgetting any name attached to it.
func (ex *Explorer) Release(seg segment.Segment) error {
	ex.Lock()
	defer ex.Unlock()
	orig := seg
	if err := ex.Heap.Release(&seg); err != nil {
		logf("release %v: %v", orig, err)
		return err
	}
	for id, named := range ex.Named {
		if named == orig {
			delete(ex.Named, id)
		}
	}
	ex.touch()
	return nil
}

func (ex *Explorer) touch() {
	if ex.Changed != nil {
		ex.Changed.Touch()
	}
}

func (ex *Explorer) Stats() heap.Stats {
	ex.Lock()
	defer ex.Unlock()
	return ex.Heap.Stats()
}

func (ex *Explorer) Map() string {
	ex.Lock()
	defer ex.Unlock()
	return ex.Heap.Map()
}

// Spans lists used [start, end) index ranges.
func (ex *Explorer) Spans() [][2]uint32 {
	ex.Lock()
	rb := ex.Heap.Occupancy()
	ex.Unlock()

	var spans [][2]uint32
	it := rb.Iterator()
	for it.HasNext() {
		v := it.Next()
		if n := len(spans); n > 0 && spans[n-1][1] == v {
			spans[n-1][1] = v + 1
		} else {
			spans = append(spans, [2]uint32{v, v + 1})
		}
	}
	return spans
}

type NamedSegment struct {
	ID   string `json:"id"`
	Addr uint32 `json:"addr"`
	Size uint16 `json:"size"`
}

func (ex *Explorer) Segments() []NamedSegment {
	ex.Lock()
	defer ex.Unlock()
	res := make([]NamedSegment, 0, len(ex.Named))
	for id, seg := range ex.Named {
		res = append(res, NamedSegment{ID: id, Addr: seg.Addr, Size: seg.Size})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Addr < res[j].Addr })
	return res
}

func (ex *Explorer) Report(w io.Writer) {
	st := ex.Stats()
	fmt.Fprintf(w, "capacity %d at %#x: used %d, free %d in %d spans, largest %d, fragmentation %.3f\n",
		st.Capacity, st.Base, st.Used, st.Free, st.FreeSpans, st.LargestFree, st.Fragmentation)
	fmt.Fprintf(w, "live %d, reserves %d (failed %d), releases %d (failed %d)\n",
		st.Live, st.Reserves, st.ReserveFails, st.Releases, st.ReleaseFails)
	io.WriteString(w, ex.Map())
}

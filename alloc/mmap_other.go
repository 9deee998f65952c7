//go:build !unix

package alloc

// Mmap falls back to slice-backed regions where mmap is not available.
type Mmap struct {
	Simple
}

func NewMmap(origin uint32, budget int) *Mmap {
	return &Mmap{Simple: Simple{space: space{Origin: origin, Budget: budget}}}
}

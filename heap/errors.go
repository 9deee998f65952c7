package heap

import "errors"

var (
	// ErrCapacity: requested heap doesn't fit 16-bit bit indices.
	ErrCapacity = errors.New("heap: bad capacity")

	// ErrNoMemory: facility couldn't supply data region or bitmap.
	ErrNoMemory = errors.New("heap: no memory for regions")

	ErrNoFit = errors.New("heap: no free span large enough")

	// ErrNotOurs: segment is not inside the data region.
	ErrNotOurs = errors.New("heap: segment is not ours")

	// ErrCorrupt: bitmap disagrees with segment state. Double free lands here.
	ErrCorrupt = errors.New("heap: bitmap range is not solid")

	ErrNotReady = errors.New("heap: not ready")
	ErrReady    = errors.New("heap: already initialized")
	ErrClosed   = errors.New("heap: closed")

	// ErrEmpty: releasing an empty segment. Reserve(0) succeeds, but an empty
	// segment is never owned, so it can't be released.
	ErrEmpty = errors.New("heap: empty segment")

	ErrView = errors.New("heap: bad view target")
)

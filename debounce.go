package main

import (
	"sync"
	"sync/atomic"
	"time"
)

// Debounce runs f once after a burst of Touch calls settles for delay.
type Debounce struct {
	f     func()
	delay time.Duration
	t     *time.Timer
	m     sync.Mutex
	done  uint32
}

func NewDebounce(delay time.Duration, f func()) *Debounce {
	d := &Debounce{
		f:     f,
		delay: delay,
		done:  1,
	}
	d.t = time.AfterFunc(24*time.Hour, d.Flush)
	d.t.Stop()
	return d
}

// Flush runs f now if there was a Touch since the last run.
func (d *Debounce) Flush() {
	if atomic.LoadUint32(&d.done) == 1 {
		return
	}
	// Slow-path.
	d.m.Lock()
	defer d.m.Unlock()
	if atomic.LoadUint32(&d.done) == 0 {
		atomic.StoreUint32(&d.done, 1)
		d.f()
	}
}

func (d *Debounce) Touch() {
	atomic.StoreUint32(&d.done, 0)
	d.t.Reset(d.delay)
}

func (d *Debounce) Stop() {
	d.t.Stop()
}

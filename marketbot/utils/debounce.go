package utils

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Debouncer coalesces bursts of events per key and runs the last callback
// registered for a key once the key has been quiet for the configured delay.
type Debouncer struct {
	delay  time.Duration
	timers *xsync.MapOf[string, *time.Timer]
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		timers: xsync.NewMapOf[string, *time.Timer](),
	}
}

// Trigger (re)starts the quiet period of key. fn replaces any callback pending for key.
func (d *Debouncer) Trigger(key string, fn func()) {
	d.timers.Compute(key, func(old *time.Timer, loaded bool) (*time.Timer, bool) {
		if loaded {
			old.Stop()
		}
		var timer *time.Timer
		timer = time.AfterFunc(d.delay, func() {
			d.timers.Compute(key, func(current *time.Timer, loaded bool) (*time.Timer, bool) {
				// keep the entry if a newer trigger replaced this timer
				return current, !loaded || current == timer
			})
			fn()
		})
		return timer, false
	})
}

// Cancel drops the pending callback of key, if any.
func (d *Debouncer) Cancel(key string) {
	d.timers.Compute(key, func(old *time.Timer, loaded bool) (*time.Timer, bool) {
		if loaded {
			old.Stop()
		}
		return nil, true
	})
}

// Pending reports how many keys have a callback waiting.
func (d *Debouncer) Pending() int {
	return d.timers.Size()
}

// Package pool provides small object pools shared by the transport
// implementations.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer set to fire after d, reusing a pooled timer when
// one is available. Return it with PutTimer.
func GetTimer(d time.Duration) *time.Timer {
	v := timerPool.Get()
	if v == nil {
		return time.NewTimer(d)
	}

	t, _ := v.(*time.Timer)
	if t.Reset(d) {
		// The timer was still active; drain a stale tick so the caller never
		// observes it.
		select {
		case <-t.C:
		default:
		}
	}

	return t
}

// PutTimer stops t and returns it to the pool. The timer must not be touched
// after it is put back.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		// The timer already fired; drain the tick if the caller left it.
		select {
		case <-t.C:
		default:
		}
	}

	timerPool.Put(t)
}

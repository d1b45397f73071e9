package cli

import (
	"sync"
	"time"
)

// IdleLock calls onIdle once the window passes without a Touch. A
// non-positive window disables it.
type IdleLock struct {
	window time.Duration
	onIdle func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

func NewIdleLock(window time.Duration, onIdle func()) *IdleLock {
	return &IdleLock{window: window, onIdle: onIdle}
}

// Touch restarts the window.
func (l *IdleLock) Touch() {
	if l.window <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	if l.timer != nil {
		l.timer.Stop()
	}
	l.gen++
	gen := l.gen
	l.timer = time.AfterFunc(l.window, func() { l.fire(gen) })
}

// Disarm cancels the pending timeout until the next Touch.
func (l *IdleLock) Disarm() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// Stop disarms the lock permanently.
func (l *IdleLock) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *IdleLock) fire(gen uint64) {
	l.mu.Lock()
	if l.stopped || l.timer == nil || gen != l.gen {
		l.mu.Unlock()
		return
	}
	l.timer = nil
	l.mu.Unlock()
	l.onIdle()
}

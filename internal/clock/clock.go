package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock abstracts time operations for testability.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer.
	Stop() bool
}

// Real is a Clock backed by the system clock.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Mock is a manually driven Clock. Timers fire synchronously from Advance
// and Set, in deadline order.
type Mock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*mockTimer
}

// NewMock returns a Mock frozen at t.
func NewMock(t time.Time) *Mock {
	return &Mock{now: t}
}

// Now returns the mock time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc schedules f to run when the mock time reaches now+d.
func (m *Mock) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &mockTimer{mock: m, at: m.now.Add(d), fn: f}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the mock time forward by d and fires due timers.
func (m *Mock) Advance(d time.Duration) {
	m.Set(m.Now().Add(d))
}

// Set moves the mock time to t and fires due timers. Callbacks run without
// the mock lock held, so they may schedule further timers.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	var due, rest []*mockTimer
	for _, tm := range m.timers {
		if !tm.at.After(t) {
			due = append(due, tm)
		} else {
			rest = append(rest, tm)
		}
	}
	m.timers = rest
	m.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, tm := range due {
		tm.fn()
	}
}

// Pending returns the number of timers that have not fired or been stopped.
func (m *Mock) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

type mockTimer struct {
	mock *Mock
	at   time.Time
	fn   func()
}

func (t *mockTimer) Stop() bool {
	t.mock.mu.Lock()
	defer t.mock.mu.Unlock()
	for i, tm := range t.mock.timers {
		if tm == t {
			t.mock.timers = append(t.mock.timers[:i], t.mock.timers[i+1:]...)
			return true
		}
	}
	return false
}

// Package clock abstracts the current time so fetch stamps and entry dates
// can be pinned in tests.
package clock

import (
	"sync"
	"time"

	"cloud.google.com/go/civil"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock in UTC.
type RealClock struct{}

// NewRealClock returns the system clock.
func NewRealClock() Clock {
	return &RealClock{}
}

// Now returns the current UTC time.
func (c *RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Today returns the calendar date of clk's current time in UTC.
func Today(clk Clock) civil.Date {
	return civil.DateOf(clk.Now().UTC())
}

// MockClock is a settable clock. Reads may race with Set and Advance from
// other goroutines.
type MockClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewMockClock returns a MockClock stopped at start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

// Now returns the mock time.
func (m *MockClock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Set moves the clock to t.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

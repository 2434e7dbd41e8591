package testutil

import (
	"time"

	"github.com/light-bringer/storefront-listview/internal/pkg/clock"
)

// NewMockClock creates a mock clock fixed at the given time.
func NewMockClock(t time.Time) *clock.MockClock {
	return clock.NewMockClock(t)
}

package telemetry

import (
	"fmt"
	"time"
)

// DefaultPollingTime is the window over which FramerateCounter averages frames.
const DefaultPollingTime = 500 * time.Millisecond

// FramerateCounter averages the frame rate over a polling window.
type FramerateCounter struct {
	PollingTime time.Duration
	ShowDecimal bool

	elapsed time.Duration
	frames  int
	rate    float64
}

// NewFramerateCounter returns a counter polling every DefaultPollingTime.
func NewFramerateCounter() *FramerateCounter {
	return &FramerateCounter{PollingTime: DefaultPollingTime}
}

// Update accounts for one frame that took dt. It returns true when a new reading
// is available.
func (f *FramerateCounter) Update(dt time.Duration) bool {
	f.elapsed += dt
	f.frames++
	polling := f.PollingTime
	if polling <= 0 {
		polling = DefaultPollingTime
	}
	if f.elapsed < polling {
		return false
	}
	f.rate = float64(f.frames) / f.elapsed.Seconds()
	f.elapsed = 0
	f.frames = 0
	return true
}

// FrameRate returns the last reading, 0 before the first polling window ends.
func (f *FramerateCounter) FrameRate() float64 { return f.rate }

// String formats the last reading as "60fps" or "59.87fps".
func (f *FramerateCounter) String() string {
	if f.ShowDecimal {
		return fmt.Sprintf("%.2ffps", f.rate)
	}
	return fmt.Sprintf("%.0ffps", f.rate)
}

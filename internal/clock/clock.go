package clock

import "time"

// Clock supplies the current time. Deadline and escalation logic takes an
// injected Clock so scans and transitions are deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall clock.
func System() Clock { return systemClock{} }

// Fixed is a Clock pinned to a settable instant.
type Fixed struct {
	Instant time.Time
}

// Now returns the pinned instant.
func (f *Fixed) Now() time.Time { return f.Instant }

// Advance moves the pinned instant forward.
func (f *Fixed) Advance(d time.Duration) { f.Instant = f.Instant.Add(d) }

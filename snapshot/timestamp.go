package snapshot

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// stampLayout is the second-resolution part of a stamp; milliseconds are
// appended as a separate "_mmm" group.
const stampLayout = "20060102_150405"

// Stamp is the single timestamp shared by every artifact of one run.
type Stamp struct {
	Time time.Time
}

// String renders the stamp as YYYYMMDD_HHMMSS_mmm in UTC.
func (s Stamp) String() string {
	t := s.Time.UTC()
	return fmt.Sprintf("%s_%03d", t.Format(stampLayout), t.Nanosecond()/int(time.Millisecond))
}

// Display renders the stamp for humans, e.g. "2025-07-17 15:27:01 UTC".
func (s Stamp) Display() string {
	return s.Time.UTC().Format("2006-01-02 15:04:05") + " UTC"
}

// IsZero reports whether the stamp was never assigned.
func (s Stamp) IsZero() bool {
	return s.Time.IsZero()
}

// ParseStamp parses a YYYYMMDD_HHMMSS_mmm string back into a Stamp.
func ParseStamp(v string) (Stamp, error) {
	if len(v) != len(stampLayout)+4 || v[len(stampLayout)] != '_' {
		return Stamp{}, fmt.Errorf("invalid stamp %q", v)
	}
	t, err := time.ParseInLocation(stampLayout, v[:len(stampLayout)], time.UTC)
	if err != nil {
		return Stamp{}, fmt.Errorf("invalid stamp %q: %w", v, err)
	}
	ms, err := strconv.Atoi(v[len(stampLayout)+1:])
	if err != nil || ms < 0 {
		return Stamp{}, fmt.Errorf("invalid stamp milliseconds %q", v)
	}
	return Stamp{Time: t.Add(time.Duration(ms) * time.Millisecond)}, nil
}

// Clock hands out run stamps. Stamps from one Clock are strictly increasing
// at millisecond resolution, so two runs never share a file prefix.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock creates a Clock backed by the wall clock.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// newClockAt creates a Clock driven by now (used by tests).
func newClockAt(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Next fixes the stamp for a new run.
func (c *Clock) Next() Stamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return Stamp{Time: t}
}

var defaultClock = NewClock()

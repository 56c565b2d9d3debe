// Package clock provides the scheduler's time base: wall time latched once
// per tick, local date/time strings and a single pending event.
package clock

import (
	"fmt"
	"sync"
	"time"
)

var weekdays = [...]string{"Sun", "Mon", "Tue", "Wed", "Thr", "Fri", "Sat"}

// Clock is refreshed once per tick with Tick and otherwise returns the time
// captured at that tick, so every component sees the same instant.
type Clock struct {
	mu   sync.RWMutex
	now  func() time.Time
	loc  *time.Location
	t    time.Time
	next int64 // Unix seconds of the pending event, 0 when none
}

// New creates a clock reading from now (time.Now when nil) in loc
// (time.Local when nil).
func New(now func() time.Time, loc *time.Location) *Clock {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	c := &Clock{now: now, loc: loc}
	c.t = now()
	return c
}

// LoadLocation resolves a location name; "" and "Local" map to time.Local.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", name, err)
	}
	return loc, nil
}

// Tick samples the underlying time source.
func (c *Clock) Tick() time.Time {
	t := c.now()
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
	return t
}

// Now returns the time captured by the last Tick.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t.In(c.loc)
}

// Unix returns the last tick in Unix seconds.
func (c *Clock) Unix() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t.Unix()
}

// DateString formats the date as "2006/01/02(Mon)".
func (c *Clock) DateString() string {
	t := c.Now()
	return fmt.Sprintf("%04d/%02d/%02d(%s)", t.Year(), int(t.Month()), t.Day(), weekdays[t.Weekday()])
}

// TimeString formats the time as "15:04:05".
func (c *Clock) TimeString() string {
	return c.Now().Format("15:04:05")
}

// SetNextEvent schedules the pending event after the given number of
// seconds and returns its Unix time.
func (c *Clock) SetNextEvent(after time.Duration) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = c.t.Unix() + int64(after/time.Second)
	return c.next
}

// UntilNextEvent returns the seconds left until the pending event. It is 0
// when no event is pending and negative once the event is overdue.
func (c *Clock) UntilNextEvent() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.next == 0 {
		return 0
	}
	return c.next - c.t.Unix()
}

// HasNextEvent reports whether an event is pending.
func (c *Clock) HasNextEvent() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.next != 0
}

// ClearNextEvent cancels the pending event.
func (c *Clock) ClearNextEvent() {
	c.mu.Lock()
	c.next = 0
	c.mu.Unlock()
}

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTime struct {
	t time.Time
}

func (f *fakeTime) now() time.Time { return f.t }

func (f *fakeTime) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestClock(start time.Time) (*Clock, *fakeTime) {
	ft := &fakeTime{t: start}
	return New(ft.now, time.UTC), ft
}

func TestTick(t *testing.T) {
	c, ft := newTestClock(time.Unix(1700000000, 0))

	assert.Equal(t, int64(1700000000), c.Unix())

	ft.advance(3 * time.Second)
	assert.Equal(t, int64(1700000000), c.Unix(), "time only moves on Tick")

	c.Tick()
	assert.Equal(t, int64(1700000003), c.Unix())
}

func TestDateTimeStrings(t *testing.T) {
	// 2023-11-14 22:13:20 UTC, a Tuesday
	c, _ := newTestClock(time.Unix(1700000000, 0))

	assert.Equal(t, "2023/11/14(Tue)", c.DateString())
	assert.Equal(t, "22:13:20", c.TimeString())
}

func TestDateString_Thursday(t *testing.T) {
	c, _ := newTestClock(time.Date(2023, 11, 16, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, "2023/11/16(Thr)", c.DateString())
}

func TestNextEvent(t *testing.T) {
	c, ft := newTestClock(time.Unix(1000, 0))

	assert.False(t, c.HasNextEvent())
	assert.Equal(t, int64(0), c.UntilNextEvent())

	at := c.SetNextEvent(60 * time.Second)
	assert.Equal(t, int64(1060), at)
	assert.True(t, c.HasNextEvent())
	assert.Equal(t, int64(60), c.UntilNextEvent())

	ft.advance(45 * time.Second)
	c.Tick()
	assert.Equal(t, int64(15), c.UntilNextEvent())

	ft.advance(20 * time.Second)
	c.Tick()
	assert.Equal(t, int64(-5), c.UntilNextEvent())

	c.ClearNextEvent()
	assert.False(t, c.HasNextEvent())
	assert.Equal(t, int64(0), c.UntilNextEvent())
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = LoadLocation("Local")
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = LoadLocation("UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = LoadLocation("Not/AZone")
	assert.Error(t, err)
}

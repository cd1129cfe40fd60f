package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 10, 13, 10, 30, 0, 0, time.UTC)

func TestFakeAfterFunc(t *testing.T) {
	c := NewFake(epoch)
	fired := 0
	c.AfterFunc(5*time.Second, func() { fired++ })

	c.Advance(4 * time.Second)
	assert.Equal(t, 0, fired)
	assert.Equal(t, epoch.Add(4*time.Second), c.Now())

	c.Advance(time.Second)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestFakeStop(t *testing.T) {
	c := NewFake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(time.Minute)
	assert.False(t, fired)
}

func TestFakeCallbackSeesDueTime(t *testing.T) {
	c := NewFake(epoch)
	var seen []time.Time
	c.AfterFunc(3*time.Second, func() { seen = append(seen, c.Now()) })
	c.AfterFunc(1*time.Second, func() { seen = append(seen, c.Now()) })

	c.Advance(10 * time.Second)

	assert.Equal(t, []time.Time{epoch.Add(time.Second), epoch.Add(3 * time.Second)}, seen)
	assert.Equal(t, epoch.Add(10*time.Second), c.Now())
}

func TestFakeSetSkipsCallbacks(t *testing.T) {
	c := NewFake(epoch)
	fired := false
	c.AfterFunc(time.Second, func() { fired = true })

	c.Set(epoch.Add(time.Hour))
	assert.False(t, fired)
	assert.Equal(t, 1, c.Pending())
}

func TestTicker(t *testing.T) {
	tests := []struct {
		name    string
		period  time.Duration
		advance time.Duration
		want    int
	}{
		{name: "before first period", period: 5 * time.Second, advance: 4 * time.Second, want: 0},
		{name: "exact period", period: 5 * time.Second, advance: 5 * time.Second, want: 1},
		{name: "several periods", period: 5 * time.Second, advance: 12 * time.Second, want: 2},
		{name: "one second floor", period: time.Second, advance: 10 * time.Second, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewFake(epoch)
			count := 0
			ticker := NewTicker(c, tt.period, func() { count++ })
			defer ticker.Stop()

			c.Advance(tt.advance)
			assert.Equal(t, tt.want, count)
		})
	}
}

func TestTickerStopFromCallback(t *testing.T) {
	c := NewFake(epoch)
	count := 0
	var ticker *Ticker
	ticker = NewTicker(c, time.Second, func() {
		count++
		if count == 3 {
			ticker.Stop()
		}
	})

	c.Advance(time.Minute)
	assert.Equal(t, 3, count)
	assert.True(t, ticker.Stopped())
	assert.Equal(t, 0, c.Pending())
}

func TestRealClock(t *testing.T) {
	c := New()
	done := make(chan struct{})
	c.AfterFunc(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AfterFunc did not fire")
	}
	assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
}

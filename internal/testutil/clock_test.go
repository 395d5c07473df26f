package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_StartsAtGivenTime(t *testing.T) {
	clock := NewFakeClock(epoch)
	assert.Equal(t, epoch, clock.Now())
}

func TestFakeClock_FiresOnlyWhenDue(t *testing.T) {
	clock := NewFakeClock(epoch)
	fired := 0
	clock.AfterFunc(2*time.Second, func() { fired++ })

	clock.Advance(time.Second)
	assert.Equal(t, 0, fired)
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(time.Second)
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, epoch.Add(2*time.Second), clock.Now())

	// one-shot
	clock.Advance(time.Hour)
	assert.Equal(t, 1, fired)
}

func TestFakeClock_Stop(t *testing.T) {
	clock := NewFakeClock(epoch)
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	clock.Advance(time.Minute)
	assert.False(t, fired)
}

func TestFakeClock_FiresInOrder(t *testing.T) {
	clock := NewFakeClock(epoch)
	var order []string
	var seen []time.Time
	clock.AfterFunc(3*time.Second, func() { order = append(order, "c"); seen = append(seen, clock.Now()) })
	clock.AfterFunc(time.Second, func() { order = append(order, "a"); seen = append(seen, clock.Now()) })
	clock.AfterFunc(time.Second, func() { order = append(order, "b"); seen = append(seen, clock.Now()) })

	clock.Advance(5 * time.Second)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []time.Time{epoch.Add(time.Second), epoch.Add(time.Second), epoch.Add(3 * time.Second)}, seen)
	assert.Equal(t, epoch.Add(5*time.Second), clock.Now())
}

func TestFakeClock_CallbackSchedulesTimer(t *testing.T) {
	clock := NewFakeClock(epoch)
	var fired []time.Duration
	clock.AfterFunc(time.Second, func() {
		fired = append(fired, clock.Now().Sub(epoch))
		clock.AfterFunc(time.Second, func() {
			fired = append(fired, clock.Now().Sub(epoch))
		})
	})

	clock.Advance(3 * time.Second)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, fired)
}

func TestFakeClock_StopFromCallback(t *testing.T) {
	clock := NewFakeClock(epoch)
	fired := false
	var later interface{ Stop() bool }
	clock.AfterFunc(time.Second, func() { later.Stop() })
	later = clock.AfterFunc(2*time.Second, func() { fired = true })

	clock.Advance(3 * time.Second)
	assert.False(t, fired)
}

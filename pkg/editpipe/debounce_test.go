package editpipe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_CoalescesPerKey(t *testing.T) {
	clock := NewFakeClock()
	d := NewDebouncer(400*time.Millisecond, clock)
	var got []string

	assert.False(t, d.Trigger("a", func() { got = append(got, "a1") }))
	clock.Advance(300 * time.Millisecond)
	assert.True(t, d.Trigger("a", func() { got = append(got, "a2") }))
	d.Trigger("b", func() { got = append(got, "b1") })

	clock.Advance(399 * time.Millisecond)
	assert.Empty(t, got, "window renewed by the second trigger")

	clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"a2", "b1"}, got)
	assert.Zero(t, d.Pending())
	assert.Zero(t, clock.Pending())
}

func TestDebouncer_Flush(t *testing.T) {
	clock := NewFakeClock()
	d := NewDebouncer(time.Second, clock)
	var got []string
	d.Trigger("b", func() { got = append(got, "b") })
	d.Trigger("a", func() { got = append(got, "a") })

	d.Flush()
	assert.Equal(t, []string{"a", "b"}, got)

	clock.Advance(2 * time.Second)
	assert.Len(t, got, 2, "flushed tasks must not run again")
}

func TestDebouncer_CancelAndStop(t *testing.T) {
	clock := NewFakeClock()
	d := NewDebouncer(time.Second, clock)
	ran := 0
	d.Trigger("a", func() { ran++ })
	d.Cancel("a")
	d.Cancel("missing")
	d.Trigger("b", func() { ran++ })
	d.Stop()
	assert.False(t, d.Trigger("c", func() { ran++ }))

	clock.Advance(5 * time.Second)
	assert.Zero(t, ran)
	assert.Zero(t, d.Pending())
}

func TestDebouncer_RealClock(t *testing.T) {
	d := NewDebouncer(10*time.Millisecond, nil)
	var ran atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)
	for i := 0; i < 5; i++ {
		d.Trigger("k", func() {
			ran.Add(1)
			wg.Done()
		})
	}
	wg.Wait()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), ran.Load())
	assert.Equal(t, 10*time.Millisecond, d.Delay())
}

func TestFakeClock_Order(t *testing.T) {
	clock := NewFakeClock()
	var got []int
	clock.AfterFunc(2*time.Second, func() { got = append(got, 2) })
	first := clock.AfterFunc(time.Second, func() { got = append(got, 1) })
	clock.AfterFunc(time.Second, func() { got = append(got, 3) })

	clock.Advance(3 * time.Second)
	assert.Equal(t, []int{1, 3, 2}, got)
	assert.False(t, first.Stop(), "fired timers are no longer pending")
}

package timebase

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultGranularity matches the timeupdate cadence of browser media elements.
const DefaultGranularity = 250 * time.Millisecond

// Clock is a software playback element. Time only moves through Advance,
// Seek or Run, which makes it deterministic in tests.
type Clock struct {
	mu          sync.Mutex
	current     float64
	duration    float64
	paused      bool
	buffering   bool
	granularity time.Duration

	nextID    int
	timeSubs  map[int]func(float64)
	bufferSub map[int]func(bool)

	// dispatch serializes listener delivery so handlers never overlap.
	dispatch sync.Mutex
}

var _ Adapter = (*Clock)(nil)

// NewClock creates a paused clock at position zero.
func NewClock(duration float64, granularity time.Duration) *Clock {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	if duration < 0 {
		duration = 0
	}
	return &Clock{
		duration:    duration,
		paused:      true,
		granularity: granularity,
		timeSubs:    make(map[int]func(float64)),
		bufferSub:   make(map[int]func(bool)),
	}
}

// CurrentTime implements Adapter.
func (c *Clock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Duration implements Adapter.
func (c *Clock) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// Paused implements Adapter.
func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Buffering reports the last buffering state set with SetBuffering.
func (c *Clock) Buffering() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffering
}

// Granularity returns the tick interval used by Advance and Run.
func (c *Clock) Granularity() time.Duration {
	return c.granularity
}

// Play implements Adapter.
func (c *Clock) Play() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
}

// Pause implements Adapter.
func (c *Clock) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Seek moves the playhead, clamped to [0, duration], and notifies listeners.
func (c *Clock) Seek(t float64) {
	c.mu.Lock()
	c.current = c.clamp(t)
	now := c.current
	c.mu.Unlock()
	c.emitTime(now)
}

// SetBuffering changes the buffering state and notifies listeners on change.
func (c *Clock) SetBuffering(b bool) {
	c.mu.Lock()
	if c.buffering == b {
		c.mu.Unlock()
		return
	}
	c.buffering = b
	c.mu.Unlock()
	c.emitBuffering(b)
}

// Advance moves a playing clock forward by d, emitting one notification per
// granularity step. A paused or buffering clock does not move. Playback
// pauses itself at the end of the media.
func (c *Clock) Advance(d time.Duration) {
	for d > 0 {
		step := c.granularity
		if d < step {
			step = d
		}
		d -= step

		c.mu.Lock()
		if c.paused || c.buffering {
			c.mu.Unlock()
			return
		}
		c.current = c.clamp(c.current + step.Seconds())
		now := c.current
		ended := c.duration > 0 && now >= c.duration
		if ended {
			c.paused = true
		}
		c.mu.Unlock()

		c.emitTime(now)
		if ended {
			return
		}
	}
}

// Run advances the clock in real time until ctx is done or playback ends.
func (c *Clock) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.granularity)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Advance(c.granularity)
			if c.Paused() {
				return nil
			}
		}
	}
}

// OnTimeChanged implements Adapter.
func (c *Clock) OnTimeChanged(fn func(t float64)) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.timeSubs[id] = fn
	return c.cancelFunc(func() { delete(c.timeSubs, id) })
}

// OnBufferingChanged implements Adapter.
func (c *Clock) OnBufferingChanged(fn func(buffering bool)) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.bufferSub[id] = fn
	return c.cancelFunc(func() { delete(c.bufferSub, id) })
}

// ListenerCount returns the number of attached listeners of both kinds.
func (c *Clock) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timeSubs) + len(c.bufferSub)
}

func (c *Clock) cancelFunc(remove func()) Subscription {
	var once sync.Once
	return SubscriptionFunc(func() {
		once.Do(func() {
			c.mu.Lock()
			remove()
			c.mu.Unlock()
		})
	})
}

func (c *Clock) clamp(t float64) float64 {
	if t < 0 {
		return 0
	}
	if c.duration > 0 && t > c.duration {
		return c.duration
	}
	return t
}

func (c *Clock) emitTime(t float64) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()
	for _, fn := range c.snapshotTime() {
		fn(t)
	}
}

func (c *Clock) emitBuffering(b bool) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()
	c.mu.Lock()
	fns := make([]func(bool), 0, len(c.bufferSub))
	for _, id := range sortedKeys(c.bufferSub) {
		fns = append(fns, c.bufferSub[id])
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(b)
	}
}

// snapshotTime copies listeners in registration order so callbacks run
// without holding the state lock.
func (c *Clock) snapshotTime() []func(float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fns := make([]func(float64), 0, len(c.timeSubs))
	for _, id := range sortedKeys(c.timeSubs) {
		fns = append(fns, c.timeSubs[id])
	}
	return fns
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

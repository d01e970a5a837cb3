// Package timebase abstracts the playback element that drives the editor.
//
// The video decode engine is external; the editor only sees current time,
// duration, play state and two notifications (time changed, buffering
// changed). Clock is a software implementation used for headless preview
// and tests.
package timebase

// Adapter is the playback element as seen by the editor core.
type Adapter interface {
	// CurrentTime returns the playback position in seconds.
	CurrentTime() float64
	// Duration returns the media duration in seconds.
	Duration() float64
	Paused() bool

	// OnTimeChanged registers fn for time-changed notifications. Notifications
	// for one adapter are delivered sequentially, never overlapping.
	OnTimeChanged(fn func(t float64)) Subscription
	// OnBufferingChanged registers fn for buffering state changes.
	OnBufferingChanged(fn func(buffering bool)) Subscription

	Play()
	Pause()
	Seek(t float64)
}

// Subscription detaches a listener. Cancel is safe to call more than once.
type Subscription interface {
	Cancel()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

// Cancel calls f.
func (f SubscriptionFunc) Cancel() {
	if f != nil {
		f()
	}
}

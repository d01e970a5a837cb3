// Package highlight turns playback time into active-word transitions for
// the transcript panel and keeps the active word scrolled into view.
package highlight

import (
	"sync"

	"github.com/otherjamesbrown/reelkit/pkg/logging"
	"github.com/otherjamesbrown/reelkit/pkg/observability"
	"github.com/otherjamesbrown/reelkit/pkg/timebase"
	"github.com/otherjamesbrown/reelkit/pkg/transcript"
)

// Transition is emitted on every tick. The presentation layer clears the
// emphasis of Previous and applies it to Next. Either may be nil.
type Transition struct {
	Previous *transcript.WordRef
	Next     *transcript.WordRef
	// Time is the playback time that produced the transition.
	Time float64
	// Scrolled is set when the container was scrolled for Next.
	Scrolled bool
}

// Changed reports whether the active word differs from the previous one.
func (t Transition) Changed() bool {
	switch {
	case t.Previous == nil && t.Next == nil:
		return false
	case t.Previous == nil || t.Next == nil:
		return true
	default:
		return *t.Previous != *t.Next
	}
}

// Sink receives transitions.
type Sink func(Transition)

// Config holds optional collaborators of a Synchronizer.
type Config struct {
	Anchors   *AnchorTable
	Container ScrollContainer
	// Offset is passed to ScrollIntoView. Zero means DefaultScrollOffset.
	Offset  float64
	Sink    Sink
	Metrics *observability.EditorMetrics
	Logger  logging.Logger
}

// Synchronizer is the two-state (idle, active) highlight machine.
type Synchronizer struct {
	mu        sync.Mutex
	index     *transcript.Index
	anchors   *AnchorTable
	container ScrollContainer
	offset    float64
	sink      Sink
	metrics   *observability.EditorMetrics
	logger    logging.Logger

	active *transcript.WordRef
}

// New creates an idle synchronizer over index.
func New(index *transcript.Index, cfg Config) *Synchronizer {
	if cfg.Anchors == nil {
		cfg.Anchors = NewAnchorTable()
	}
	if cfg.Offset == 0 {
		cfg.Offset = DefaultScrollOffset
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	return &Synchronizer{
		index:     index,
		anchors:   cfg.Anchors,
		container: cfg.Container,
		offset:    cfg.Offset,
		sink:      cfg.Sink,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With(logging.Component("highlight")),
	}
}

// Anchors returns the anchor side table.
func (s *Synchronizer) Anchors() *AnchorTable {
	return s.anchors
}

// SetContainer binds or unbinds (nil) the scroll container.
func (s *Synchronizer) SetContainer(c ScrollContainer) {
	s.mu.Lock()
	s.container = c
	s.mu.Unlock()
}

// Active returns the active word, if any.
func (s *Synchronizer) Active() (transcript.WordRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return transcript.WordRef{}, false
	}
	return *s.active, true
}

// Tick processes one time-changed notification.
func (s *Synchronizer) Tick(t float64) Transition {
	s.mu.Lock()
	tr := Transition{Previous: s.active, Time: t}
	if ref, ok := s.index.Lookup(t); ok {
		next := ref
		tr.Next = &next
		tr.Scrolled = s.scrollTo(ref)
	}
	s.active = tr.Next
	sink := s.sink
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordTick(tr.Next != nil)
		if tr.Changed() {
			s.metrics.RecordTransition(tr.Next != nil)
		}
	}
	if sink != nil {
		sink(tr)
	}
	return tr
}

// scrollTo scrolls the anchor of ref into view. A word whose anchor is not
// rendered yet is skipped and retried on the next tick.
func (s *Synchronizer) scrollTo(ref transcript.WordRef) bool {
	n := s.index.WordNumber(ref)
	anchor, ok := s.anchors.Get(n)
	if !ok {
		if s.metrics != nil {
			s.metrics.RecordMissingAnchor()
		}
		s.logger.Debug("anchor not rendered", logging.F("word", n))
		return false
	}
	return ScrollIntoView(anchor.Box, s.container, s.offset)
}

// Reset returns to idle and emits the clearing transition.
func (s *Synchronizer) Reset() Transition {
	s.mu.Lock()
	tr := Transition{Previous: s.active}
	s.active = nil
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		sink(tr)
	}
	return tr
}

// Attach subscribes the synchronizer to tb's time notifications. The
// returned detach func is safe to call more than once.
func (s *Synchronizer) Attach(tb timebase.Adapter) (detach func()) {
	sub := tb.OnTimeChanged(func(t float64) { s.Tick(t) })
	var once sync.Once
	return func() {
		once.Do(sub.Cancel)
	}
}

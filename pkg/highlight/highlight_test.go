package highlight

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/reelkit/pkg/layout"
	"github.com/otherjamesbrown/reelkit/pkg/observability"
	"github.com/otherjamesbrown/reelkit/pkg/timebase"
	"github.com/otherjamesbrown/reelkit/pkg/transcript"
)

type fakeContainer struct {
	top      float64
	viewport float64
	sets     []float64
}

func (f *fakeContainer) ScrollTop() float64      { return f.top }
func (f *fakeContainer) ViewportHeight() float64 { return f.viewport }
func (f *fakeContainer) SetScrollTop(top float64) {
	f.top = top
	f.sets = append(f.sets, top)
}

func buildIndex(t *testing.T) *transcript.Index {
	t.Helper()
	idx, err := transcript.Build(&transcript.Source{Segments: []transcript.SourceSegment{
		{Words: []transcript.SourceWord{{Word: "hi", Start: 0, End: 0.5}, {Word: "there", Start: 0.5, End: 1.2}}},
	}}, transcript.DefaultBuildOptions())
	require.NoError(t, err)
	return idx
}

func TestScrollIntoView(t *testing.T) {
	tests := []struct {
		name     string
		el       layout.Rect
		top      float64
		wantTop  float64
		scrolled bool
	}{
		{"above the fold", layout.Rect{Top: 50, Height: 20}, 0, 0, false},
		{"past midpoint", layout.Rect{Top: 250, Height: 20}, 0, 94, true},
		{"element above scroll top", layout.Rect{Top: 10, Height: 20}, 100, 100, false},
		{"at scroll top", layout.Rect{Top: 100, Height: 300}, 100, 100, false},
		{"bottom exactly on midpoint", layout.Rect{Top: 80, Height: 20}, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeContainer{top: tt.top, viewport: 200}
			got := ScrollIntoView(tt.el, c, DefaultScrollOffset)
			assert.Equal(t, tt.scrolled, got)
			assert.Equal(t, tt.wantTop, c.top)
		})
	}
}

func TestScrollIntoView_NoContainer(t *testing.T) {
	assert.False(t, ScrollIntoView(layout.Rect{Top: 500, Height: 20}, nil, 24))
}

func TestSynchronizer_Transitions(t *testing.T) {
	idx := buildIndex(t)
	var got []Transition
	s := New(idx, Config{Sink: func(tr Transition) { got = append(got, tr) }})

	tr := s.Tick(0.3)
	assert.Nil(t, tr.Previous)
	require.NotNil(t, tr.Next)
	assert.Equal(t, transcript.WordRef{}, *tr.Next)
	assert.True(t, tr.Changed())

	tr = s.Tick(0.35)
	assert.False(t, tr.Changed(), "same word again")

	tr = s.Tick(0.9)
	require.NotNil(t, tr.Previous)
	require.NotNil(t, tr.Next)
	assert.Equal(t, 1, tr.Next.Word)
	assert.True(t, tr.Changed())

	tr = s.Tick(1.3)
	assert.NotNil(t, tr.Previous)
	assert.Nil(t, tr.Next)
	_, active := s.Active()
	assert.False(t, active)

	tr = s.Tick(1.4)
	assert.Nil(t, tr.Previous)
	assert.Nil(t, tr.Next)
	assert.False(t, tr.Changed(), "clearing idle is a no-op")

	assert.Len(t, got, 5)
}

func TestSynchronizer_MissingAnchorSkipsScroll(t *testing.T) {
	idx := buildIndex(t)
	reg := prometheus.NewRegistry()
	metrics := observability.NewEditorMetrics(reg)
	c := &fakeContainer{viewport: 100}
	s := New(idx, Config{Container: c, Metrics: metrics})

	tr := s.Tick(0.3)
	require.NotNil(t, tr.Next, "state becomes active even without an anchor")
	assert.False(t, tr.Scrolled)
	assert.Empty(t, c.sets)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MissingAnchorsTotal))

	// anchor rendered before the next tick
	s.Anchors().Set(0, Anchor{Handle: "w0", Box: layout.Rect{Top: 90, Height: 20}})
	tr = s.Tick(0.31)
	assert.True(t, tr.Scrolled)
	assert.Equal(t, []float64{90 + 20 - 100 + DefaultScrollOffset}, c.sets)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.HighlightTicksTotal.WithLabelValues("active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HighlightTransitionsTotal.WithLabelValues("active")))
}

func TestSynchronizer_HeadlessNoContainer(t *testing.T) {
	idx := buildIndex(t)
	s := New(idx, Config{})
	s.Anchors().Set(1, Anchor{Box: layout.Rect{Top: 1000, Height: 20}})
	tr := s.Tick(0.9)
	assert.False(t, tr.Scrolled)

	c := &fakeContainer{viewport: 100}
	s.SetContainer(c)
	tr = s.Tick(0.95)
	assert.True(t, tr.Scrolled)
}

func TestSynchronizer_Reset(t *testing.T) {
	idx := buildIndex(t)
	s := New(idx, Config{})
	s.Tick(0.3)
	tr := s.Reset()
	assert.NotNil(t, tr.Previous)
	assert.Nil(t, tr.Next)
	_, ok := s.Active()
	assert.False(t, ok)
}

func TestSynchronizer_AttachDetach(t *testing.T) {
	idx := buildIndex(t)
	clock := timebase.NewClock(2, 100*time.Millisecond)
	var changes int
	s := New(idx, Config{Sink: func(tr Transition) {
		if tr.Changed() {
			changes++
		}
	}})

	detach := s.Attach(clock)
	clock.Play()
	clock.Advance(1500 * time.Millisecond)
	// idle -> hi -> there -> idle
	assert.Equal(t, 3, changes)

	detach()
	detach()
	assert.Zero(t, clock.ListenerCount())

	clock.Seek(0.3)
	assert.Equal(t, 3, changes, "no callbacks after detach")
}

func TestAnchorTable(t *testing.T) {
	a := NewAnchorTable()
	a.Set(3, Anchor{Handle: "x"})
	got, ok := a.Get(3)
	require.True(t, ok)
	assert.Equal(t, "x", got.Handle)
	assert.Equal(t, 1, a.Len())

	a.Remove(3)
	_, ok = a.Get(3)
	assert.False(t, ok)

	a.Set(1, Anchor{})
	a.Clear()
	assert.Zero(t, a.Len())
}

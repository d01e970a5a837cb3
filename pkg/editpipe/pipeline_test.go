package editpipe

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
	"github.com/otherjamesbrown/reelkit/pkg/layers"
	"github.com/otherjamesbrown/reelkit/pkg/layout"
	"github.com/otherjamesbrown/reelkit/pkg/observability"
	"github.com/otherjamesbrown/reelkit/pkg/transcript"
)

type fixture struct {
	clock   *FakeClock
	index   *transcript.Index
	set     *layers.Set
	pipe    *Pipeline
	metrics *observability.EditorMetrics
	commits []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	idx, err := transcript.Build(&transcript.Source{Segments: []transcript.SourceSegment{
		{Words: []transcript.SourceWord{{Word: "hi", Start: 0, End: 0.5}, {Word: "there", Start: 0.5, End: 1.2}}},
		{Words: []transcript.SourceWord{{Word: "bye", Start: 5, End: 6}}},
	}}, transcript.DefaultBuildOptions())
	require.NoError(t, err)

	canvas := layout.Size{Width: 1080, Height: 1080}
	set := layers.NewSet(canvas, nil)
	require.NoError(t, set.Add(layers.NewSubtitleLayer(canvas, layers.DefaultSubtitleStyle())))

	f := &fixture{
		clock:   NewFakeClock(),
		index:   idx,
		set:     set,
		metrics: observability.NewEditorMetrics(prometheus.NewRegistry()),
	}
	f.pipe = New(idx, set, Config{
		Clock:   f.clock,
		Metrics: f.metrics,
		OnCommit: func(target string, rev uint64) {
			f.commits = append(f.commits, target)
		},
	})
	return f
}

func TestPipeline_LatestTextWins(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{"h", "he", "hey", "hey you"} {
		require.NoError(t, f.pipe.Edit(0, text))
		f.clock.Advance(100 * time.Millisecond)
	}
	c, _ := f.index.ChunkAt(0)
	assert.Equal(t, "hi there", c.Text, "nothing committed inside the window")

	f.clock.Advance(300 * time.Millisecond)
	c, _ = f.index.ChunkAt(0)
	assert.Equal(t, "hey you", c.Text)
	assert.Equal(t, uint64(1), f.pipe.Revision())
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.EditsCoalescedTotal.WithLabelValues("chunk")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EditsCommittedTotal.WithLabelValues("chunk")))
}

func TestPipeline_ChunksIndependent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pipe.Edit(0, "first"))
	f.clock.Advance(200 * time.Millisecond)
	require.NoError(t, f.pipe.Edit(1, "second"))
	assert.Equal(t, 2, f.pipe.Pending())

	f.clock.Advance(200 * time.Millisecond)
	c0, _ := f.index.ChunkAt(0)
	c1, _ := f.index.ChunkAt(1)
	assert.Equal(t, "first", c0.Text)
	assert.Equal(t, "bye", c1.Text)

	f.clock.Advance(200 * time.Millisecond)
	c1, _ = f.index.ChunkAt(1)
	assert.Equal(t, "second", c1.Text)
	assert.Equal(t, []string{"chunk", "chunk"}, f.commits)
}

func TestPipeline_SubtitleAtPullsCommittedText(t *testing.T) {
	f := newFixture(t)
	text, ok := f.pipe.SubtitleAt(0.6)
	require.True(t, ok)
	assert.Equal(t, "hi there", text)

	require.NoError(t, f.pipe.Edit(0, "hello there"))
	text, _ = f.pipe.SubtitleAt(0.6)
	assert.Equal(t, "hi there", text, "pending edits are not drawn")

	f.pipe.Flush()
	text, _ = f.pipe.SubtitleAt(0.6)
	assert.Equal(t, "hello there", text)

	style := layers.DefaultSubtitleStyle()
	style.Uppercase = true
	require.NoError(t, f.set.SetStyle(layers.NameSubtitle, style))
	text, _ = f.pipe.SubtitleAt(0.6)
	assert.Equal(t, "HELLO THERE", text)

	_, ok = f.pipe.SubtitleAt(3)
	assert.False(t, ok)
}

func TestPipeline_EditTitle(t *testing.T) {
	f := newFixture(t)
	f.set.ToggleTitle(true)
	require.NoError(t, f.pipe.EditTitle("My"))
	require.NoError(t, f.pipe.EditTitle("My reel"))
	f.clock.Advance(200 * time.Millisecond)

	l, ok := f.set.Get(layers.NameTitle)
	require.True(t, ok)
	assert.Equal(t, "My reel", l.Text)
	assert.Equal(t, []string{"title"}, f.commits)
}

func TestPipeline_Errors(t *testing.T) {
	f := newFixture(t)
	assert.True(t, rkerrors.IsNotFound(f.pipe.Edit(9, "x")))
	assert.True(t, rkerrors.IsNotFound(f.pipe.Edit(-1, "x")))

	noSet := New(f.index, nil, Config{Clock: f.clock})
	assert.True(t, rkerrors.IsInvalidState(noSet.EditTitle("x")))
}

func TestPipeline_StopDropsPending(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pipe.Edit(0, "lost"))
	f.pipe.Stop()
	f.pipe.Stop()
	f.clock.Advance(time.Second)

	c, _ := f.index.ChunkAt(0)
	assert.Equal(t, "hi there", c.Text)
	assert.Zero(t, f.pipe.Revision())
	assert.True(t, rkerrors.IsInvalidState(f.pipe.Edit(0, "x")))
	assert.True(t, rkerrors.IsInvalidState(f.pipe.EditTitle("x")))
}

func TestPipeline_CommitsUnderLocker(t *testing.T) {
	f := newFixture(t)
	var mu sync.Mutex
	held := false
	p := New(f.index, f.set, Config{
		Clock:  f.clock,
		Locker: &mu,
		OnCommit: func(string, uint64) {
			held = !mu.TryLock()
		},
	})
	require.NoError(t, p.Edit(0, "x"))
	f.clock.Advance(DefaultChunkDelay)
	assert.True(t, held, "commit must run with the locker held")
}

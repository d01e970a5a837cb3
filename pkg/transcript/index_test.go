package transcript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
)

func sw(text string, start, end float64) SourceWord {
	return SourceWord{Word: text, Start: start, End: end}
}

func mustBuild(t *testing.T, segs ...SourceSegment) *Index {
	t.Helper()
	idx, err := Build(&Source{Segments: segs}, DefaultBuildOptions())
	require.NoError(t, err)
	return idx
}

func TestLookup_Scenario(t *testing.T) {
	idx := mustBuild(t, SourceSegment{Words: []SourceWord{sw("hi", 0, 0.5), sw("there", 0.5, 1.2)}})
	require.Equal(t, 1, idx.ChunkCount())

	tests := []struct {
		name string
		t    float64
		want string
		ok   bool
	}{
		{"inside first word", 0.3, "hi", true},
		{"inside second word", 0.9, "there", true},
		{"after segment end", 1.3, "", false},
		{"epsilon hands over early", 0.45, "there", true},
		{"last epsilon of the transcript", 1.15, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := idx.Lookup(tt.t)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				w, found := idx.Word(ref)
				require.True(t, found)
				assert.Equal(t, tt.want, w.Text)
			}
		})
	}
}

func TestLookup_InsideEveryWord(t *testing.T) {
	idx := mustBuild(t,
		SourceSegment{Words: []SourceWord{sw("one", 0, 0.6), sw("two", 0.6, 1.4), sw("three", 1.4, 2.0)}},
		SourceSegment{Words: []SourceWord{sw("four", 3.0, 3.8), sw("five", 3.8, 4.6)}},
	)
	for _, seg := range idx.Segments() {
		for _, ch := range seg.Chunks {
			for _, w := range ch.Words {
				for ts := w.Start; ts < w.End-idx.Epsilon(); ts += 0.05 {
					ref, ok := idx.Lookup(ts)
					require.True(t, ok, "t=%v", ts)
					got, _ := idx.Word(ref)
					assert.Equal(t, w.Text, got.Text, "t=%v", ts)
				}
			}
		}
	}
}

func TestLookup_GapBetweenSegments(t *testing.T) {
	idx := mustBuild(t,
		SourceSegment{Words: []SourceWord{sw("a", 0, 1)}},
		SourceSegment{Words: []SourceWord{sw("b", 3, 4)}},
	)
	_, ok := idx.Lookup(2)
	assert.False(t, ok)

	ref, ok := idx.Lookup(3.5)
	require.True(t, ok)
	assert.Equal(t, WordRef{Segment: 1}, ref)
}

func TestLookup_SegmentBoundary(t *testing.T) {
	idx := mustBuild(t,
		SourceSegment{Words: []SourceWord{sw("a", 0, 1)}},
		SourceSegment{Words: []SourceWord{sw("b", 1, 2)}},
	)
	ref, ok := idx.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, 1, ref.Segment)
}

func TestLookup_MonotonicWithinChunk(t *testing.T) {
	idx := mustBuild(t, SourceSegment{Words: []SourceWord{
		sw("a", 0, 0.3), sw("b", 0.3, 0.7), sw("c", 0.7, 1.2), sw("d", 1.2, 1.5),
	}})
	prev := -1.0
	for ts := 0.0; ts < 1.4; ts += 0.01 {
		ref, ok := idx.Lookup(ts)
		if !ok {
			continue
		}
		w, _ := idx.Word(ref)
		assert.GreaterOrEqual(t, w.Start, prev)
		prev = w.Start
	}
}

func TestLookup_Empty(t *testing.T) {
	idx := mustBuild(t)
	_, ok := idx.Lookup(0)
	assert.False(t, ok)
	assert.Zero(t, idx.Duration())
}

func TestBuild_Malformed(t *testing.T) {
	tests := []struct {
		name string
		segs []SourceSegment
	}{
		{"end before start", []SourceSegment{{Words: []SourceWord{sw("x", 2, 1)}}}},
		{"negative start", []SourceSegment{{Words: []SourceWord{sw("x", -1, 1)}}}},
		{"words out of order", []SourceSegment{{Words: []SourceWord{sw("a", 1, 2), sw("b", 0.5, 0.8)}}}},
		{"overlapping segments", []SourceSegment{
			{Words: []SourceWord{sw("a", 0, 2)}},
			{Words: []SourceWord{sw("b", 1, 3)}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(&Source{Segments: tt.segs}, DefaultBuildOptions())
			require.Error(t, err)
			assert.True(t, rkerrors.IsMalformedTranscript(err))
		})
	}

	_, err := Build(nil, DefaultBuildOptions())
	assert.True(t, rkerrors.IsMalformedTranscript(err))
}

func TestBuild_SkipsEmptySegments(t *testing.T) {
	idx := mustBuild(t,
		SourceSegment{Speaker: "nobody"},
		SourceSegment{Speaker: "Ana", Words: []SourceWord{sw("hello", 0, 1)}},
	)
	require.Len(t, idx.Segments(), 1)
	assert.Equal(t, "Ana", idx.Segments()[0].Speaker)
}

func TestBuild_Chunking(t *testing.T) {
	t.Run("word limit", func(t *testing.T) {
		var words []SourceWord
		for i := 0; i < 9; i++ {
			words = append(words, sw("w", float64(i), float64(i)+0.5))
		}
		idx, err := Build(&Source{Segments: []SourceSegment{{Words: words}}},
			BuildOptions{MaxChunkWords: 4, MaxChunkChars: 100, MaxGap: 10})
		require.NoError(t, err)
		chunks := idx.Segments()[0].Chunks
		require.Len(t, chunks, 3)
		assert.Len(t, chunks[0].Words, 4)
		assert.Len(t, chunks[2].Words, 1)
	})

	t.Run("char limit", func(t *testing.T) {
		idx, err := Build(&Source{Segments: []SourceSegment{{Words: []SourceWord{
			sw("abcde", 0, 1), sw("fghij", 1, 2), sw("k", 2, 3),
		}}}}, BuildOptions{MaxChunkChars: 11, MaxChunkWords: 10, MaxGap: 10})
		require.NoError(t, err)
		chunks := idx.Segments()[0].Chunks
		require.Len(t, chunks, 2)
		assert.Equal(t, "abcde fghij", chunks[0].Text)
		assert.Equal(t, "k", chunks[1].Text)
	})

	t.Run("gap", func(t *testing.T) {
		idx := mustBuild(t, SourceSegment{Words: []SourceWord{sw("a", 0, 1), sw("b", 2.5, 3)}})
		assert.Equal(t, 2, idx.ChunkCount())
	})

	t.Run("trims source spacing", func(t *testing.T) {
		idx := mustBuild(t, SourceSegment{Words: []SourceWord{sw(" hi ", 0, 0.5), sw("there ", 0.5, 1)}})
		c, ok := idx.ChunkAt(0)
		require.True(t, ok)
		assert.Equal(t, "hi there", c.Text)
		assert.Equal(t, 0.0, c.Start())
		assert.Equal(t, 1.0, c.End())
	})
}

func TestEditChunkText(t *testing.T) {
	idx := mustBuild(t,
		SourceSegment{Words: []SourceWord{sw("hi", 0, 0.5), sw("there", 0.5, 1.2)}},
		SourceSegment{Words: []SourceWord{sw("bye", 5, 6)}},
	)
	require.NoError(t, idx.EditChunkText(1, "goodbye now"))

	c, _ := idx.ChunkAt(1)
	assert.Equal(t, "goodbye now", c.Text)
	assert.True(t, c.Edited)
	require.Len(t, c.Words, 1)
	assert.Equal(t, "bye", c.Words[0].Text, "word spans stay authoritative")

	ref, ok := idx.Lookup(5.5)
	require.True(t, ok)
	assert.Equal(t, 1, ref.Segment)

	err := idx.EditChunkText(7, "x")
	assert.True(t, rkerrors.IsNotFound(err))
	err = idx.EditChunkText(-1, "x")
	assert.True(t, rkerrors.IsNotFound(err))
}

func TestEditChunkText_NormalizesNFC(t *testing.T) {
	idx := mustBuild(t, SourceSegment{Words: []SourceWord{sw("cafe", 0, 1)}})
	require.NoError(t, idx.EditChunkText(0, "cafe\u0301"))
	c, _ := idx.ChunkAt(0)
	assert.Equal(t, "caf\u00e9", c.Text)
}

func TestSubtitlesAndCueAt(t *testing.T) {
	idx := mustBuild(t,
		SourceSegment{Words: []SourceWord{sw("hi", 0, 0.5), sw("there", 0.5, 1.2)}},
		SourceSegment{Words: []SourceWord{sw("bye", 5, 6)}},
	)
	cues := idx.Subtitles()
	assert.Equal(t, []Cue{
		{Start: 0, End: 1.2, Text: "hi there"},
		{Start: 5, End: 6, Text: "bye"},
	}, cues)

	cue, ok := idx.CueAt(0.6)
	require.True(t, ok)
	assert.Equal(t, "hi there", cue.Text)

	_, ok = idx.CueAt(0)
	assert.False(t, ok, "cue bounds are exclusive")
	_, ok = idx.CueAt(3)
	assert.False(t, ok)
}

func TestWordNumbering(t *testing.T) {
	idx := mustBuild(t,
		SourceSegment{Words: []SourceWord{sw("a", 0, 1), sw("b", 1, 2)}},
		SourceSegment{Words: []SourceWord{sw("c", 4, 5)}},
	)
	assert.Equal(t, 3, idx.WordCount())
	for n := 0; n < idx.WordCount(); n++ {
		ref, ok := idx.RefForNumber(n)
		require.True(t, ok)
		assert.Equal(t, n, idx.WordNumber(ref))
	}
	assert.Equal(t, -1, idx.WordNumber(WordRef{Segment: 9}))
	_, ok := idx.RefForNumber(3)
	assert.False(t, ok)
}

func TestSourceRoundTrip(t *testing.T) {
	idx := mustBuild(t, SourceSegment{Speaker: "Ana", Words: []SourceWord{sw("hi", 0, 0.5), sw("there", 0.5, 1.2)}})
	again, err := Build(idx.Source(), DefaultBuildOptions())
	require.NoError(t, err)
	assert.Equal(t, idx.Subtitles(), again.Subtitles())
}

func TestTimestamp(t *testing.T) {
	assert.Equal(t, "00:00", Timestamp(0))
	assert.Equal(t, "00:59", Timestamp(59.99))
	assert.Equal(t, "01:05", Timestamp(65.2))
	assert.Equal(t, "125:00", Timestamp(7500))
	assert.Equal(t, "00:00", Timestamp(-3))
}

func TestDecode(t *testing.T) {
	doc := `{"segments":[
		{"speaker_name":"Ana","wdlist":[{"word":"hi","start":0,"end":0.5}]},
		{"speaker_name":"Ben","words":[{"word":"yo","start":1,"end":1.5}]}
	]}`
	src, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, src.Segments, 2)
	assert.Equal(t, "hi", src.Segments[0].WordList()[0].Word)
	assert.Equal(t, "yo", src.Segments[1].WordList()[0].Word)

	_, err = Decode(strings.NewReader("{"))
	assert.True(t, rkerrors.IsMalformedTranscript(err))
}

package transcript

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
)

// DefaultEpsilon compensates for the coarse cadence of playback time
// notifications: a word stops being active this long before its end.
const DefaultEpsilon = 0.1

// BuildOptions controls how segment words are split into display chunks.
type BuildOptions struct {
	// MaxChunkChars caps the rune length of a chunk's joined text.
	MaxChunkChars int
	// MaxChunkWords caps the number of words per chunk.
	MaxChunkWords int
	// MaxGap starts a new chunk when the silence between words reaches it (seconds).
	MaxGap float64
	// Epsilon is the lookup tolerance in seconds.
	Epsilon float64
}

// DefaultBuildOptions returns the chunking used by the editor.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		MaxChunkChars: 32,
		MaxChunkWords: 7,
		MaxGap:        1.0,
		Epsilon:       DefaultEpsilon,
	}
}

type chunkPos struct {
	segment int
	chunk   int
}

// Index owns the segments of one transcript and answers time lookups.
// Index is not safe for concurrent use; the editor session serializes access.
type Index struct {
	segments []Segment
	chunks   []chunkPos
	// wordBase[s][c] is the global number of the first word of chunk c in segment s.
	wordBase  [][]int
	wordCount int
	epsilon   float64
}

// Build validates src and builds an Index. Segments must be time ordered
// and must not overlap; words must not end before they start.
func Build(src *Source, opts BuildOptions) (*Index, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", rkerrors.ErrMalformedTranscript)
	}
	def := DefaultBuildOptions()
	if opts.MaxChunkChars <= 0 {
		opts.MaxChunkChars = def.MaxChunkChars
	}
	if opts.MaxChunkWords <= 0 {
		opts.MaxChunkWords = def.MaxChunkWords
	}
	if opts.MaxGap <= 0 {
		opts.MaxGap = def.MaxGap
	}
	if opts.Epsilon < 0 {
		opts.Epsilon = def.Epsilon
	}

	idx := &Index{epsilon: opts.Epsilon}
	prevEnd := math.Inf(-1)
	for si, ss := range src.Segments {
		words := ss.WordList()
		if len(words) == 0 {
			continue
		}
		seg := Segment{Speaker: ss.Speaker}
		prevStart := math.Inf(-1)
		for wi, w := range words {
			if w.Start < 0 || w.End < w.Start {
				return nil, fmt.Errorf("%w: segment %d word %d has span [%g, %g]",
					rkerrors.ErrMalformedTranscript, si, wi, w.Start, w.End)
			}
			if w.Start < prevStart {
				return nil, fmt.Errorf("%w: segment %d word %d starts before the previous word",
					rkerrors.ErrMalformedTranscript, si, wi)
			}
			prevStart = w.Start
			seg.End = math.Max(seg.End, w.End)
		}
		if words[0].Start < prevEnd {
			return nil, fmt.Errorf("%w: segment %d starts at %g before previous segment end %g",
				rkerrors.ErrMalformedTranscript, si, words[0].Start, prevEnd)
		}
		prevEnd = seg.End
		seg.Chunks = chunkWords(words, opts)
		idx.segments = append(idx.segments, seg)
	}
	idx.reindex()
	return idx, nil
}

// chunkWords splits one segment's words into display lines.
func chunkWords(words []SourceWord, opts BuildOptions) []Chunk {
	var (
		chunks []Chunk
		cur    []Word
		runes  int
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, Chunk{Words: cur, Text: joinWords(cur)})
		cur = nil
		runes = 0
	}
	for _, sw := range words {
		w := Word{Text: norm.NFC.String(strings.TrimSpace(sw.Word)), Start: sw.Start, End: sw.End}
		n := utf8.RuneCountInString(w.Text)
		if len(cur) > 0 {
			gap := w.Start - cur[len(cur)-1].End
			if runes+1+n > opts.MaxChunkChars || len(cur) >= opts.MaxChunkWords || gap >= opts.MaxGap {
				flush()
			}
		}
		if len(cur) > 0 {
			runes++
		}
		runes += n
		cur = append(cur, w)
	}
	flush()
	return chunks
}

func joinWords(words []Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if w.Text != "" {
			parts = append(parts, w.Text)
		}
	}
	return strings.Join(parts, " ")
}

// reindex rebuilds the flattened word lists and global numbering.
func (idx *Index) reindex() {
	idx.chunks = idx.chunks[:0]
	idx.wordBase = make([][]int, len(idx.segments))
	n := 0
	for si := range idx.segments {
		seg := &idx.segments[si]
		seg.words = seg.words[:0]
		idx.wordBase[si] = make([]int, len(seg.Chunks))
		for ci, ch := range seg.Chunks {
			idx.chunks = append(idx.chunks, chunkPos{segment: si, chunk: ci})
			idx.wordBase[si][ci] = n
			for wi := range ch.Words {
				seg.words = append(seg.words, WordRef{Segment: si, Chunk: ci, Word: wi})
			}
			n += len(ch.Words)
		}
	}
	idx.wordCount = n
}

// Epsilon returns the lookup tolerance in seconds.
func (idx *Index) Epsilon() float64 {
	return idx.epsilon
}

// SetEpsilon changes the lookup tolerance. Negative values are ignored.
func (idx *Index) SetEpsilon(eps float64) {
	if eps >= 0 {
		idx.epsilon = eps
	}
}

// Lookup returns the word active at time t.
//
// Segments ending before t are skipped. In the first segment that has not
// ended, the first word with End-Epsilon > t is taken when it has already
// started (Start-Epsilon <= t). Once a segment starts after t, later
// segments cannot match and the scan stops. A miss is not an error.
func (idx *Index) Lookup(t float64) (WordRef, bool) {
	eps := idx.epsilon
	for si := range idx.segments {
		seg := &idx.segments[si]
		if seg.End < t {
			continue
		}
		if seg.Start()-eps > t {
			break
		}
		for _, ref := range seg.words {
			w := seg.Chunks[ref.Chunk].Words[ref.Word]
			if w.End-eps > t {
				if w.Start-eps <= t {
					return ref, true
				}
				return WordRef{}, false
			}
		}
	}
	return WordRef{}, false
}

// Word returns the word at ref.
func (idx *Index) Word(ref WordRef) (Word, bool) {
	if ref.Segment < 0 || ref.Segment >= len(idx.segments) {
		return Word{}, false
	}
	seg := idx.segments[ref.Segment]
	if ref.Chunk < 0 || ref.Chunk >= len(seg.Chunks) {
		return Word{}, false
	}
	ch := seg.Chunks[ref.Chunk]
	if ref.Word < 0 || ref.Word >= len(ch.Words) {
		return Word{}, false
	}
	return ch.Words[ref.Word], true
}

// WordNumber returns the global position of ref in display order, or -1.
func (idx *Index) WordNumber(ref WordRef) int {
	if _, ok := idx.Word(ref); !ok {
		return -1
	}
	return idx.wordBase[ref.Segment][ref.Chunk] + ref.Word
}

// RefForNumber is the inverse of WordNumber.
func (idx *Index) RefForNumber(n int) (WordRef, bool) {
	if n < 0 || n >= idx.wordCount {
		return WordRef{}, false
	}
	for si := range idx.segments {
		words := idx.segments[si].words
		if len(words) == 0 {
			continue
		}
		first := idx.wordBase[si][0]
		if n < first+len(words) {
			return words[n-first], true
		}
	}
	return WordRef{}, false
}

// Chunk returns chunk c of segment s.
func (idx *Index) Chunk(s, c int) (Chunk, bool) {
	if s < 0 || s >= len(idx.segments) || c < 0 || c >= len(idx.segments[s].Chunks) {
		return Chunk{}, false
	}
	return idx.segments[s].Chunks[c], true
}

// ChunkAt returns the chunk with global display number n.
func (idx *Index) ChunkAt(n int) (Chunk, bool) {
	if n < 0 || n >= len(idx.chunks) {
		return Chunk{}, false
	}
	p := idx.chunks[n]
	return idx.segments[p.segment].Chunks[p.chunk], true
}

// Segments returns the segments in time order. The slice must not be modified.
func (idx *Index) Segments() []Segment {
	return idx.segments
}

// ChunkCount returns the number of chunks across all segments.
func (idx *Index) ChunkCount() int {
	return len(idx.chunks)
}

// WordCount returns the number of words across all segments.
func (idx *Index) WordCount() int {
	return idx.wordCount
}

// Duration returns the end of the last segment.
func (idx *Index) Duration() float64 {
	if len(idx.segments) == 0 {
		return 0
	}
	return idx.segments[len(idx.segments)-1].End
}

// EditChunkText replaces the display text of the chunk with global number
// chunkIndex. Word spans are left untouched so timing stays authoritative.
func (idx *Index) EditChunkText(chunkIndex int, text string) error {
	if chunkIndex < 0 || chunkIndex >= len(idx.chunks) {
		return fmt.Errorf("%w: chunk %d", rkerrors.ErrNotFound, chunkIndex)
	}
	p := idx.chunks[chunkIndex]
	ch := &idx.segments[p.segment].Chunks[p.chunk]
	ch.Text = norm.NFC.String(text)
	ch.Edited = true
	return nil
}

// Subtitles derives the subtitle track, one cue per chunk in display order.
func (idx *Index) Subtitles() []Cue {
	cues := make([]Cue, 0, len(idx.chunks))
	for _, p := range idx.chunks {
		ch := idx.segments[p.segment].Chunks[p.chunk]
		cues = append(cues, Cue{Start: ch.Start(), End: ch.End(), Text: ch.Text})
	}
	return cues
}

// CueAt returns the cue strictly containing t, the text drawn by the
// subtitle layer at that time.
func (idx *Index) CueAt(t float64) (Cue, bool) {
	for _, p := range idx.chunks {
		ch := idx.segments[p.segment].Chunks[p.chunk]
		if ch.Start() < t && t < ch.End() {
			return Cue{Start: ch.Start(), End: ch.End(), Text: ch.Text}, true
		}
	}
	return Cue{}, false
}

// Source converts the index back to a source document. Edited chunk text is
// not representable in the source format and is dropped.
func (idx *Index) Source() *Source {
	src := &Source{Segments: make([]SourceSegment, 0, len(idx.segments))}
	for _, seg := range idx.segments {
		ss := SourceSegment{Speaker: seg.Speaker}
		for _, ch := range seg.Chunks {
			for _, w := range ch.Words {
				ss.Words = append(ss.Words, SourceWord{Word: w.Text, Start: w.Start, End: w.End})
			}
		}
		src.Segments = append(src.Segments, ss)
	}
	return src
}

// Timestamp formats t as MM:SS for the transcript side panel.
func Timestamp(t float64) string {
	if t < 0 {
		t = 0
	}
	s := int(math.Floor(t))
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// Package transcript holds the word-timed transcript of an editing session.
//
// A transcript is an ordered list of segments (speaker turns). Each segment
// is split into chunks, the displayed subtitle lines, and each chunk holds
// the timed words it was built from. Word timing stays authoritative for
// playback sync even after a chunk's display text has been edited.
package transcript

// Word is the smallest timed unit of a transcript. Times are in seconds.
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Chunk is one displayed subtitle line backed by one or more words.
type Chunk struct {
	Words []Word `json:"words"`
	// Text is the editable display line. It starts as the joined word texts
	// and is replaced wholesale by user edits.
	Text   string `json:"text"`
	Edited bool   `json:"edited,omitempty"`
}

// Start returns the first word's start time.
func (c Chunk) Start() float64 {
	if len(c.Words) == 0 {
		return 0
	}
	return c.Words[0].Start
}

// End returns the last word's end time.
func (c Chunk) End() float64 {
	if len(c.Words) == 0 {
		return 0
	}
	return c.Words[len(c.Words)-1].End
}

// Segment is a time-bounded transcript unit, usually one speaker turn.
type Segment struct {
	Speaker string  `json:"speaker_name,omitempty"`
	Chunks  []Chunk `json:"chunks"`
	// End is the maximum word end time in the segment.
	End float64 `json:"end"`

	// words is the flattened word list used by Lookup.
	words []WordRef
}

// Start returns the first word's start time.
func (s Segment) Start() float64 {
	if len(s.Chunks) == 0 {
		return 0
	}
	return s.Chunks[0].Start()
}

// WordRef addresses a word by position: segment, chunk within the segment,
// word within the chunk.
type WordRef struct {
	Segment int `json:"segment"`
	Chunk   int `json:"chunk"`
	Word    int `json:"word"`
}

// Cue is one entry of the derived subtitle track.
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

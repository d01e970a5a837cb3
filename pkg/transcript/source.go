package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/asticode/go-astisub"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
)

// Source is the transcript as delivered by the transcription service.
type Source struct {
	Segments []SourceSegment `json:"segments"`
}

// SourceSegment is one speaker turn. Older payloads carry the word list
// under "words" instead of "wdlist".
type SourceSegment struct {
	Speaker  string       `json:"speaker_name,omitempty"`
	Words    []SourceWord `json:"wdlist"`
	AltWords []SourceWord `json:"words,omitempty"`
}

// SourceWord is one timed word of the source payload.
type SourceWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// WordList returns the segment words regardless of which key carried them.
func (s SourceSegment) WordList() []SourceWord {
	if len(s.Words) > 0 {
		return s.Words
	}
	return s.AltWords
}

// Decode parses a transcript source document.
func Decode(r io.Reader) (*Source, error) {
	var src Source
	if err := json.NewDecoder(r).Decode(&src); err != nil {
		return nil, fmt.Errorf("%w: decode transcript: %v", rkerrors.ErrMalformedTranscript, err)
	}
	for i := range src.Segments {
		if len(src.Segments[i].Words) == 0 {
			src.Segments[i].Words = src.Segments[i].AltWords
		}
		src.Segments[i].AltWords = nil
	}
	return &src, nil
}

// LoadFile decodes a transcript source from a JSON file.
func LoadFile(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// ImportSubtitles converts an SRT or WebVTT file into a transcript source.
// Each cue becomes one segment; cue time is spread over its words in
// proportion to their length.
func ImportSubtitles(path string) (*Source, error) {
	return ImportSubtitlesCharset(path, "")
}

// ImportSubtitlesCharset is ImportSubtitles for a file written in charset.
// See ToUTF8 for the empty charset.
func ImportSubtitlesCharset(path, charset string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open subtitles %s: %w", filepath.Base(path), err)
	}
	if data, err = ToUTF8(data, charset); err != nil {
		return nil, fmt.Errorf("subtitles %s: %w", filepath.Base(path), err)
	}
	return ReadSubtitles(bytes.NewReader(data), filepath.Ext(path))
}

// ReadSubtitles is ImportSubtitles for an already open reader. format is a
// file extension such as ".srt" or ".vtt".
func ReadSubtitles(r io.Reader, format string) (*Source, error) {
	var (
		subs *astisub.Subtitles
		err  error
	)
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "srt":
		subs, err = astisub.ReadFromSRT(r)
	case "vtt":
		subs, err = astisub.ReadFromWebVTT(r)
	default:
		return nil, fmt.Errorf("%w: unsupported subtitle format %q", rkerrors.ErrValidation, format)
	}
	if err != nil {
		return nil, fmt.Errorf("read subtitles: %w", err)
	}
	return FromSubtitles(subs), nil
}

// FromSubtitles converts parsed subtitles into a transcript source.
func FromSubtitles(subs *astisub.Subtitles) *Source {
	src := &Source{}
	for _, item := range subs.Items {
		words := strings.Fields(itemText(item))
		if len(words) == 0 {
			continue
		}
		start := item.StartAt.Seconds()
		end := item.EndAt.Seconds()
		src.Segments = append(src.Segments, SourceSegment{
			Words: spreadWords(words, start, end),
		})
	}
	return src
}

func itemText(item *astisub.Item) string {
	var sb strings.Builder
	for i, line := range item.Lines {
		if i > 0 {
			sb.WriteRune(' ')
		}
		for j, li := range line.Items {
			if j > 0 {
				sb.WriteRune(' ')
			}
			sb.WriteString(li.Text)
		}
	}
	return sb.String()
}

func spreadWords(words []string, start, end float64) []SourceWord {
	total := 0
	for _, w := range words {
		total += utf8.RuneCountInString(w)
	}
	span := end - start
	out := make([]SourceWord, len(words))
	seen := 0
	for i, w := range words {
		ws := start + span*float64(seen)/float64(total)
		seen += utf8.RuneCountInString(w)
		we := start + span*float64(seen)/float64(total)
		if i == len(words)-1 {
			we = end
		}
		out[i] = SourceWord{Word: w, Start: ws, End: we}
	}
	return out
}

package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/asticode/go-astisub"

	"github.com/otherjamesbrown/reelkit/pkg/transcript"
)

// SRTMode selects the fractional-second encoding of SRT timestamps.
type SRTMode int

const (
	// SRTStandard writes milliseconds: 1.5s is 00:00:01,500.
	SRTStandard SRTMode = iota
	// SRTLegacyHundredths reproduces files written by earlier versions of
	// the editor, which put hundredths in the millisecond field padded to
	// three digits: 1.5s is 00:00:01,050.
	SRTLegacyHundredths
)

// ParseSRTMode maps "standard" and "legacy-hundredths" to a mode.
func ParseSRTMode(s string) (SRTMode, bool) {
	switch s {
	case "", "standard", "ms":
		return SRTStandard, true
	case "legacy-hundredths", "legacy", "hundredths":
		return SRTLegacyHundredths, true
	default:
		return SRTStandard, false
	}
}

func (m SRTMode) String() string {
	if m == SRTLegacyHundredths {
		return "legacy-hundredths"
	}
	return "standard"
}

// SRTTimestamp formats t (seconds) as HH:MM:SS,mmm under mode.
func SRTTimestamp(t float64, mode SRTMode) string {
	if t < 0 {
		t = 0
	}
	if mode == SRTLegacyHundredths {
		hours := math.Floor(t / 3600)
		t = math.Mod(t, 3600)
		minutes := math.Floor(t / 60)
		t = math.Mod(t, 60)
		seconds := math.Floor(t)
		hundredths := math.Floor(math.Mod(t, 1) * 100)
		return fmt.Sprintf("%02d:%02d:%02d,%03d", int(hours), int(minutes), int(seconds), int(hundredths))
	}
	ms := int64(math.Round(t * 1000))
	return fmt.Sprintf("%02d:%02d:%02d,%03d",
		ms/3_600_000, ms/60_000%60, ms/1000%60, ms%1000)
}

// WriteSRT writes cues as SubRip: numbering from 1, one blank line after
// each entry.
func WriteSRT(w io.Writer, cues []transcript.Cue, mode SRTMode) error {
	bw := bufio.NewWriter(w)
	for i, c := range cues {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			i+1, SRTTimestamp(c.Start, mode), SRTTimestamp(c.End, mode), c.Text); err != nil {
			return fmt.Errorf("write srt entry %d: %w", i+1, err)
		}
	}
	return bw.Flush()
}

// Subtitles converts cues to an astisub document.
func Subtitles(cues []transcript.Cue) *astisub.Subtitles {
	subs := astisub.NewSubtitles()
	for _, c := range cues {
		subs.Items = append(subs.Items, &astisub.Item{
			StartAt: seconds(c.Start),
			EndAt:   seconds(c.End),
			Lines:   []astisub.Line{{Items: []astisub.LineItem{{Text: c.Text}}}},
		})
	}
	return subs
}

// WriteVTT writes cues as WebVTT.
func WriteVTT(w io.Writer, cues []transcript.Cue) error {
	if len(cues) == 0 {
		_, err := io.WriteString(w, "WEBVTT\n")
		return err
	}
	if err := Subtitles(cues).WriteToWebVTT(w); err != nil {
		return fmt.Errorf("write vtt: %w", err)
	}
	return nil
}

func seconds(t float64) time.Duration {
	return time.Duration(math.Round(t * float64(time.Second)))
}

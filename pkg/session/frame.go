package session

import (
	"github.com/otherjamesbrown/reelkit/pkg/layers"
	"github.com/otherjamesbrown/reelkit/pkg/layout"
	"github.com/otherjamesbrown/reelkit/pkg/transcript"
)

// Frame is what the presentation layer draws for one playback time.
type Frame struct {
	Time       float64
	Canvas     layout.Size
	Transform  layout.Transform
	Background string
	// Layers are back to front.
	Layers []DrawnLayer
	Active *transcript.WordRef
	// Buffering asks for the spinner overlay.
	Buffering bool
}

// DrawnLayer is a layer with its resolved geometry and content.
type DrawnLayer struct {
	Layer layers.Layer
	// Box is in canvas pixels, Screen in container pixels.
	Box    layout.Rect
	Screen layout.Rect
	// Text is the text to render for text layers; empty hides the subtitle.
	Text string
}

// Draw assembles the frame for time t. Subtitle text is pulled from the
// transcript here, so edits show up on the next draw after they commit.
func (e *Editor) Draw(t float64) (Frame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Frame{}, errClosed
	}
	settings := e.set.Settings()
	f := Frame{
		Time:       t,
		Canvas:     e.set.Canvas(),
		Transform:  e.transform,
		Background: settings.BackgroundColor,
		Buffering:  e.buffering,
	}
	if ref, ok := e.sync.Active(); ok {
		f.Active = &ref
	}
	for _, l := range e.set.Layers() {
		box, ok := e.set.BoundingBox(l.Name)
		if !ok {
			box = l.Bounds()
		}
		d := DrawnLayer{Layer: l, Box: box, Screen: e.transform.ToScreen(box)}
		switch l.Kind {
		case layers.KindSubtitle:
			if settings.SubtitleEnabled {
				d.Text, _ = e.pipe.SubtitleAt(t)
			}
		case layers.KindTitle:
			d.Text = l.Style.Render(l.Text)
		}
		f.Layers = append(f.Layers, d)
	}
	return f, nil
}

// Layer returns the drawn layer with the given name.
func (f Frame) Layer(name string) (DrawnLayer, bool) {
	for _, d := range f.Layers {
		if d.Layer.Name == name {
			return d, true
		}
	}
	return DrawnLayer{}, false
}

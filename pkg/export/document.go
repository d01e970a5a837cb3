// Package export flattens the layer set and transcript into the documents
// consumed outside the editor: the render export document, the saved
// project document and subtitle files.
package export

import (
	"fmt"
	"sort"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
	"github.com/otherjamesbrown/reelkit/pkg/layers"
	"github.com/otherjamesbrown/reelkit/pkg/layout"
	"github.com/otherjamesbrown/reelkit/pkg/transcript"
)

// Document is the export contract sent to the render service.
type Document struct {
	Name   string           `json:"name"`
	Src    string           `json:"src,omitempty"`
	Canvas Canvas           `json:"canvas"`
	Layers map[string]Entry `json:"layers"`
}

// Canvas describes the composition frame.
type Canvas struct {
	Width           float64 `json:"width"`
	Height          float64 `json:"height"`
	BackgroundColor string  `json:"backgroundColor"`
	TitleEnabled    bool    `json:"titleEnabled"`
	SubtitleEnabled bool    `json:"subtitleEnabled"`
	AspectRatio     string  `json:"aspectRatio,omitempty"`
}

// Size returns the canvas dimensions.
func (c Canvas) Size() layout.Size {
	return layout.Size{Width: c.Width, Height: c.Height}
}

// Entry is one layer of a document. Geometry is the top-left bounding box
// in canvas pixels; Index is the z-position in the layer set.
type Entry struct {
	Index  int     `json:"index"`
	Type   string  `json:"type"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Name string `json:"name,omitempty"`
	Text string `json:"text,omitempty"`

	// Subtitle only.
	Subtitles []transcript.Cue `json:"subtitles,omitempty"`

	// Title and subtitle.
	*layers.TextStyle
	FontLink string `json:"fontLink,omitempty"`

	// Video and image.
	URL     string `json:"url,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// Box returns the entry geometry.
func (e Entry) Box() layout.Rect {
	return layout.Rect{Left: e.Left, Top: e.Top, Width: e.Width, Height: e.Height}
}

// Options carries the values the layer set does not know.
type Options struct {
	// Name is the output file name chosen by the user.
	Name string
	// Src is the uploaded video file name.
	Src string
	// Font is the active font family. Zero means layers.DefaultFont.
	Font layers.Font
}

func (o Options) font() layers.Font {
	if o.Font.Family == "" {
		return layers.DefaultFont
	}
	return o.Font
}

// Serialize builds the export document. Layers are emitted with their
// current z-position; a layer absent from the set is omitted, and the title
// is emitted only while the title flag is on. Geometry comes from the
// rendering surface when available and from the model otherwise.
func Serialize(set *layers.Set, index *transcript.Index, canvas layout.Size, opts Options) (*Document, error) {
	if set == nil {
		return nil, fmt.Errorf("%w: nil layer set", rkerrors.ErrInvalidState)
	}
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: export name is required", rkerrors.ErrValidation)
	}
	if !canvas.Valid() {
		return nil, fmt.Errorf("%w: canvas %gx%g", rkerrors.ErrValidation, canvas.Width, canvas.Height)
	}

	settings := set.Settings()
	doc := &Document{
		Name:   opts.Name,
		Src:    opts.Src,
		Canvas: canvasOf(canvas, settings),
		Layers: make(map[string]Entry),
	}
	for i, l := range set.Layers() {
		if l.Kind == layers.KindTitle && !settings.TitleEnabled {
			continue
		}
		doc.Layers[l.Name] = entryOf(set, index, l, i, opts.font())
	}
	return doc, nil
}

func canvasOf(size layout.Size, s layers.CanvasSettings) Canvas {
	return Canvas{
		Width:           size.Width,
		Height:          size.Height,
		BackgroundColor: s.BackgroundColor,
		TitleEnabled:    s.TitleEnabled,
		SubtitleEnabled: s.SubtitleEnabled,
		AspectRatio:     string(s.AspectRatio),
	}
}

func entryOf(set *layers.Set, index *transcript.Index, l layers.Layer, z int, font layers.Font) Entry {
	box, ok := set.BoundingBox(l.Name)
	if !ok {
		box = l.Bounds()
	}
	e := Entry{
		Index:  z,
		Type:   string(l.Kind),
		Left:   box.Left,
		Top:    box.Top,
		Width:  box.Width,
		Height: box.Height,
	}
	switch l.Kind {
	case layers.KindTitle, layers.KindSubtitle:
		style := l.Style
		style.FontFamily = font.Family
		e.TextStyle = &style
		e.FontLink = layers.ResolveFontLink(font, style.FontWeight, style.Italic).URL
		e.Text = l.Text
		if l.Kind == layers.KindSubtitle {
			e.Subtitles = []transcript.Cue{}
			if index != nil {
				e.Subtitles = index.Subtitles()
			}
		}
	case layers.KindVideo:
		e.URL = l.Media.URL
		e.Quality = l.Media.Quality
	case layers.KindImage:
		e.Name = l.Name
		e.URL = l.Media.URL
	}
	return e
}

// Reconstruct rebuilds layers from a document, ordered by Index. Text
// layers get their center-origin position back from the bounding box.
func Reconstruct(doc *Document) []layers.Layer {
	type keyed struct {
		name  string
		entry Entry
	}
	entries := make([]keyed, 0, len(doc.Layers))
	for name, e := range doc.Layers {
		entries = append(entries, keyed{name, e})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].entry.Index != entries[j].entry.Index {
			return entries[i].entry.Index < entries[j].entry.Index
		}
		return entries[i].name < entries[j].name
	})

	out := make([]layers.Layer, 0, len(entries))
	for _, k := range entries {
		out = append(out, layerOf(k.name, k.entry))
	}
	return out
}

func layerOf(name string, e Entry) layers.Layer {
	l := layers.Layer{
		Name:   name,
		Kind:   layers.Kind(e.Type),
		Size:   layout.Size{Width: e.Width, Height: e.Height},
		Origin: layers.OriginTopLeft,
		Text:   e.Text,
		Media:  layers.Media{URL: e.URL, Quality: e.Quality},
	}
	l.Position = layers.Position{Left: e.Left, Top: e.Top}
	if l.IsText() {
		l.Origin = layers.OriginCenter
		l.Position = layers.Position{Left: e.Left + e.Width/2, Top: e.Top + e.Height/2}
		if e.TextStyle != nil {
			l.Style = *e.TextStyle
		}
	}
	if l.Kind == layers.KindVideo {
		// the fitted box has the media aspect ratio
		l.Media.Intrinsic = layout.Size{Width: e.Width, Height: e.Height}
	}
	return l
}

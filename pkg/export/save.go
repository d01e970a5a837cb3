package export

import (
	"fmt"
	"sort"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
	"github.com/otherjamesbrown/reelkit/pkg/layers"
	"github.com/otherjamesbrown/reelkit/pkg/layout"
	"github.com/otherjamesbrown/reelkit/pkg/transcript"
)

// SaveDocument is the persisted project: enough to rebuild the canvas.
type SaveDocument struct {
	ProjectName string     `json:"projectName"`
	Layers      SaveLayers `json:"layers"`
}

// SaveLayers groups the saved layers by role. The title is always saved so
// a hidden title keeps its text; its Index is -1 while hidden.
type SaveLayers struct {
	Canvas   Canvas  `json:"canvas"`
	Title    *Entry  `json:"title,omitempty"`
	Subtitle *Entry  `json:"subtitle,omitempty"`
	Video    *Entry  `json:"video,omitempty"`
	Images   []Entry `json:"images"`
}

// NewSaveDocument builds the save contract for the current editor state.
func NewSaveDocument(projectName string, set *layers.Set, index *transcript.Index, opts Options) (*SaveDocument, error) {
	if projectName == "" {
		return nil, fmt.Errorf("%w: project name is required", rkerrors.ErrValidation)
	}
	if set == nil {
		return nil, fmt.Errorf("%w: nil layer set", rkerrors.ErrInvalidState)
	}
	font := opts.font()
	doc := &SaveDocument{
		ProjectName: projectName,
		Layers: SaveLayers{
			Canvas: canvasOf(set.Canvas(), set.Settings()),
			Images: []Entry{},
		},
	}

	title := set.Title()
	te := entryOf(set, index, title, set.Index(layers.NameTitle), font)
	doc.Layers.Title = &te

	for i, l := range set.Layers() {
		e := entryOf(set, index, l, i, font)
		switch l.Kind {
		case layers.KindSubtitle:
			doc.Layers.Subtitle = &e
		case layers.KindVideo:
			doc.Layers.Video = &e
		case layers.KindImage:
			doc.Layers.Images = append(doc.Layers.Images, e)
		}
	}
	return doc, nil
}

// Restored is the canvas state rebuilt from a SaveDocument.
type Restored struct {
	Canvas   layout.Size
	Settings layers.CanvasSettings
	// Layers are the visible layers back to front.
	Layers []layers.Layer
	// Title is the title layer, also when it was hidden.
	Title *layers.Layer
	// Subtitles is the saved subtitle track including edited text.
	Subtitles []transcript.Cue
}

// LoadSaveDocument rebuilds the canvas state of a saved project.
func LoadSaveDocument(doc *SaveDocument) (*Restored, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil save document", rkerrors.ErrValidation)
	}
	c := doc.Layers.Canvas
	if !c.Size().Valid() {
		return nil, fmt.Errorf("%w: saved canvas %gx%g", rkerrors.ErrValidation, c.Width, c.Height)
	}
	r := &Restored{
		Canvas: c.Size(),
		Settings: layers.CanvasSettings{
			BackgroundColor: c.BackgroundColor,
			TitleEnabled:    c.TitleEnabled,
			SubtitleEnabled: c.SubtitleEnabled,
			AspectRatio:     layout.Preset(c.AspectRatio),
		},
	}

	type placed struct {
		index int
		layer layers.Layer
	}
	var visible []placed
	add := func(name string, e *Entry) {
		if e == nil {
			return
		}
		l := layerOf(name, *e)
		if e.Index >= 0 {
			visible = append(visible, placed{e.Index, l})
		}
		if l.Kind == layers.KindTitle {
			r.Title = &l
		}
	}
	add(layers.NameTitle, doc.Layers.Title)
	add(layers.NameSubtitle, doc.Layers.Subtitle)
	add(layers.NameVideo, doc.Layers.Video)
	for i := range doc.Layers.Images {
		img := doc.Layers.Images[i]
		if img.Name == "" {
			return nil, fmt.Errorf("%w: saved image %d has no name", rkerrors.ErrValidation, i)
		}
		add(img.Name, &img)
	}
	sort.SliceStable(visible, func(i, j int) bool { return visible[i].index < visible[j].index })
	for _, p := range visible {
		r.Layers = append(r.Layers, p.layer)
	}
	if doc.Layers.Subtitle != nil {
		r.Subtitles = doc.Layers.Subtitle.Subtitles
	}
	return r, nil
}

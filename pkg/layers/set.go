package layers

import (
	"fmt"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
	"github.com/otherjamesbrown/reelkit/pkg/layout"
)

// DuplicateNameError is returned by Add when the name is already taken.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("layer %q already exists", e.Name)
}

// Unwrap lets callers match the error with rkerrors.IsConflict.
func (e *DuplicateNameError) Unwrap() error {
	return rkerrors.ErrConflict
}

// CanvasSettings are the composition-wide settings. TitleEnabled is kept
// here, apart from the title layer itself, so it survives the layer being
// removed from the live canvas.
type CanvasSettings struct {
	BackgroundColor string        `json:"backgroundColor"`
	TitleEnabled    bool          `json:"titleEnabled"`
	SubtitleEnabled bool          `json:"subtitleEnabled"`
	AspectRatio     layout.Preset `json:"aspectRatio"`
}

// DefaultCanvasSettings returns the settings of a new project.
func DefaultCanvasSettings() CanvasSettings {
	return CanvasSettings{
		BackgroundColor: "#000000",
		SubtitleEnabled: true,
		AspectRatio:     layout.PresetSquare,
	}
}

// Set is the ordered collection of layers. Index 0 is drawn first.
// Set is not safe for concurrent use.
type Set struct {
	layers   []Layer
	canvas   layout.Size
	settings CanvasSettings
	surface  Surface
	// title is re-added by ToggleTitle after the layer was hidden.
	title Layer
}

// NewSet creates an empty set for the given canvas. surface may be nil.
func NewSet(canvas layout.Size, surface Surface) *Set {
	s := &Set{
		canvas:   canvas,
		settings: DefaultCanvasSettings(),
		surface:  surface,
		title:    NewTitleLayer(canvas, DefaultTitleText, DefaultTitleStyle()),
	}
	s.emit(Mutation{Kind: MutationCanvas, Canvas: canvas})
	return s
}

// Bind attaches a surface and replays the current state onto it.
func (s *Set) Bind(surface Surface) {
	s.surface = surface
	s.emit(Mutation{Kind: MutationCanvas, Canvas: s.canvas})
	for i, l := range s.layers {
		s.emit(Mutation{Kind: MutationAdd, Name: l.Name, Layer: l, Index: i})
	}
}

func (s *Set) emit(m Mutation) {
	if s.surface != nil {
		s.surface.Apply(m)
	}
}

// Canvas returns the logical canvas size.
func (s *Set) Canvas() layout.Size {
	return s.canvas
}

// Settings returns the canvas settings.
func (s *Set) Settings() CanvasSettings {
	return s.settings
}

// SetBackgroundColor changes the canvas background.
func (s *Set) SetBackgroundColor(color string) {
	s.settings.BackgroundColor = color
}

// SetAspectRatio records the preset the canvas was sized from.
func (s *Set) SetAspectRatio(p layout.Preset) {
	s.settings.AspectRatio = p
}

// Len returns the number of layers.
func (s *Set) Len() int {
	return len(s.layers)
}

// Add appends layer on top of the stack. A taken name yields
// *DuplicateNameError; a second video, title or subtitle layer yields
// ErrInvalidState.
func (s *Set) Add(layer Layer) error {
	if layer.Name == "" {
		return fmt.Errorf("%w: layer name is required", rkerrors.ErrValidation)
	}
	if s.Index(layer.Name) >= 0 {
		return &DuplicateNameError{Name: layer.Name}
	}
	if layer.Kind != KindImage {
		for _, l := range s.layers {
			if l.Kind == layer.Kind {
				return fmt.Errorf("%w: a %s layer already exists", rkerrors.ErrInvalidState, layer.Kind)
			}
		}
	}
	s.layers = append(s.layers, layer)
	s.emit(Mutation{Kind: MutationAdd, Name: layer.Name, Layer: layer, Index: len(s.layers) - 1})
	return nil
}

// Remove deletes the named layer. Removing an absent layer is a no-op.
func (s *Set) Remove(name string) {
	i := s.Index(name)
	if i < 0 {
		return
	}
	s.layers = append(s.layers[:i], s.layers[i+1:]...)
	s.emit(Mutation{Kind: MutationRemove, Name: name})
}

// Get returns a copy of the named layer.
func (s *Set) Get(name string) (Layer, bool) {
	if i := s.Index(name); i >= 0 {
		return s.layers[i], true
	}
	return Layer{}, false
}

// Index returns the z-position of the named layer, or -1.
func (s *Set) Index(name string) int {
	for i, l := range s.layers {
		if l.Name == name {
			return i
		}
	}
	return -1
}

// Layers returns a copy of all layers back to front.
func (s *Set) Layers() []Layer {
	out := make([]Layer, len(s.layers))
	copy(out, s.layers)
	return out
}

// Images returns the image layers back to front.
func (s *Set) Images() []Layer {
	var out []Layer
	for _, l := range s.layers {
		if l.Kind == KindImage {
			out = append(out, l)
		}
	}
	return out
}

// SendToBack moves the named layer to index 0.
func (s *Set) SendToBack(name string) error {
	return s.reorder(name, 0)
}

// BringToFront moves the named layer to the top.
func (s *Set) BringToFront(name string) error {
	return s.reorder(name, len(s.layers)-1)
}

func (s *Set) reorder(name string, to int) error {
	i := s.Index(name)
	if i < 0 {
		return fmt.Errorf("%w: layer %q", rkerrors.ErrNotFound, name)
	}
	if i == to {
		return nil
	}
	l := s.layers[i]
	s.layers = append(s.layers[:i], s.layers[i+1:]...)
	s.layers = append(s.layers[:to], append([]Layer{l}, s.layers[to:]...)...)
	s.emit(Mutation{Kind: MutationReorder, Name: name, Index: to})
	return nil
}

// update applies fn to the named layer and replays the result.
func (s *Set) update(name string, fn func(l *Layer) error) error {
	i := s.Index(name)
	if i < 0 {
		return fmt.Errorf("%w: layer %q", rkerrors.ErrNotFound, name)
	}
	l := s.layers[i]
	if err := fn(&l); err != nil {
		return err
	}
	s.layers[i] = l
	if l.Kind == KindTitle {
		s.title = l
	}
	s.emit(Mutation{Kind: MutationUpdate, Name: name, Layer: l, Index: i})
	return nil
}

// Move places the layer origin at pos.
func (s *Set) Move(name string, pos Position) error {
	return s.update(name, func(l *Layer) error {
		l.Position = pos
		return nil
	})
}

// Resize changes the layer box size.
func (s *Set) Resize(name string, size layout.Size) error {
	if !size.Valid() {
		return fmt.Errorf("%w: layer size must be positive", rkerrors.ErrValidation)
	}
	return s.update(name, func(l *Layer) error {
		l.Size = size
		return nil
	})
}

// SetText changes the text of a title or subtitle layer.
func (s *Set) SetText(name, text string) error {
	return s.update(name, func(l *Layer) error {
		if !l.IsText() {
			return fmt.Errorf("%w: %s layer %q has no text", rkerrors.ErrInvalidState, l.Kind, name)
		}
		l.Text = text
		return nil
	})
}

// SetStyle changes the text style of a title or subtitle layer.
func (s *Set) SetStyle(name string, style TextStyle) error {
	return s.update(name, func(l *Layer) error {
		if !l.IsText() {
			return fmt.Errorf("%w: %s layer %q has no text style", rkerrors.ErrInvalidState, l.Kind, name)
		}
		l.Style = style
		l.Size.Height = style.FontSize * DefaultLineHeight
		return nil
	})
}

// BoundingBox asks the surface for the rendered box of the named layer.
// It reports false when no surface is bound or the layer is not rendered.
func (s *Set) BoundingBox(name string) (layout.Rect, bool) {
	if s.surface == nil || s.Index(name) < 0 {
		return layout.Rect{}, false
	}
	return s.surface.BoundingBox(name)
}

// RepositionForCanvasSize switches to a new canvas size. The video is refit
// to the new frame, the subtitle and title keep their fractional anchors,
// and images keep their user-authored placement.
func (s *Set) RepositionForCanvasSize(size layout.Size) {
	s.canvas = size
	s.emit(Mutation{Kind: MutationCanvas, Canvas: size})
	s.title.Position = Position{Left: titleAnchorX * size.Width, Top: titleAnchorY * size.Height}

	for i := range s.layers {
		l := &s.layers[i]
		switch l.Kind {
		case KindVideo:
			box := layout.FitMedia(size, l.Media.Intrinsic)
			l.Position = Position{Left: box.Left, Top: box.Top}
			l.Size = layout.Size{Width: box.Width, Height: box.Height}
		case KindSubtitle:
			l.Position = Position{Left: subtitleAnchorX * size.Width, Top: subtitleAnchorY * size.Height}
		case KindTitle:
			l.Position = s.title.Position
		default:
			continue
		}
		s.emit(Mutation{Kind: MutationUpdate, Name: l.Name, Layer: *l, Index: i})
	}
}

// ToggleTitle shows or hides the title layer. It is idempotent: showing an
// already shown title or hiding a hidden one changes nothing.
func (s *Set) ToggleTitle(show bool) {
	s.settings.TitleEnabled = show
	present := s.Index(NameTitle) >= 0
	switch {
	case show && !present:
		_ = s.Add(s.title)
	case !show && present:
		s.title, _ = s.Get(NameTitle)
		s.Remove(NameTitle)
	}
}

// TitleEnabled reports the title visibility flag.
func (s *Set) TitleEnabled() bool {
	return s.settings.TitleEnabled
}

// SetTitle replaces the title used when the title is shown.
func (s *Set) SetTitle(text string) error {
	if s.Index(NameTitle) >= 0 {
		return s.SetText(NameTitle, text)
	}
	s.title.Text = text
	return nil
}

// SetHiddenTitle replaces the title kept while the title is toggled off.
// The title shown by the next ToggleTitle(true) is l.
func (s *Set) SetHiddenTitle(l Layer) error {
	if l.Kind != KindTitle {
		return fmt.Errorf("%w: %s layer %q is not a title", rkerrors.ErrValidation, l.Kind, l.Name)
	}
	if s.Index(NameTitle) >= 0 {
		return fmt.Errorf("%w: title is shown", rkerrors.ErrInvalidState)
	}
	s.title = l
	return nil
}

// Title returns the title layer, or the hidden title when it is toggled off.
func (s *Set) Title() Layer {
	if l, ok := s.Get(NameTitle); ok {
		return l
	}
	return s.title
}

// SetSubtitleEnabled sets the subtitle visibility flag.
func (s *Set) SetSubtitleEnabled(on bool) {
	s.settings.SubtitleEnabled = on
}

// SubtitleEnabled reports the subtitle visibility flag.
func (s *Set) SubtitleEnabled() bool {
	return s.settings.SubtitleEnabled
}

// Restore replaces the whole set, as when a saved project is loaded.
// The layers are checked against an empty set first; on error the set is
// left unchanged.
func (s *Set) Restore(canvas layout.Size, settings CanvasSettings, layers []Layer) error {
	scratch := &Set{canvas: canvas, settings: settings}
	for _, l := range layers {
		if err := scratch.Add(l); err != nil {
			return err
		}
	}

	for _, l := range s.Layers() {
		s.Remove(l.Name)
	}
	s.canvas = canvas
	s.settings = settings
	s.emit(Mutation{Kind: MutationCanvas, Canvas: canvas})
	for i, l := range scratch.layers {
		s.layers = append(s.layers, l)
		s.emit(Mutation{Kind: MutationAdd, Name: l.Name, Layer: l, Index: i})
		if l.Kind == KindTitle {
			s.title = l
		}
	}
	return nil
}

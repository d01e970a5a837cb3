// Package layers models the composition layers of a reel: one video, an
// optional title, the subtitle line and any number of images.
//
// Layers are plain values. A Set owns their order (index 0 is the back) and
// replays every change onto a Surface, the rendering side that also answers
// bounding-box queries.
package layers

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/otherjamesbrown/reelkit/pkg/layout"
)

// Kind is the layer variant.
type Kind string

const (
	KindVideo    Kind = "video"
	KindTitle    Kind = "title"
	KindSubtitle Kind = "subtitle"
	KindImage    Kind = "image"
)

// Fixed names of the singleton layers.
const (
	NameVideo    = "video"
	NameTitle    = "title"
	NameSubtitle = "subtitle"
)

// Default text box geometry.
const (
	TextBoxWidth      = 400
	DefaultLineHeight = 1.16
	DefaultTitleText  = "Transcript"
	ImageDefaultLeft  = 100
	ImageDefaultTop   = 60
	ImageDefaultWidth = 200
)

const (
	subtitleAnchorX     = 0.5
	subtitleAnchorY     = 0.9
	titleAnchorX        = 0.5
	titleAnchorY        = 0.1
	defaultVideoQuality = "1080p"
)

// Origin is the point of the layer box that Position refers to.
type Origin string

const (
	OriginTopLeft Origin = "top-left"
	OriginCenter  Origin = "center"
)

// Position is the placement of a layer's origin in canvas pixels.
type Position struct {
	Left float64 `json:"left"`
	Top  float64 `json:"top"`
}

// TextStyle holds the style attributes of title and subtitle layers.
type TextStyle struct {
	FontFamily   string  `json:"fontFamily,omitempty"`
	FontSize     float64 `json:"fontSize"`
	FontWeight   int     `json:"fontWeight"`
	Italic       bool    `json:"italic"`
	Uppercase    bool    `json:"uppercase"`
	Color        string  `json:"color"`
	OutlineColor string  `json:"outlineColor"`
	OutlineWidth float64 `json:"outlineWidth"`
}

// DefaultSubtitleStyle returns the subtitle style of a new project.
func DefaultSubtitleStyle() TextStyle {
	return TextStyle{
		FontFamily:   DefaultFont.Family,
		FontSize:     40,
		FontWeight:   400,
		Color:        "#000000",
		OutlineColor: "#000000",
	}
}

// DefaultTitleStyle returns the title style of a new project.
func DefaultTitleStyle() TextStyle {
	s := DefaultSubtitleStyle()
	s.FontSize = 100
	return s
}

var upper = cases.Upper(language.Und)

// Render applies text transforms of the style to text.
func (s TextStyle) Render(text string) string {
	if s.Uppercase {
		return upper.String(text)
	}
	return text
}

// Media describes the source behind a video or image layer.
type Media struct {
	URL      string `json:"url,omitempty"`
	Quality  string `json:"quality,omitempty"`
	FileName string `json:"fileName,omitempty"`

	// Intrinsic is the decoded pixel size, used to refit the video layer.
	Intrinsic layout.Size `json:"intrinsic"`
}

// Layer is one visual element of the composition.
type Layer struct {
	Name     string      `json:"name"`
	Kind     Kind        `json:"type"`
	Position Position    `json:"position"`
	Size     layout.Size `json:"size"`
	Origin   Origin      `json:"origin"`
	Style    TextStyle   `json:"style"`
	Text     string      `json:"text,omitempty"`
	Media    Media       `json:"media"`
}

// IsText reports whether the layer carries text and a text style.
func (l Layer) IsText() bool {
	return l.Kind == KindTitle || l.Kind == KindSubtitle
}

// Bounds returns the layer box with its top-left corner, honouring Origin.
func (l Layer) Bounds() layout.Rect {
	r := layout.Rect{Left: l.Position.Left, Top: l.Position.Top, Width: l.Size.Width, Height: l.Size.Height}
	if l.Origin == OriginCenter {
		r.Left -= l.Size.Width / 2
		r.Top -= l.Size.Height / 2
	}
	return r
}

func textSize(style TextStyle) layout.Size {
	return layout.Size{Width: TextBoxWidth, Height: style.FontSize * DefaultLineHeight}
}

// NewVideoLayer fits a video of the given intrinsic size into canvas.
func NewVideoLayer(canvas layout.Size, media Media) Layer {
	if media.Quality == "" {
		media.Quality = defaultVideoQuality
	}
	box := layout.FitMedia(canvas, media.Intrinsic)
	return Layer{
		Name:     NameVideo,
		Kind:     KindVideo,
		Position: Position{Left: box.Left, Top: box.Top},
		Size:     layout.Size{Width: box.Width, Height: box.Height},
		Origin:   OriginTopLeft,
		Media:    media,
	}
}

// NewSubtitleLayer returns the subtitle text box anchored bottom-center.
func NewSubtitleLayer(canvas layout.Size, style TextStyle) Layer {
	return Layer{
		Name:     NameSubtitle,
		Kind:     KindSubtitle,
		Position: Position{Left: subtitleAnchorX * canvas.Width, Top: subtitleAnchorY * canvas.Height},
		Size:     textSize(style),
		Origin:   OriginCenter,
		Style:    style,
	}
}

// NewTitleLayer returns the title text box anchored top-center.
func NewTitleLayer(canvas layout.Size, text string, style TextStyle) Layer {
	if text == "" {
		text = DefaultTitleText
	}
	return Layer{
		Name:     NameTitle,
		Kind:     KindTitle,
		Position: Position{Left: titleAnchorX * canvas.Width, Top: titleAnchorY * canvas.Height},
		Size:     textSize(style),
		Origin:   OriginCenter,
		Style:    style,
		Text:     text,
	}
}

// NewImageLayer places an uploaded image at the default spot, scaled to the
// default width. name should come from NewImageName.
func NewImageLayer(name string, media Media) Layer {
	size := layout.Size{Width: ImageDefaultWidth, Height: ImageDefaultWidth}
	if media.Intrinsic.Valid() {
		size.Height = ImageDefaultWidth * media.Intrinsic.Height / media.Intrinsic.Width
	}
	return Layer{
		Name:     name,
		Kind:     KindImage,
		Position: Position{Left: ImageDefaultLeft, Top: ImageDefaultTop},
		Size:     size,
		Origin:   OriginTopLeft,
		Media:    media,
	}
}

// NewImageName derives a unique layer name from an uploaded file name by
// inserting the upload time in unix milliseconds before the extension:
// "photo.png" becomes "photo1700000000000.png".
func NewImageName(file string, now time.Time) string {
	stamp := strconv.FormatInt(now.UnixMilli(), 10)
	if !strings.Contains(file, ".") {
		return file + stamp
	}
	return strings.Join(strings.Split(file, "."), stamp+".")
}

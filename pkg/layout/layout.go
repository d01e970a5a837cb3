// Package layout computes how the fixed-aspect composition canvas is scaled
// into the resizable on-screen container.
package layout

import "math"

// Default on-screen caps for the editor preview, in CSS pixels.
const (
	DefaultMaxHeight = 600
	DefaultMaxWidth  = 800
)

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Landscape reports whether the size is strictly wider than tall.
func (s Size) Landscape() bool {
	return s.Width > s.Height
}

// Rect is an axis-aligned box with its top-left corner at (Left, Top).
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Transform is the uniform scale applied to the canvas and the resulting
// on-screen box.
type Transform struct {
	Scale     float64 `json:"scale"`
	BoxWidth  float64 `json:"box_width"`
	BoxHeight float64 `json:"box_height"`
}

// Limits caps the rendered box. Zero fields are unbounded.
type Limits struct {
	MaxWidth  float64
	MaxHeight float64
}

// DefaultLimits returns the preview caps used by the editor.
func DefaultLimits() Limits {
	return Limits{MaxWidth: DefaultMaxWidth, MaxHeight: DefaultMaxHeight}
}

// FitScale returns the unclamped scale that fits the canvas's longer side
// into the matching container side.
func FitScale(canvas, container Size) float64 {
	if !canvas.Valid() {
		return 0
	}
	if canvas.Landscape() {
		return math.Max(container.Width, 0) / canvas.Width
	}
	return math.Max(container.Height, 0) / canvas.Height
}

// ComputeTransform fits canvas into container and clamps the result so the
// rendered height never exceeds maxHeightCap. A non-positive cap disables
// the clamp. A degenerate canvas yields the zero Transform.
func ComputeTransform(canvas, container Size, maxHeightCap float64) Transform {
	return ComputeTransformWithLimits(canvas, container, Limits{MaxHeight: maxHeightCap})
}

// ComputeTransformWithLimits is ComputeTransform with an additional width
// cap that applies to landscape canvases.
func ComputeTransformWithLimits(canvas, container Size, limits Limits) Transform {
	if !canvas.Valid() {
		return Transform{}
	}
	scale := FitScale(canvas, container)
	if limits.MaxHeight > 0 {
		scale = math.Min(scale, limits.MaxHeight/canvas.Height)
	}
	if limits.MaxWidth > 0 && canvas.Landscape() {
		scale = math.Min(scale, limits.MaxWidth/canvas.Width)
	}
	return Transform{
		Scale:     scale,
		BoxWidth:  scale * canvas.Width,
		BoxHeight: scale * canvas.Height,
	}
}

// ToScreen maps a canvas-space rect to container space.
func (t Transform) ToScreen(r Rect) Rect {
	return Rect{
		Left:   r.Left * t.Scale,
		Top:    r.Top * t.Scale,
		Width:  r.Width * t.Scale,
		Height: r.Height * t.Scale,
	}
}

// FitMedia letterboxes or pillarboxes media of the given intrinsic size into
// frame, preserving its aspect ratio and centering it.
func FitMedia(frame, media Size) Rect {
	if !frame.Valid() {
		return Rect{}
	}
	if !media.Valid() {
		return Rect{Width: frame.Width, Height: frame.Height}
	}
	scale := math.Min(frame.Width/media.Width, frame.Height/media.Height)
	w := media.Width * scale
	h := media.Height * scale
	return Rect{
		Left:   (frame.Width - w) / 2,
		Top:    (frame.Height - h) / 2,
		Width:  w,
		Height: h,
	}
}

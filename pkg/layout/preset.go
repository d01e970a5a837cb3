package layout

import (
	"fmt"
	"strconv"
	"strings"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
)

// Preset is a named canvas aspect ratio.
type Preset string

const (
	PresetSquare    Preset = "1:1"
	PresetLandscape Preset = "16:9"
	PresetPortrait  Preset = "9:16"
	PresetFeed      Preset = "4:5"
)

// Variant selects the absolute pixel size family of a preset.
type Variant int

const (
	// VariantExport is the render resolution.
	VariantExport Variant = iota
	// VariantPreview is the smaller size used by the embedded player.
	VariantPreview
)

var presetSizes = map[Preset][2]Size{
	PresetSquare:    {{1080, 1080}, {640, 640}},
	PresetLandscape: {{1920, 1080}, {640, 360}},
	PresetPortrait:  {{1080, 1920}, {360, 640}},
	PresetFeed:      {{1080, 1350}, {360, 450}},
}

// Presets lists the supported presets in menu order.
func Presets() []Preset {
	return []Preset{PresetSquare, PresetLandscape, PresetPortrait, PresetFeed}
}

// Size returns the canvas size of p for the given variant.
func (p Preset) Size(v Variant) (Size, bool) {
	sizes, ok := presetSizes[p]
	if !ok || v < VariantExport || v > VariantPreview {
		return Size{}, false
	}
	return sizes[v], true
}

func (p Preset) String() string {
	return string(p)
}

// CanvasForPreset returns the canvas size for p. An unknown preset keeps the
// current size and reports ok=false.
func CanvasForPreset(p Preset, v Variant, current Size) (Size, bool) {
	if s, ok := p.Size(v); ok {
		return s, true
	}
	return current, false
}

// ParsePreset accepts "1:1", "16:9", "9:16" and "4:5", also written with an
// "x" or "/" separator.
func ParsePreset(s string) (Preset, error) {
	norm := strings.NewReplacer("x", ":", "X", ":", "/", ":").Replace(strings.TrimSpace(s))
	p := Preset(norm)
	if _, ok := presetSizes[p]; !ok {
		return "", fmt.Errorf("%w: unknown aspect ratio %q", rkerrors.ErrValidation, s)
	}
	return p, nil
}

// PresetFor returns the preset whose export size matches s.
func PresetFor(s Size) (Preset, bool) {
	for _, p := range Presets() {
		if presetSizes[p][VariantExport] == s {
			return p, true
		}
	}
	return "", false
}

// ParseSize parses "WIDTHxHEIGHT".
func ParseSize(s string) (Size, error) {
	ws, hs, found := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	w, werr := strconv.ParseFloat(ws, 64)
	h, herr := strconv.ParseFloat(hs, 64)
	if !found || werr != nil || herr != nil {
		return Size{}, fmt.Errorf("%w: size %q must look like 540x800", rkerrors.ErrValidation, s)
	}
	size := Size{Width: w, Height: h}
	if !size.Valid() {
		return Size{}, fmt.Errorf("%w: size %q must be positive", rkerrors.ErrValidation, s)
	}
	return size, nil
}

package session

import (
	"time"

	"github.com/otherjamesbrown/reelkit/pkg/editpipe"
	"github.com/otherjamesbrown/reelkit/pkg/highlight"
	"github.com/otherjamesbrown/reelkit/pkg/layers"
	"github.com/otherjamesbrown/reelkit/pkg/layout"
	"github.com/otherjamesbrown/reelkit/pkg/logging"
	"github.com/otherjamesbrown/reelkit/pkg/observability"
	"github.com/otherjamesbrown/reelkit/pkg/transcript"
)

// Config configures an editor session. The zero value is usable.
type Config struct {
	// ID identifies the session in logs and spans. Empty generates one.
	ID string

	// Preset picks the initial canvas. Zero means layout.PresetSquare.
	Preset  layout.Preset
	Variant layout.Variant
	Limits  layout.Limits

	Build      transcript.BuildOptions
	ChunkDelay time.Duration
	TitleDelay time.Duration
	// EditClock schedules debounced commits. Nil uses real timers.
	EditClock editpipe.Clock

	Video         layers.Media
	TitleEnabled  bool
	TitleText     string
	SubtitleStyle *layers.TextStyle
	TitleStyle    *layers.TextStyle
	Font          layers.Font

	// Surface receives layer mutations. Nil uses a GeometrySurface.
	Surface   layers.Surface
	Anchors   *highlight.AnchorTable
	Container highlight.ScrollContainer
	// Sink receives highlight transitions with the session lock held; it
	// must not call back into the Editor.
	Sink highlight.Sink

	Metrics *observability.EditorMetrics
	Tracer  *observability.Tracer
	Logger  logging.Logger
}

func (c *Config) defaults() {
	if c.Preset == "" {
		c.Preset = layout.PresetSquare
	}
	if c.Limits == (layout.Limits{}) {
		c.Limits = layout.DefaultLimits()
	}
	if c.Build == (transcript.BuildOptions{}) {
		c.Build = transcript.DefaultBuildOptions()
	}
	if c.Font.Family == "" {
		c.Font = layers.DefaultFont
	}
	if c.Surface == nil {
		c.Surface = layers.NewGeometrySurface()
	}
	if c.Tracer == nil {
		c.Tracer = observability.NewTracer()
	}
	if c.Logger == nil {
		c.Logger = logging.NewNopLogger()
	}
}

// Package session wires the editor core together: transcript index, layer
// set, highlight synchronizer and edit pipeline, driven by a timebase and
// container resizes.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
	"github.com/otherjamesbrown/reelkit/pkg/editpipe"
	"github.com/otherjamesbrown/reelkit/pkg/export"
	"github.com/otherjamesbrown/reelkit/pkg/highlight"
	"github.com/otherjamesbrown/reelkit/pkg/layers"
	"github.com/otherjamesbrown/reelkit/pkg/layout"
	"github.com/otherjamesbrown/reelkit/pkg/logging"
	"github.com/otherjamesbrown/reelkit/pkg/observability"
	"github.com/otherjamesbrown/reelkit/pkg/timebase"
	"github.com/otherjamesbrown/reelkit/pkg/transcript"
)

var errClosed = fmt.Errorf("%w: editor closed", rkerrors.ErrInvalidState)

// Editor is one open editing session. All state is guarded by one mutex:
// timebase notifications, resizes, debounced commits and API calls never
// overlap.
type Editor struct {
	mu sync.Mutex

	id      string
	cfg     Config
	tb      timebase.Adapter
	index   *transcript.Index
	set     *layers.Set
	sync    *highlight.Synchronizer
	pipe    *editpipe.Pipeline
	metrics *observability.EditorMetrics
	tracer  *observability.Tracer
	logger  logging.Logger

	container layout.Size
	transform layout.Transform
	buffering bool

	subs   []timebase.Subscription
	closed bool
}

// Open builds the index from src, lays out the initial canvas and attaches
// to tb. Close must be called to detach.
func Open(cfg Config, tb timebase.Adapter, src *transcript.Source) (*Editor, error) {
	if tb == nil {
		return nil, fmt.Errorf("%w: nil timebase", rkerrors.ErrValidation)
	}
	cfg.defaults()
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}

	index, err := transcript.Build(src, cfg.Build)
	if err != nil {
		return nil, fmt.Errorf("build transcript index: %w", err)
	}
	canvas, ok := cfg.Preset.Size(cfg.Variant)
	if !ok {
		return nil, fmt.Errorf("%w: unknown preset %q", rkerrors.ErrValidation, cfg.Preset)
	}

	set := layers.NewSet(canvas, cfg.Surface)
	set.SetAspectRatio(cfg.Preset)
	subStyle := layers.DefaultSubtitleStyle()
	if cfg.SubtitleStyle != nil {
		subStyle = *cfg.SubtitleStyle
	}
	titleStyle := layers.DefaultTitleStyle()
	if cfg.TitleStyle != nil {
		titleStyle = *cfg.TitleStyle
	}
	if err := set.Add(layers.NewVideoLayer(canvas, cfg.Video)); err != nil {
		return nil, err
	}
	if err := set.Add(layers.NewSubtitleLayer(canvas, subStyle)); err != nil {
		return nil, err
	}
	title := layers.NewTitleLayer(canvas, cfg.TitleText, titleStyle)
	if err := set.Add(title); err != nil {
		return nil, err
	}
	set.ToggleTitle(cfg.TitleEnabled)

	e := &Editor{
		id:      cfg.ID,
		cfg:     cfg,
		tb:      tb,
		index:   index,
		set:     set,
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
		logger:  cfg.Logger.With(logging.Component("session"), logging.F("session_id", cfg.ID)),
	}
	e.sync = highlight.New(index, highlight.Config{
		Anchors:   cfg.Anchors,
		Container: cfg.Container,
		Sink:      cfg.Sink,
		Metrics:   cfg.Metrics,
		Logger:    cfg.Logger,
	})
	e.pipe = editpipe.New(index, set, editpipe.Config{
		ChunkDelay: cfg.ChunkDelay,
		TitleDelay: cfg.TitleDelay,
		Clock:      cfg.EditClock,
		Locker:     &e.mu,
		Metrics:    cfg.Metrics,
		Logger:     cfg.Logger,
	})
	e.subs = []timebase.Subscription{
		tb.OnTimeChanged(e.onTime),
		tb.OnBufferingChanged(e.onBuffering),
	}

	e.logger.Info("session opened",
		logging.F("segments", len(index.Segments())),
		logging.F("chunks", index.ChunkCount()),
		logging.F("words", index.WordCount()),
		logging.F("preset", string(cfg.Preset)))
	return e, nil
}

// ID returns the session ID.
func (e *Editor) ID() string {
	return e.id
}

func (e *Editor) onTime(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// a notification may already be in flight when Close detaches
	if e.closed {
		return
	}
	e.sync.Tick(t)
}

func (e *Editor) onBuffering(b bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.buffering == b {
		return
	}
	e.buffering = b
	e.logger.Debug("buffering changed", logging.F("buffering", b))
}

// Buffering reports whether the timebase is stalled waiting for data.
func (e *Editor) Buffering() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffering
}

// Active returns the highlighted word.
func (e *Editor) Active() (transcript.WordRef, bool) {
	return e.sync.Active()
}

// Anchors returns the anchor side table the presentation layer fills.
func (e *Editor) Anchors() *highlight.AnchorTable {
	return e.sync.Anchors()
}

// SetContainer binds the transcript scroll container.
func (e *Editor) SetContainer(c highlight.ScrollContainer) {
	e.sync.SetContainer(c)
}

// Resize recomputes the on-screen transform for a new container size.
func (e *Editor) Resize(container layout.Size) (layout.Transform, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return layout.Transform{}, errClosed
	}
	e.container = container
	e.transform = layout.ComputeTransformWithLimits(e.set.Canvas(), container, e.cfg.Limits)
	if e.metrics != nil {
		e.metrics.RecordResize(e.transform.Scale)
	}
	return e.transform, nil
}

// SetPreset switches the canvas to an aspect-ratio preset, repositions
// the dependent layers and recomputes the transform.
func (e *Editor) SetPreset(p layout.Preset) (layout.Size, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return layout.Size{}, errClosed
	}
	size, ok := layout.CanvasForPreset(p, e.cfg.Variant, e.set.Canvas())
	if !ok {
		return size, fmt.Errorf("%w: unknown preset %q", rkerrors.ErrValidation, p)
	}
	e.set.SetAspectRatio(p)
	e.set.RepositionForCanvasSize(size)
	if e.container.Valid() {
		e.transform = layout.ComputeTransformWithLimits(size, e.container, e.cfg.Limits)
	}
	if e.metrics != nil {
		e.metrics.RecordPresetChange(string(p))
	}
	e.logger.Info("preset changed", logging.F("preset", string(p)),
		logging.F("width", size.Width), logging.F("height", size.Height))
	return size, nil
}

// Transform returns the transform of the last resize.
func (e *Editor) Transform() layout.Transform {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transform
}

// Canvas returns the logical canvas size.
func (e *Editor) Canvas() layout.Size {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set.Canvas()
}

// Edit queues new text for a chunk. See editpipe.Pipeline.Edit.
func (e *Editor) Edit(chunkIndex int, text string) error {
	return e.pipe.Edit(chunkIndex, text)
}

// EditTitle queues new title text.
func (e *Editor) EditTitle(text string) error {
	return e.pipe.EditTitle(text)
}

// FlushEdits commits every pending edit.
func (e *Editor) FlushEdits() {
	e.pipe.Flush()
}

// ToggleTitle shows or hides the title layer.
func (e *Editor) ToggleTitle(show bool) error {
	return e.withSet(func(s *layers.Set) error {
		s.ToggleTitle(show)
		return nil
	})
}

// SetSubtitleEnabled turns subtitle drawing on or off.
func (e *Editor) SetSubtitleEnabled(on bool) error {
	return e.withSet(func(s *layers.Set) error {
		s.SetSubtitleEnabled(on)
		return nil
	})
}

// SetBackgroundColor sets the canvas background.
func (e *Editor) SetBackgroundColor(color string) error {
	return e.withSet(func(s *layers.Set) error {
		s.SetBackgroundColor(color)
		return nil
	})
}

// SetStyle replaces the style of a text layer.
func (e *Editor) SetStyle(name string, style layers.TextStyle) error {
	return e.withSet(func(s *layers.Set) error { return s.SetStyle(name, style) })
}

// MoveLayer moves a layer to pos.
func (e *Editor) MoveLayer(name string, pos layers.Position) error {
	return e.withSet(func(s *layers.Set) error { return s.Move(name, pos) })
}

// RemoveLayer removes a layer; removing an absent layer does nothing.
func (e *Editor) RemoveLayer(name string) error {
	return e.withSet(func(s *layers.Set) error {
		s.Remove(name)
		return nil
	})
}

// AddImage adds an uploaded image under a generated unique name.
func (e *Editor) AddImage(fileName string, media layers.Media) (string, error) {
	name := layers.NewImageName(fileName, time.Now())
	media.FileName = fileName
	err := e.withSet(func(s *layers.Set) error {
		return s.Add(layers.NewImageLayer(name, media))
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// Layers returns the layers back to front.
func (e *Editor) Layers() []layers.Layer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set.Layers()
}

// Subtitles returns the current subtitle track.
func (e *Editor) Subtitles() []transcript.Cue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Subtitles()
}

func (e *Editor) withSet(fn func(*layers.Set) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	return fn(e.set)
}

// Export flushes pending edits and serializes the canvas for the render
// service.
func (e *Editor) Export(ctx context.Context, opts export.Options) (*export.Document, error) {
	e.pipe.Flush()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errClosed
	}
	settings := e.set.Settings()
	ctx, span := e.tracer.StartExportSpan(ctx, e.id, string(settings.AspectRatio))
	defer span.End()
	helper := observability.NewSpanHelper(span)

	if opts.Font.Family == "" {
		opts.Font = e.cfg.Font
	}
	doc, err := export.Serialize(e.set, e.index, e.set.Canvas(), opts)
	if err != nil {
		helper.SetError(err, string(rkerrors.ClassifyError(err, "serialize").Code), false)
		if e.metrics != nil {
			e.metrics.RecordExport(observability.StatusFailed, 0)
		}
		return nil, err
	}
	helper.SetDocument(len(doc.Layers), e.index.ChunkCount())
	helper.SetSuccess()
	if e.metrics != nil {
		e.metrics.RecordExport(observability.StatusSuccess, len(doc.Layers))
	}
	e.logger.WithContext(ctx).Info("export serialized",
		logging.F("name", doc.Name), logging.F("layers", len(doc.Layers)))
	return doc, nil
}

// Save flushes pending edits and builds the save document.
func (e *Editor) Save(ctx context.Context, projectName string) (*export.SaveDocument, error) {
	e.pipe.Flush()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errClosed
	}
	_, span := e.tracer.StartSaveSpan(ctx, projectName)
	defer span.End()
	helper := observability.NewSpanHelper(span)

	doc, err := export.NewSaveDocument(projectName, e.set, e.index, export.Options{Font: e.cfg.Font})
	if err != nil {
		helper.SetError(err, string(rkerrors.ClassifyError(err, "save").Code), false)
		return nil, err
	}
	helper.SetSuccess()
	return doc, nil
}

// Restore replaces the canvas with a saved project. Saved subtitle text
// that differs from the transcript is applied as chunk edits.
func (e *Editor) Restore(ctx context.Context, doc *export.SaveDocument) error {
	e.pipe.Flush()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	_, span := e.tracer.StartLoadSpan(ctx, doc.ProjectName)
	defer span.End()

	restored, err := export.LoadSaveDocument(doc)
	if err != nil {
		observability.NewSpanHelper(span).SetError(err, string(rkerrors.ErrParseError), false)
		return err
	}
	helper := observability.NewSpanHelper(span)
	if err := e.set.Restore(restored.Canvas, restored.Settings, restored.Layers); err != nil {
		helper.SetError(err, string(rkerrors.ClassifyError(err, "restore").Code), false)
		return err
	}
	if restored.Title != nil && !restored.Settings.TitleEnabled {
		// keep the hidden title for a later toggle
		if err := e.set.SetHiddenTitle(*restored.Title); err != nil {
			helper.SetError(err, string(rkerrors.ClassifyError(err, "restore").Code), false)
			return err
		}
	}
	current := e.index.Subtitles()
	for i, cue := range restored.Subtitles {
		if i >= len(current) || current[i].Text == cue.Text {
			continue
		}
		if err := e.index.EditChunkText(i, cue.Text); err != nil {
			helper.SetError(err, string(rkerrors.ClassifyError(err, "restore").Code), false)
			return err
		}
	}
	if e.container.Valid() {
		e.transform = layout.ComputeTransformWithLimits(restored.Canvas, e.container, e.cfg.Limits)
	}
	helper.SetSuccess()
	return nil
}

// Close detaches from the timebase and drops pending edits. It is safe to
// call more than once; other methods fail with ErrInvalidState afterwards.
func (e *Editor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	for _, s := range e.subs {
		s.Cancel()
	}
	e.subs = nil
	e.pipe.Stop()
	e.logger.Info("session closed", logging.F("revision", int64(e.pipe.Revision())))
	return nil
}

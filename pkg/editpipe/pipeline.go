// Package editpipe propagates transcript and title edits into the editor
// model. Keystrokes are debounced per field so only the final text of a
// burst is committed; the subtitle layer pulls committed text at draw time.
package editpipe

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
	"github.com/otherjamesbrown/reelkit/pkg/layers"
	"github.com/otherjamesbrown/reelkit/pkg/logging"
	"github.com/otherjamesbrown/reelkit/pkg/observability"
	"github.com/otherjamesbrown/reelkit/pkg/transcript"
)

// Default debounce windows.
const (
	DefaultChunkDelay = 400 * time.Millisecond
	DefaultTitleDelay = 200 * time.Millisecond
)

const (
	targetChunk = "chunk"
	targetTitle = "title"
)

// Config holds pipeline settings and collaborators.
type Config struct {
	ChunkDelay time.Duration
	TitleDelay time.Duration
	Clock      Clock
	// Locker serializes commits with the rest of the editor. Commits run
	// on timer goroutines, so the owner of the index and layer set must
	// pass the lock guarding them.
	Locker  sync.Locker
	Metrics *observability.EditorMetrics
	Logger  logging.Logger
	// OnCommit is called after each commit, under Locker.
	OnCommit func(target string, revision uint64)
}

// Pipeline debounces edits and commits them to the transcript index and
// the layer set.
type Pipeline struct {
	index    *transcript.Index
	set      *layers.Set
	chunks   *Debouncer
	title    *Debouncer
	locker   sync.Locker
	metrics  *observability.EditorMetrics
	logger   logging.Logger
	onCommit func(string, uint64)

	revision atomic.Uint64
	closed   atomic.Bool
}

// New creates a pipeline. set may be nil when titles are not edited.
func New(index *transcript.Index, set *layers.Set, cfg Config) *Pipeline {
	if cfg.ChunkDelay <= 0 {
		cfg.ChunkDelay = DefaultChunkDelay
	}
	if cfg.TitleDelay <= 0 {
		cfg.TitleDelay = DefaultTitleDelay
	}
	if cfg.Locker == nil {
		cfg.Locker = &sync.Mutex{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	return &Pipeline{
		index:    index,
		set:      set,
		chunks:   NewDebouncer(cfg.ChunkDelay, cfg.Clock),
		title:    NewDebouncer(cfg.TitleDelay, cfg.Clock),
		locker:   cfg.Locker,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger.With(logging.Component("editpipe")),
		onCommit: cfg.OnCommit,
	}
}

// Edit records new display text for the chunk with global number
// chunkIndex. Edits of the same chunk within the window coalesce to the
// latest text; different chunks debounce independently.
func (p *Pipeline) Edit(chunkIndex int, text string) error {
	if p.closed.Load() {
		return fmt.Errorf("%w: edit pipeline stopped", rkerrors.ErrInvalidState)
	}
	if chunkIndex < 0 || chunkIndex >= p.index.ChunkCount() {
		return fmt.Errorf("%w: chunk %d", rkerrors.ErrNotFound, chunkIndex)
	}
	replaced := p.chunks.Trigger(strconv.Itoa(chunkIndex), func() {
		p.commit(targetChunk, func() error {
			return p.index.EditChunkText(chunkIndex, text)
		})
	})
	if replaced && p.metrics != nil {
		p.metrics.RecordEditCoalesced(targetChunk)
	}
	return nil
}

// EditTitle records new title text, debounced like chunk edits.
func (p *Pipeline) EditTitle(text string) error {
	if p.closed.Load() {
		return fmt.Errorf("%w: edit pipeline stopped", rkerrors.ErrInvalidState)
	}
	if p.set == nil {
		return fmt.Errorf("%w: no layer set bound", rkerrors.ErrInvalidState)
	}
	replaced := p.title.Trigger(targetTitle, func() {
		p.commit(targetTitle, func() error {
			return p.set.SetTitle(text)
		})
	})
	if replaced && p.metrics != nil {
		p.metrics.RecordEditCoalesced(targetTitle)
	}
	return nil
}

func (p *Pipeline) commit(target string, apply func() error) {
	p.locker.Lock()
	defer p.locker.Unlock()
	// a timer may have fired just before Stop
	if p.closed.Load() {
		return
	}
	if err := apply(); err != nil {
		p.logger.Error("commit edit", logging.Err(err), logging.F("target", target))
		return
	}
	rev := p.revision.Add(1)
	if p.metrics != nil {
		p.metrics.RecordEditCommitted(target)
	}
	p.logger.Debug("edit committed", logging.F("target", target), logging.F("revision", int64(rev)))
	if p.onCommit != nil {
		p.onCommit(target, rev)
	}
}

// Revision counts committed edits.
func (p *Pipeline) Revision() uint64 {
	return p.revision.Load()
}

// Pending returns the number of edits waiting for their window to elapse.
func (p *Pipeline) Pending() int {
	return p.chunks.Pending() + p.title.Pending()
}

// SubtitleAt returns the subtitle text to draw at time t, with the
// subtitle layer's text transform applied. The caller must hold Locker.
func (p *Pipeline) SubtitleAt(t float64) (string, bool) {
	cue, ok := p.index.CueAt(t)
	if !ok {
		return "", false
	}
	if p.set != nil {
		if l, found := p.set.Get(layers.NameSubtitle); found {
			return l.Style.Render(cue.Text), true
		}
	}
	return cue.Text, true
}

// Flush commits every pending edit now. It takes Locker, so the caller
// must not hold it.
func (p *Pipeline) Flush() {
	p.chunks.Flush()
	p.title.Flush()
}

// Stop drops pending edits; later edits fail with ErrInvalidState.
// Stop may be called with Locker held and more than once.
func (p *Pipeline) Stop() {
	p.closed.Store(true)
	p.chunks.Stop()
	p.title.Stop()
}

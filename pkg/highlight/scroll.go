package highlight

import (
	"sync"

	"github.com/otherjamesbrown/reelkit/pkg/layout"
)

// DefaultScrollOffset is the extra room left below the active line.
const DefaultScrollOffset = 24

// ScrollContainer is the scrollable transcript panel.
type ScrollContainer interface {
	ScrollTop() float64
	ViewportHeight() float64
	SetScrollTop(top float64)
}

// ScrollIntoView scrolls c so that el stays in view, using "catch the next
// line" behaviour: nothing happens until the element's bottom edge passes
// the container's vertical midpoint. el is in the container's content
// coordinates. It reports whether the container was scrolled.
func ScrollIntoView(el layout.Rect, c ScrollContainer, offset float64) bool {
	if c == nil {
		return false
	}
	top := c.ScrollTop()
	if el.Top <= top {
		return false
	}
	bottom := el.Top + el.Height
	threshold := top + c.ViewportHeight()/2
	if bottom <= threshold {
		return false
	}
	c.SetScrollTop(bottom - c.ViewportHeight() + offset)
	return true
}

// Anchor is the rendered element of one word, registered by the
// presentation layer. Handle is opaque to the core.
type Anchor struct {
	Handle string
	Box    layout.Rect
}

// AnchorTable maps global word numbers to rendered anchors. The
// presentation layer fills it; the synchronizer only reads it.
type AnchorTable struct {
	mu      sync.RWMutex
	anchors map[int]Anchor
}

// NewAnchorTable creates an empty table.
func NewAnchorTable() *AnchorTable {
	return &AnchorTable{anchors: make(map[int]Anchor)}
}

// Set registers the anchor of word n.
func (a *AnchorTable) Set(n int, anchor Anchor) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.anchors[n] = anchor
}

// Remove forgets the anchor of word n.
func (a *AnchorTable) Remove(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.anchors, n)
}

// Get returns the anchor of word n.
func (a *AnchorTable) Get(n int) (Anchor, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	anchor, ok := a.anchors[n]
	return anchor, ok
}

// Len returns the number of registered anchors.
func (a *AnchorTable) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.anchors)
}

// Clear drops all anchors, as when the transcript panel is unmounted.
func (a *AnchorTable) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.anchors = make(map[int]Anchor)
}

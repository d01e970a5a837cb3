package layers

import (
	"sync"

	"github.com/otherjamesbrown/reelkit/pkg/layout"
)

// MutationKind identifies a change replayed onto a Surface.
type MutationKind int

const (
	MutationAdd MutationKind = iota
	MutationRemove
	MutationUpdate
	MutationReorder
	MutationCanvas
)

func (k MutationKind) String() string {
	switch k {
	case MutationAdd:
		return "add"
	case MutationRemove:
		return "remove"
	case MutationUpdate:
		return "update"
	case MutationReorder:
		return "reorder"
	case MutationCanvas:
		return "canvas"
	default:
		return "unknown"
	}
}

// Mutation is one change of a Set. Layer carries the full new value for
// add and update; Index is the z-position for add and reorder.
type Mutation struct {
	Kind   MutationKind
	Name   string
	Layer  Layer
	Index  int
	Canvas layout.Size
}

// Surface is the rendering side of a Set. The Set only writes to it and
// reads back bounding boxes.
type Surface interface {
	Apply(m Mutation)
	// BoundingBox returns the rendered box of a layer, or false when the
	// layer has not been rendered.
	BoundingBox(name string) (layout.Rect, bool)
}

// GeometrySurface is a headless Surface that derives bounding boxes from
// layer geometry.
type GeometrySurface struct {
	mu      sync.RWMutex
	layers  map[string]Layer
	canvas  layout.Size
	applied int
}

var _ Surface = (*GeometrySurface)(nil)

// NewGeometrySurface creates an empty surface.
func NewGeometrySurface() *GeometrySurface {
	return &GeometrySurface{layers: make(map[string]Layer)}
}

// Apply implements Surface.
func (g *GeometrySurface) Apply(m Mutation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.applied++
	switch m.Kind {
	case MutationAdd, MutationUpdate:
		g.layers[m.Layer.Name] = m.Layer
	case MutationRemove:
		delete(g.layers, m.Name)
	case MutationCanvas:
		g.canvas = m.Canvas
	}
}

// BoundingBox implements Surface.
func (g *GeometrySurface) BoundingBox(name string) (layout.Rect, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	l, ok := g.layers[name]
	if !ok {
		return layout.Rect{}, false
	}
	return l.Bounds(), true
}

// Canvas returns the last canvas size applied.
func (g *GeometrySurface) Canvas() layout.Size {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.canvas
}

// Applied returns the number of mutations replayed so far.
func (g *GeometrySurface) Applied() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.applied
}

package layers

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
	"github.com/otherjamesbrown/reelkit/pkg/layout"
)

var square = layout.Size{Width: 1080, Height: 1080}

func assertPosition(t *testing.T, want, got Position) {
	t.Helper()
	assert.InDelta(t, want.Left, got.Left, 1e-9)
	assert.InDelta(t, want.Top, got.Top, 1e-9)
}

func newTestSet(t *testing.T) (*Set, *GeometrySurface) {
	t.Helper()
	surface := NewGeometrySurface()
	s := NewSet(square, surface)
	require.NoError(t, s.Add(NewVideoLayer(square, Media{Intrinsic: layout.Size{Width: 1920, Height: 1080}})))
	require.NoError(t, s.Add(NewSubtitleLayer(square, DefaultSubtitleStyle())))
	return s, surface
}

func TestSet_AddDuplicateName(t *testing.T) {
	s, _ := newTestSet(t)
	img := NewImageLayer("logo.png", Media{})
	require.NoError(t, s.Add(img))

	err := s.Add(img)
	var dup *DuplicateNameError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "logo.png", dup.Name)
	assert.True(t, rkerrors.IsConflict(err))
	assert.Equal(t, 3, s.Len())
}

func TestSet_AddKindUniqueness(t *testing.T) {
	s, _ := newTestSet(t)
	second := NewSubtitleLayer(square, DefaultSubtitleStyle())
	second.Name = "subtitle-2"
	err := s.Add(second)
	assert.True(t, rkerrors.IsInvalidState(err))

	other := NewVideoLayer(square, Media{})
	other.Name = "video-2"
	assert.True(t, rkerrors.IsInvalidState(s.Add(other)))

	assert.True(t, rkerrors.IsValidation(s.Add(Layer{Kind: KindImage})))
}

func TestSet_RemoveIdempotent(t *testing.T) {
	s, surface := newTestSet(t)
	require.NoError(t, s.Add(NewImageLayer("a.png", Media{})))

	s.Remove("a.png")
	once := s.Layers()
	applied := surface.Applied()

	s.Remove("a.png")
	assert.Equal(t, once, s.Layers())
	assert.Equal(t, applied, surface.Applied(), "second remove must not touch the surface")
	_, ok := s.Get("a.png")
	assert.False(t, ok)
	assert.Equal(t, -1, s.Index("a.png"))
}

func TestSet_Order(t *testing.T) {
	s, _ := newTestSet(t)
	require.NoError(t, s.Add(NewImageLayer("a.png", Media{})))
	require.NoError(t, s.Add(NewImageLayer("b.png", Media{})))

	require.NoError(t, s.SendToBack("b.png"))
	assert.Equal(t, 0, s.Index("b.png"))
	assert.Equal(t, 1, s.Index(NameVideo))

	require.NoError(t, s.BringToFront(NameVideo))
	assert.Equal(t, s.Len()-1, s.Index(NameVideo))

	assert.True(t, rkerrors.IsNotFound(s.SendToBack("missing")))

	names := []string{}
	for _, l := range s.Images() {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"b.png", "a.png"}, names)
}

func TestSet_LayersReturnsCopy(t *testing.T) {
	s, _ := newTestSet(t)
	ls := s.Layers()
	ls[0].Name = "changed"
	_, ok := s.Get(NameVideo)
	assert.True(t, ok)
}

func TestSet_Updates(t *testing.T) {
	s, surface := newTestSet(t)

	require.NoError(t, s.Move(NameSubtitle, Position{Left: 10, Top: 20}))
	require.NoError(t, s.Resize(NameSubtitle, layout.Size{Width: 300, Height: 50}))
	box, ok := s.BoundingBox(NameSubtitle)
	require.True(t, ok)
	assert.Equal(t, layout.Rect{Left: -140, Top: -5, Width: 300, Height: 50}, box)

	require.NoError(t, s.SetText(NameSubtitle, "hello"))
	l, _ := s.Get(NameSubtitle)
	assert.Equal(t, "hello", l.Text)

	style := DefaultSubtitleStyle()
	style.FontSize = 50
	require.NoError(t, s.SetStyle(NameSubtitle, style))
	l, _ = s.Get(NameSubtitle)
	assert.InDelta(t, 58, l.Size.Height, 1e-9)

	assert.True(t, rkerrors.IsInvalidState(s.SetText(NameVideo, "x")))
	assert.True(t, rkerrors.IsInvalidState(s.SetStyle(NameVideo, style)))
	assert.True(t, rkerrors.IsNotFound(s.Move("nope", Position{})))
	assert.True(t, rkerrors.IsValidation(s.Resize(NameVideo, layout.Size{})))
	assert.Greater(t, surface.Applied(), 0)
}

func TestSet_BoundingBoxWithoutSurface(t *testing.T) {
	s := NewSet(square, nil)
	require.NoError(t, s.Add(NewSubtitleLayer(square, DefaultSubtitleStyle())))
	_, ok := s.BoundingBox(NameSubtitle)
	assert.False(t, ok)

	s.Bind(NewGeometrySurface())
	_, ok = s.BoundingBox(NameSubtitle)
	assert.True(t, ok)
	_, ok = s.BoundingBox("missing")
	assert.False(t, ok)
}

func TestSet_RepositionForCanvasSize(t *testing.T) {
	s, surface := newTestSet(t)
	img := NewImageLayer("a.png", Media{})
	require.NoError(t, s.Add(img))
	s.ToggleTitle(true)

	portrait := layout.Size{Width: 1080, Height: 1920}
	s.RepositionForCanvasSize(portrait)
	assert.Equal(t, portrait, s.Canvas())
	assert.Equal(t, portrait, surface.Canvas())

	video, _ := s.Get(NameVideo)
	assert.InDelta(t, 0, video.Position.Left, 1e-9)
	assert.InDelta(t, (1920-607.5)/2, video.Position.Top, 1e-9)
	assert.InDelta(t, 1080, video.Size.Width, 1e-9)

	sub, _ := s.Get(NameSubtitle)
	assertPosition(t, Position{Left: 540, Top: 1728}, sub.Position)

	title, _ := s.Get(NameTitle)
	assertPosition(t, Position{Left: 540, Top: 192}, title.Position)

	got, _ := s.Get("a.png")
	assert.Equal(t, img.Position, got.Position)
}

func TestSet_ToggleTitle(t *testing.T) {
	s, _ := newTestSet(t)
	assert.False(t, s.TitleEnabled())

	s.ToggleTitle(true)
	s.ToggleTitle(true)
	assert.True(t, s.TitleEnabled())
	assert.Equal(t, 3, s.Len())
	require.NoError(t, s.SetTitle("My reel"))

	s.ToggleTitle(false)
	s.ToggleTitle(false)
	assert.False(t, s.TitleEnabled())
	assert.Equal(t, -1, s.Index(NameTitle))
	assert.Equal(t, "My reel", s.Title().Text)

	s.ToggleTitle(true)
	l, ok := s.Get(NameTitle)
	require.True(t, ok)
	assert.Equal(t, "My reel", l.Text, "hidden title keeps its edits")
	assertPosition(t, Position{Left: 540, Top: 108}, l.Position)
}

func TestSet_SettingsAndRestore(t *testing.T) {
	s, _ := newTestSet(t)
	assert.True(t, s.SubtitleEnabled())
	s.SetSubtitleEnabled(false)
	s.SetBackgroundColor("#ffffff")
	s.SetAspectRatio(layout.PresetFeed)
	assert.Equal(t, CanvasSettings{BackgroundColor: "#ffffff", AspectRatio: layout.PresetFeed}, s.Settings())

	feed := layout.Size{Width: 1080, Height: 1350}
	title := NewTitleLayer(feed, "Loaded", DefaultTitleStyle())
	require.NoError(t, s.Restore(feed, CanvasSettings{TitleEnabled: true}, []Layer{title}))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "Loaded", s.Title().Text)
	assert.Equal(t, feed, s.Canvas())

	err := s.Restore(feed, CanvasSettings{}, []Layer{title, title})
	assert.True(t, rkerrors.IsConflict(err))
}

func TestSet_RestoreFailureLeavesSetUnchanged(t *testing.T) {
	s, surface := newTestSet(t)
	s.SetBackgroundColor("#abcdef")
	before := s.Layers()

	feed := layout.Size{Width: 1080, Height: 1350}
	logo := NewImageLayer("logo", Media{URL: "blob:logo"})
	err := s.Restore(feed, CanvasSettings{BackgroundColor: "#000001"}, []Layer{
		NewVideoLayer(feed, Media{Intrinsic: layout.Size{Width: 1920, Height: 1080}}),
		logo,
		logo,
	})
	require.Error(t, err)
	assert.True(t, rkerrors.IsConflict(err))

	assert.Equal(t, before, s.Layers())
	assert.Equal(t, square, s.Canvas())
	assert.Equal(t, "#abcdef", s.Settings().BackgroundColor)
	_, ok := surface.BoundingBox(NameSubtitle)
	assert.True(t, ok, "surface keeps the subtitle")
	_, ok = surface.BoundingBox("logo")
	assert.False(t, ok, "nothing from the failed restore reaches the surface")
}

func TestSet_SetHiddenTitle(t *testing.T) {
	s, _ := newTestSet(t)
	style := DefaultTitleStyle()
	style.FontSize = 64
	style.Color = "#ff0000"
	saved := NewTitleLayer(square, "Saved", style)
	saved.Position = Position{Left: 300, Top: 200}

	require.NoError(t, s.SetHiddenTitle(saved))
	assert.Equal(t, -1, s.Index(NameTitle))

	s.ToggleTitle(true)
	l, ok := s.Get(NameTitle)
	require.True(t, ok)
	assert.Equal(t, "Saved", l.Text)
	assert.Equal(t, style, l.Style)
	assertPosition(t, saved.Position, l.Position)

	err := s.SetHiddenTitle(saved)
	assert.True(t, rkerrors.IsInvalidState(err), "title is shown")

	s.ToggleTitle(false)
	err = s.SetHiddenTitle(NewImageLayer("logo", Media{}))
	assert.True(t, rkerrors.IsValidation(err))
}

func TestNewImageName(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	assert.Equal(t, "photo1700000000000.png", NewImageName("photo.png", now))
	assert.Equal(t, "my1700000000000.photo1700000000000.png", NewImageName("my.photo.png", now))
	assert.Equal(t, "README1700000000000", NewImageName("README", now))
}

func TestNewImageLayer(t *testing.T) {
	l := NewImageLayer("x.png", Media{Intrinsic: layout.Size{Width: 400, Height: 100}})
	assert.Equal(t, Position{Left: 100, Top: 60}, l.Position)
	assert.Equal(t, layout.Size{Width: 200, Height: 50}, l.Size)
	assert.Equal(t, l.Bounds(), layout.Rect{Left: 100, Top: 60, Width: 200, Height: 50})
}

func TestTextStyle_Render(t *testing.T) {
	s := DefaultSubtitleStyle()
	assert.Equal(t, "straße", s.Render("straße"))
	s.Uppercase = true
	assert.Equal(t, "STRASSE", s.Render("straße"))
}

func TestMutationKind_String(t *testing.T) {
	assert.Equal(t, "reorder", MutationReorder.String())
	assert.Equal(t, "unknown", MutationKind(42).String())
}

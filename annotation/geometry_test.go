package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitSize(t *testing.T) {
	tests := []struct {
		name    string
		natural Size
		vp      Viewport
		want    Size
	}{
		{"never upscales", Size{400, 300}, Viewport{ContainerWidth: 1232, WindowHeight: 2000}, Size{400, 300}},
		{"width bound", Size{4000, 1000}, Viewport{ContainerWidth: 832, WindowHeight: 2000}, Size{800, 200}},
		{"height bound", Size{1000, 2000}, Viewport{ContainerWidth: 2032, WindowHeight: 1000}, Size{250, 500}},
		{"rounded", Size{1000, 333}, Viewport{ContainerWidth: 532, WindowHeight: 4000}, Size{500, 167}},
		{"empty image", Size{}, Viewport{ContainerWidth: 500, WindowHeight: 500}, DefaultCanvas},
		{"unknown viewport", Size{640, 480}, Viewport{}, DefaultCanvas},
		{"negative viewport", Size{640, 480}, Viewport{ContainerWidth: -10, WindowHeight: 900}, DefaultCanvas},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitSize(tt.natural, tt.vp)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, got.Width, maxInt(tt.natural.Width, DefaultCanvasWidth))
		})
	}
}

func TestCanvasPoint(t *testing.T) {
	origin := Point{X: 20, Y: 100}

	p, err := CanvasPoint(PointerEvent{Source: SourceMouse, ClientX: 30, ClientY: 150}, origin)
	require.NoError(t, err)
	assert.Equal(t, Point{10, 50}, p)

	p, err = CanvasPoint(PointerEvent{Source: SourceTouch, Touches: []Point{{X: 120, Y: 110}, {X: 1, Y: 1}}}, origin)
	require.NoError(t, err)
	assert.Equal(t, Point{100, 10}, p)

	_, err = CanvasPoint(PointerEvent{Source: SourceTouch}, origin)
	assert.ErrorIs(t, err, ErrNoPointer)
}

func TestTouchLineEndsOnChangedTouch(t *testing.T) {
	origin := Point{X: 20, Y: 100}
	s := Open("photo.png", nil, nil, nil, WithIDGenerator(func() string { return "l1" }))

	start, err := CanvasPoint(PointerEvent{Source: SourceTouch, Touches: []Point{{X: 30, Y: 110}}}, origin)
	require.NoError(t, err)
	require.NoError(t, s.PointerDown(start))

	// touchend reports the lifted finger only in changedTouches
	end, err := CanvasPoint(PointerEvent{Source: SourceTouch, ChangedTouches: []Point{{X: 130, Y: 160}}}, origin)
	require.NoError(t, err)
	assert.Equal(t, Point{110, 60}, end)
	require.NoError(t, s.PointerUp(end))

	assert.Equal(t, StatePendingLine, s.State())
	draft, ok := s.Draft()
	require.True(t, ok)
	assert.Equal(t, Point{10, 10}, draft.Anchor)
	assert.Equal(t, Point{110, 60}, *draft.Terminus)
}

func TestRescale(t *testing.T) {
	text, err := NewText("t", Point{40, 30}, DefaultColor, "x")
	require.NoError(t, err)
	list := []Annotation{
		NewLine("l", Point{10, 10}, Point{100, 50}, DefaultColor, LineInput{}),
		text,
	}

	got := Rescale(list, Size{200, 100}, Size{400, 50})
	assert.Equal(t, Point{20, 5}, got[0].Anchor)
	assert.Equal(t, Point{200, 25}, *got[0].Terminus)
	assert.Equal(t, Point{80, 15}, got[1].Anchor)
	assert.Equal(t, Point{100, 50}, *list[0].Terminus, "input must not change")

	same := Rescale(list, Size{200, 100}, Size{200, 100})
	assert.Equal(t, list, same)
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5.0, Point{0, 0}.Distance(Point{3, 4}), 1e-9)
	assert.Equal(t, Point{5, 5}, Point{0, 0}.Midpoint(Point{10, 10}))
}

package annotation

import (
	"errors"
	"math"
)

const (
	DefaultCanvasWidth  = 800
	DefaultCanvasHeight = 600

	// ViewportPadding is subtracted from the container width.
	ViewportPadding = 32
	// ViewportHeightFraction is the share of the window height the canvas may use.
	ViewportHeightFraction = 0.5
)

// ErrNoPointer is returned when a touch event carries no touch points.
var ErrNoPointer = errors.New("annotation: event has no pointer position")

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultCanvas is the size used before an image has loaded.
var DefaultCanvas = Size{Width: DefaultCanvasWidth, Height: DefaultCanvasHeight}

func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Viewport is the space available to the canvas on screen.
type Viewport struct {
	ContainerWidth int `json:"container_width"`
	WindowHeight   int `json:"window_height"`
}

// FitSize scales natural by the largest ratio no greater than 1 that keeps it
// inside the viewport box. The result is never larger than the image. An
// empty image or a viewport with no room yields DefaultCanvas.
func FitSize(natural Size, vp Viewport) Size {
	if natural.Empty() {
		return DefaultCanvas
	}
	maxW := float64(vp.ContainerWidth - ViewportPadding)
	maxH := float64(vp.WindowHeight) * ViewportHeightFraction
	if maxW <= 0 || maxH <= 0 {
		return DefaultCanvas
	}
	ratio := math.Min(math.Min(maxW/float64(natural.Width), maxH/float64(natural.Height)), 1)
	return Size{
		Width:  maxInt(1, int(math.Round(float64(natural.Width)*ratio))),
		Height: maxInt(1, int(math.Round(float64(natural.Height)*ratio))),
	}
}

// PointerSource tells which input device produced an event.
type PointerSource string

const (
	SourceMouse PointerSource = "mouse"
	SourceTouch PointerSource = "touch"
)

// PointerEvent is a raw client-space pointer event from either a mouse or a
// touch screen. A touch that just lifted is only listed in ChangedTouches.
type PointerEvent struct {
	Source         PointerSource `json:"source"`
	ClientX        float64       `json:"client_x"`
	ClientY        float64       `json:"client_y"`
	Touches        []Point       `json:"touches,omitempty"`
	ChangedTouches []Point       `json:"changed_touches,omitempty"`
}

// CanvasPoint converts a raw event into canvas space by subtracting the
// canvas's on-screen origin. Touch events use their first active touch, or
// the first changed touch when none is left down.
func CanvasPoint(ev PointerEvent, origin Point) (Point, error) {
	var client Point
	switch ev.Source {
	case SourceTouch:
		switch {
		case len(ev.Touches) > 0:
			client = ev.Touches[0]
		case len(ev.ChangedTouches) > 0:
			client = ev.ChangedTouches[0]
		default:
			return Point{}, ErrNoPointer
		}
	default:
		client = Point{X: ev.ClientX, Y: ev.ClientY}
	}
	return Point{X: client.X - origin.X, Y: client.Y - origin.Y}, nil
}

// Rescale maps annotation coordinates drawn on a canvas of size from onto a
// canvas of size to. Annotations are returned unchanged when either size is
// empty or both are equal.
func Rescale(list []Annotation, from, to Size) []Annotation {
	out := make([]Annotation, len(list))
	if from.Empty() || to.Empty() || from == to {
		for i, a := range list {
			out[i] = a.Clone()
		}
		return out
	}
	sx := float64(to.Width) / float64(from.Width)
	sy := float64(to.Height) / float64(from.Height)
	scale := func(p Point) Point { return Point{X: p.X * sx, Y: p.Y * sy} }
	for i, a := range list {
		c := a.Clone()
		c.Anchor = scale(c.Anchor)
		if c.Terminus != nil {
			t := scale(*c.Terminus)
			c.Terminus = &t
		}
		out[i] = c
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package annotation

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	// LineWidth is the stroke width of lines and the dashed preview.
	LineWidth = 2.5
	// EndpointRadius is the radius of the discs drawn at both ends of a line.
	EndpointRadius = 4
	// PillHeight is the height of every label background.
	PillHeight = 24
	// LinePillPadding is added to the measured caption width of a line label.
	LinePillPadding = 16
	// TextPillPadding is added to the measured width of a text annotation.
	TextPillPadding = 12
)

// DashPattern is the on/off run length of the drawing preview.
var DashPattern = [2]float64{6, 4}

var (
	pillColor    = color.NRGBA{A: 191}
	captionColor = color.White
	clearColor   = color.White
)

// Renderer draws the base image and an annotation list onto a raster. A
// Renderer holds no per-frame state so every call starts from a clear canvas.
type Renderer struct {
	Face  font.Face
	Scale xdraw.Scaler
}

func NewRenderer() *Renderer {
	return &Renderer{
		Face:  basicfont.Face7x13,
		Scale: xdraw.BiLinear,
	}
}

// Render clears a canvas of the given size, stretches base over it, draws
// every annotation in list order and finally the optional preview segment.
// base may be nil.
func (r *Renderer) Render(base image.Image, size Size, annotations []Annotation, preview *Segment) *image.RGBA {
	if size.Empty() {
		size = DefaultCanvas
	}
	dst := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	fillRect(dst, dst.Bounds(), clearColor)

	if base != nil {
		r.Scale.Scale(dst, dst.Bounds(), base, base.Bounds(), xdraw.Over, nil)
	}
	for _, a := range annotations {
		r.DrawAnnotation(dst, a)
	}
	if preview != nil {
		r.DrawPreview(dst, *preview)
	}
	return dst
}

// RenderSession renders the current state of a session, including the
// dashed preview of a line being drawn.
func (r *Renderer) RenderSession(base image.Image, s *Session) *image.RGBA {
	snap := s.Snapshot()
	annotations := snap.Annotations
	if snap.Draft != nil {
		annotations = append(annotations, *snap.Draft)
	}
	return r.Render(base, snap.Canvas, annotations, snap.Preview)
}

// DrawAnnotation draws one annotation. Parts that cannot be drawn, such as a
// line without terminus or a text annotation without text, are skipped.
func (r *Renderer) DrawAnnotation(dst *image.RGBA, a Annotation) {
	col := a.Color.MustRGBA()
	switch a.Kind {
	case KindLine:
		if a.Terminus == nil {
			drawFilledCircle(dst, a.Anchor, EndpointRadius, col)
			return
		}
		drawLine(dst, a.Anchor, *a.Terminus, col, strokeWidth())
		drawFilledCircle(dst, a.Anchor, EndpointRadius, col)
		drawFilledCircle(dst, *a.Terminus, EndpointRadius, col)

		caption := a.Caption()
		mid := a.Anchor.Midpoint(*a.Terminus)
		width := r.measure(caption) + LinePillPadding
		if !nearBounds(mid, dst.Bounds(), float64(width+PillHeight)) {
			return
		}
		x0 := int(math.Round(mid.X - float64(width)/2))
		y0 := int(math.Round(mid.Y - PillHeight/2))
		fillRect(dst, image.Rect(x0, y0, x0+width, y0+PillHeight), pillColor)
		r.drawCaption(dst, caption, x0+LinePillPadding/2, int(math.Round(mid.Y)))
	case KindText:
		if a.Text == nil || *a.Text == "" {
			return
		}
		width := r.measure(*a.Text) + TextPillPadding
		if !nearBounds(a.Anchor, dst.Bounds(), float64(width+PillHeight)) {
			return
		}
		x, y := roundPt(a.Anchor)
		fillRect(dst, image.Rect(x-2, y-14, x-2+width, y-14+PillHeight), pillColor)
		r.drawCaption(dst, *a.Text, x+4, y)
	}
}

// DrawPreview overlays the dashed segment of a line being drawn.
func (r *Renderer) DrawPreview(dst *image.RGBA, seg Segment) {
	drawDashedLine(dst, seg.From, seg.To, seg.Color.MustRGBA(), strokeWidth(), DashPattern[0], DashPattern[1])
}

func (r *Renderer) measure(s string) int {
	return font.MeasureString(r.Face, s).Ceil()
}

// drawCaption draws s starting at x with its vertical middle at y.
func (r *Renderer) drawCaption(dst *image.RGBA, s string, x, y int) {
	m := r.Face.Metrics()
	baseline := y + (m.Ascent.Ceil()-m.Descent.Ceil())/2
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(captionColor),
		Face: r.Face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}

func strokeWidth() int {
	return int(math.Round(LineWidth))
}

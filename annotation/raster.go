package annotation

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// setThickPixel paints a square brush of the given thickness centred on (x, y).
func setThickPixel(img *image.RGBA, x, y, thick int, col color.Color) {
	if thick <= 1 {
		if image.Pt(x, y).In(img.Bounds()) {
			img.Set(x, y, col)
		}
		return
	}
	half := thick / 2
	for dy := -half; dy < thick-half; dy++ {
		for dx := -half; dx < thick-half; dx++ {
			px, py := x+dx, y+dy
			if image.Pt(px, py).In(img.Bounds()) {
				img.Set(px, py, col)
			}
		}
	}
}

// bresenham calls plot for every pixel on the segment, passing the step index
// and the total number of steps.
func bresenham(x0, y0, x1, y1 int, plot func(x, y, step, steps int)) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	steps := maxInt(dx, dy)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for step := 0; ; step++ {
		plot(x0, y0, step, steps)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// clipSegment cuts the segment from a to b down to the part inside r grown by
// pad on every side (Liang-Barsky). t0 and t1 are the parameters of the kept
// part along the original segment.
func clipSegment(a, b Point, r image.Rectangle, pad float64) (from, to Point, t0, t1 float64, ok bool) {
	for _, v := range []float64{a.X, a.Y, b.X, b.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Point{}, Point{}, 0, 0, false
		}
	}
	minX, maxX := float64(r.Min.X)-pad, float64(r.Max.X-1)+pad
	minY, maxY := float64(r.Min.Y)-pad, float64(r.Max.Y-1)+pad
	dx, dy := b.X-a.X, b.Y-a.Y
	p := [4]float64{-dx, dx, -dy, dy}
	q := [4]float64{a.X - minX, maxX - a.X, a.Y - minY, maxY - a.Y}

	t0, t1 = 0, 1
	for i := range p {
		if p[i] == 0 {
			if q[i] < 0 {
				return Point{}, Point{}, 0, 0, false
			}
			continue
		}
		t := q[i] / p[i]
		if p[i] < 0 {
			if t > t1 {
				return Point{}, Point{}, 0, 0, false
			}
			t0 = math.Max(t0, t)
		} else {
			if t < t0 {
				return Point{}, Point{}, 0, 0, false
			}
			t1 = math.Min(t1, t)
		}
	}
	from = Point{X: a.X + t0*dx, Y: a.Y + t0*dy}
	to = Point{X: a.X + t1*dx, Y: a.Y + t1*dy}
	return from, to, t0, t1, true
}

func drawLine(img *image.RGBA, from, to Point, col color.Color, thick int) {
	from, to, _, _, ok := clipSegment(from, to, img.Bounds(), float64(thick))
	if !ok {
		return
	}
	x0, y0 := roundPt(from)
	x1, y1 := roundPt(to)
	bresenham(x0, y0, x1, y1, func(x, y, _, _ int) {
		setThickPixel(img, x, y, thick, col)
	})
}

// drawDashedLine strokes on/off runs measured along the segment's length,
// matching a [on, off] dash pattern. The pattern keeps its phase when the
// segment is clipped.
func drawDashedLine(img *image.RGBA, from, to Point, col color.Color, thick int, on, off float64) {
	length := from.Distance(to)
	from, to, t0, t1, ok := clipSegment(from, to, img.Bounds(), float64(thick))
	if !ok {
		return
	}
	offset := length * t0
	visible := length * (t1 - t0)
	period := on + off
	x0, y0 := roundPt(from)
	x1, y1 := roundPt(to)
	bresenham(x0, y0, x1, y1, func(x, y, step, steps int) {
		travelled := offset
		if steps > 0 {
			travelled += visible * float64(step) / float64(steps)
		}
		if period <= 0 || math.Mod(travelled, period) < on {
			setThickPixel(img, x, y, thick, col)
		}
	})
}

// nearBounds reports whether p lies within margin of r.
func nearBounds(p Point, r image.Rectangle, margin float64) bool {
	return p.X >= float64(r.Min.X)-margin && p.X <= float64(r.Max.X)+margin &&
		p.Y >= float64(r.Min.Y)-margin && p.Y <= float64(r.Max.Y)+margin
}

func drawFilledCircle(img *image.RGBA, center Point, r int, col color.Color) {
	if !nearBounds(center, img.Bounds(), float64(r)) {
		return
	}
	cx, cy := roundPt(center)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				px, py := cx+dx, cy+dy
				if image.Pt(px, py).In(img.Bounds()) {
					img.Set(px, py, col)
				}
			}
		}
	}
}

// fillRect composites a possibly translucent color over rect.
func fillRect(img *image.RGBA, rect image.Rectangle, col color.Color) {
	draw.Draw(img, rect.Intersect(img.Bounds()), image.NewUniform(col), image.Point{}, draw.Over)
}

func roundPt(p Point) (int, int) {
	return int(math.Round(p.X)), int(math.Round(p.Y))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

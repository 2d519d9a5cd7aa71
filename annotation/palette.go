package annotation

import (
	"fmt"
	"image/color"
	"math"
	"strings"
)

// Color is a CSS color value from Palette.
type Color string

// Palette is the fixed set of colors an annotation can be drawn with. The
// first entry is the default.
var Palette = []Color{
	"hsl(0, 72%, 51%)",
	"hsl(218, 43%, 18%)",
	"hsl(142, 76%, 36%)",
	"hsl(45, 93%, 47%)",
	"hsl(280, 70%, 55%)",
}

// DefaultColor is the color selected when a session opens.
var DefaultColor = Palette[0]

func (c Color) Valid() bool {
	for _, p := range Palette {
		if c == p {
			return true
		}
	}
	return false
}

// RGBA converts the hsl() notation to an opaque color.RGBA.
func (c Color) RGBA() (color.RGBA, error) {
	s := strings.TrimSpace(string(c))
	if !strings.HasPrefix(s, "hsl(") || !strings.HasSuffix(s, ")") {
		return color.RGBA{}, fmt.Errorf("unsupported color notation %q", c)
	}
	var h, sat, light float64
	body := strings.ReplaceAll(s[4:len(s)-1], "%", "")
	if _, err := fmt.Sscanf(body, "%g, %g, %g", &h, &sat, &light); err != nil {
		return color.RGBA{}, fmt.Errorf("parse %q: %w", c, err)
	}
	return hslToRGBA(h, sat/100, light/100), nil
}

// MustRGBA is RGBA for palette values, falling back to black.
func (c Color) MustRGBA() color.RGBA {
	rgba, err := c.RGBA()
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	return rgba
}

func hslToRGBA(h, s, l float64) color.RGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	chroma := (1 - math.Abs(2*l-1)) * s
	x := chroma * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - chroma/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = chroma, x, 0
	case h < 120:
		r, g, b = x, chroma, 0
	case h < 180:
		r, g, b = 0, chroma, x
	case h < 240:
		r, g, b = 0, x, chroma
	case h < 300:
		r, g, b = x, 0, chroma
	default:
		r, g, b = chroma, 0, x
	}
	return color.RGBA{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: 0xff,
	}
}

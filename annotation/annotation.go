package annotation

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Kind is the closed set of annotation shapes.
type Kind string

const (
	KindLine Kind = "line"
	KindText Kind = "text"
)

// Unit is the measurement unit attached to a line.
type Unit string

const (
	UnitMillimeter Unit = "mm"
	UnitCentimeter Unit = "cm"
	UnitMeter      Unit = "m"

	DefaultUnit = UnitCentimeter
)

// Units lists the accepted units in display order.
var Units = []Unit{UnitMillimeter, UnitCentimeter, UnitMeter}

func (u Unit) Valid() bool {
	switch u {
	case UnitMillimeter, UnitCentimeter, UnitMeter:
		return true
	default:
		return false
	}
}

var (
	ErrInvalidKind     = errors.New("annotation: invalid kind")
	ErrMissingTerminus = errors.New("annotation: line requires a terminus")
	ErrEmptyText       = errors.New("annotation: text annotation requires text")
	ErrMixedFields     = errors.New("annotation: fields do not match kind")
	ErrInvalidUnit     = errors.New("annotation: invalid unit")
	ErrInvalidColor    = errors.New("annotation: color is not in the palette")
	ErrMissingID       = errors.New("annotation: missing id")
	ErrCoordinateRange = errors.New("annotation: coordinate out of range")
)

// MaxCoordinate bounds the magnitude of any stored or drawn coordinate.
const MaxCoordinate = 1e6

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Valid reports whether both coordinates are finite and within MaxCoordinate.
func (p Point) Valid() bool {
	return math.Abs(p.X) <= MaxCoordinate && math.Abs(p.Y) <= MaxCoordinate
}

func checkPoint(p Point) error {
	if !p.Valid() {
		return fmt.Errorf("%w: (%g, %g)", ErrCoordinateRange, p.X, p.Y)
	}
	return nil
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	dx := q.X - p.X
	dy := q.Y - p.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Midpoint returns the point halfway between p and q.
func (p Point) Midpoint(q Point) Point {
	return Point{X: (p.X + q.X) / 2, Y: (p.Y + q.Y) / 2}
}

// Annotation is one mark drawn over an image. Coordinates are display pixels
// of the canvas the annotation was drawn on.
type Annotation struct {
	ID       string  `json:"id"`
	Kind     Kind    `json:"kind"`
	Anchor   Point   `json:"anchor"`
	Terminus *Point  `json:"terminus,omitempty"`
	Label    *string `json:"label,omitempty"`
	Value    *string `json:"value,omitempty"`
	Unit     *Unit   `json:"unit,omitempty"`
	Text     *string `json:"text,omitempty"`
	Color    Color   `json:"color"`
}

// LineInput carries the user-entered fields confirmed for a draft line.
type LineInput struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Unit  Unit   `json:"unit"`
}

// NewLine builds a line annotation. Blank label and value are stored as
// absent and an empty unit falls back to DefaultUnit.
func NewLine(id string, from, to Point, color Color, in LineInput) Annotation {
	unit := in.Unit
	if unit == "" {
		unit = DefaultUnit
	}
	terminus := to
	return Annotation{
		ID:       id,
		Kind:     KindLine,
		Anchor:   from,
		Terminus: &terminus,
		Label:    optional(in.Label),
		Value:    optional(in.Value),
		Unit:     &unit,
		Color:    color,
	}
}

// NewText builds a text annotation. It returns ErrEmptyText when text is
// blank after trimming.
func NewText(id string, at Point, color Color, text string) (Annotation, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return Annotation{}, ErrEmptyText
	}
	return Annotation{
		ID:     id,
		Kind:   KindText,
		Anchor: at,
		Text:   &t,
		Color:  color,
	}, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Normalize trims free-text fields, drops blank optional fields and clears
// fields that do not belong to the annotation's kind.
func (a Annotation) Normalize() Annotation {
	switch a.Kind {
	case KindLine:
		if a.Label != nil {
			a.Label = optional(*a.Label)
		}
		if a.Value != nil {
			a.Value = optional(*a.Value)
		}
		a.Text = nil
	case KindText:
		if a.Text != nil {
			a.Text = optional(*a.Text)
		}
		a.Terminus, a.Label, a.Value, a.Unit = nil, nil, nil, nil
	}
	return a
}

// Validate checks that the fields present match the kind.
func (a Annotation) Validate() error {
	if a.ID == "" {
		return ErrMissingID
	}
	if !a.Color.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidColor, a.Color)
	}
	if err := checkPoint(a.Anchor); err != nil {
		return err
	}
	switch a.Kind {
	case KindLine:
		if a.Terminus == nil {
			return ErrMissingTerminus
		}
		if err := checkPoint(*a.Terminus); err != nil {
			return err
		}
		if a.Text != nil {
			return fmt.Errorf("%w: line carries text", ErrMixedFields)
		}
		if a.Unit != nil && !a.Unit.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidUnit, *a.Unit)
		}
	case KindText:
		if a.Text == nil || strings.TrimSpace(*a.Text) == "" {
			return ErrEmptyText
		}
		if a.Terminus != nil || a.Label != nil || a.Value != nil || a.Unit != nil {
			return fmt.Errorf("%w: text carries line fields", ErrMixedFields)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, a.Kind)
	}
	return nil
}

// Length is the pixel length of a line, or 0 for anything without a terminus.
func (a Annotation) Length() float64 {
	if a.Terminus == nil {
		return 0
	}
	return a.Anchor.Distance(*a.Terminus)
}

// UnitOrDefault returns the line's unit, falling back to DefaultUnit.
func (a Annotation) UnitOrDefault() Unit {
	if a.Unit == nil || *a.Unit == "" {
		return DefaultUnit
	}
	return *a.Unit
}

// Caption is the text drawn in a line's label pill, or the text of a text
// annotation.
func (a Annotation) Caption() string {
	if a.Kind == KindText {
		if a.Text == nil {
			return ""
		}
		return *a.Text
	}
	value := "?"
	if a.Value != nil && *a.Value != "" {
		value = *a.Value
	}
	if a.Label != nil && *a.Label != "" {
		return fmt.Sprintf("%s: %s %s", *a.Label, value, a.UnitOrDefault())
	}
	return fmt.Sprintf("%s %s", value, a.UnitOrDefault())
}

// Clone returns a deep copy so callers never share pointer fields.
func (a Annotation) Clone() Annotation {
	out := a
	if a.Terminus != nil {
		t := *a.Terminus
		out.Terminus = &t
	}
	out.Label = cloneString(a.Label)
	out.Value = cloneString(a.Value)
	out.Text = cloneString(a.Text)
	if a.Unit != nil {
		u := *a.Unit
		out.Unit = &u
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// AnnotatedImage is an uploaded photo plus its overlay. Canvas records the
// display size the annotations were drawn at, when known.
type AnnotatedImage struct {
	ID          string       `json:"id"`
	URL         string       `json:"url"`
	Annotations []Annotation `json:"annotations"`
	Canvas      *Size        `json:"canvas,omitempty"`
}

// Validate checks the image record and each of its annotations.
func (img AnnotatedImage) Validate() error {
	if img.ID == "" {
		return errors.New("annotated image: missing id")
	}
	if img.URL == "" {
		return fmt.Errorf("annotated image %s: missing url", img.ID)
	}
	seen := make(map[string]struct{}, len(img.Annotations))
	for i, a := range img.Annotations {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("annotated image %s: annotation %d: %w", img.ID, i, err)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("annotated image %s: duplicate annotation id %s", img.ID, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}

package annotation

import (
	"encoding/json"
)

// legacyAnnotation is the flat shape written by earlier clients, with
// "type" instead of "kind" and separate start/end coordinates.
type legacyAnnotation struct {
	ID     string   `json:"id"`
	Type   Kind     `json:"type"`
	StartX float64  `json:"startX"`
	StartY float64  `json:"startY"`
	EndX   *float64 `json:"endX"`
	EndY   *float64 `json:"endY"`
	Label  *string  `json:"label"`
	Value  *string  `json:"value"`
	Unit   *Unit    `json:"unit"`
	Text   *string  `json:"text"`
	Color  Color    `json:"color"`
}

// UnmarshalJSON accepts both the current document shape and the legacy flat
// shape. Legacy records are converted and normalized.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	var probe struct {
		Kind Kind `json:"kind"`
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	if probe.Kind == "" && probe.Type != "" {
		var old legacyAnnotation
		if err := json.Unmarshal(data, &old); err != nil {
			return err
		}
		*a = old.convert()
		return nil
	}

	type plain Annotation
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = Annotation(p)
	return nil
}

func (old legacyAnnotation) convert() Annotation {
	a := Annotation{
		ID:     old.ID,
		Kind:   old.Type,
		Anchor: Point{X: old.StartX, Y: old.StartY},
		Label:  old.Label,
		Value:  old.Value,
		Unit:   old.Unit,
		Text:   old.Text,
		Color:  old.Color,
	}
	if old.Type == KindLine && old.EndX != nil && old.EndY != nil {
		a.Terminus = &Point{X: *old.EndX, Y: *old.EndY}
	}
	return a.Normalize()
}

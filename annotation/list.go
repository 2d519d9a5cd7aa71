package annotation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("annotation: not found")
	ErrNotLine  = errors.New("annotation: value can only be edited on a line")
)

// List is an ordered annotation collection. Order is insertion order, which
// is also draw order. Every operation returns a new List and never mutates
// the receiver's backing array.
type List []Annotation

// NewList copies src so the caller's slice is never aliased.
func NewList(src []Annotation) List {
	out := make(List, len(src))
	for i, a := range src {
		out[i] = a.Clone()
	}
	return out
}

func (l List) Append(a Annotation) List {
	out := make(List, len(l), len(l)+1)
	copy(out, l)
	return append(out, a)
}

// Undo drops the last annotation. Undo on an empty list is a no-op.
func (l List) Undo() List {
	if len(l) == 0 {
		return List{}
	}
	out := make(List, len(l)-1)
	copy(out, l[:len(l)-1])
	return out
}

func (l List) Clear() List {
	return List{}
}

// Find returns the index of the annotation with id, or -1.
func (l List) Find(id string) int {
	for i := range l {
		if l[i].ID == id {
			return i
		}
	}
	return -1
}

// UpdateValue replaces the value of the line with the given id. Every other
// field and every other annotation is left untouched.
func (l List) UpdateValue(id, value string) (List, error) {
	idx := l.Find(id)
	if idx < 0 {
		return l, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if l[idx].Kind != KindLine {
		return l, fmt.Errorf("%w: %s", ErrNotLine, id)
	}
	out := make(List, len(l))
	copy(out, l)
	updated := out[idx].Clone()
	if v := strings.TrimSpace(value); v != "" {
		updated.Value = &v
	} else {
		updated.Value = nil
	}
	out[idx] = updated
	return out, nil
}

// Slice returns a deep copy as a plain slice, never nil.
func (l List) Slice() []Annotation {
	out := make([]Annotation, len(l))
	for i, a := range l {
		out[i] = a.Clone()
	}
	return out
}

// Lines returns the line annotations in order, used for the recorded
// measurements summary.
func (l List) Lines() []Annotation {
	var out []Annotation
	for _, a := range l {
		if a.Kind == KindLine {
			out = append(out, a)
		}
	}
	return out
}

package survey

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDocument    = errors.New("survey: invalid document")
	ErrUnsupportedVersion = errors.New("survey: unsupported document version")
	ErrMissingFields      = errors.New("survey: required fields missing")
)

// FieldError points at the offending field of an invalid document.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error { return ErrInvalidDocument }

func fieldError(field, format string, args ...any) error {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks every configured block against its schema, including the
// kind invariant of every annotation.
func (d *Document) Validate() error {
	if d.Version != CurrentVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.Version)
	}
	for _, e := range d.blocks() {
		if e.block == nil {
			continue
		}
		if err := e.block.validate(); err != nil {
			return fmt.Errorf("block %s: %w", e.key, err)
		}
	}
	seen := make(map[string]struct{})
	for _, img := range d.Images() {
		if _, dup := seen[img.ID]; dup {
			return fieldError("images", "duplicate image id %s", img.ID)
		}
		seen[img.ID] = struct{}{}
	}
	return nil
}

func validatePhotos(field string, photos Photos) error {
	if len(photos) > MaxImages {
		return fieldError(field, "at most %d photos allowed, got %d", MaxImages, len(photos))
	}
	for i, p := range photos {
		if err := p.Validate(); err != nil {
			return &FieldError{Field: fmt.Sprintf("%s[%d]", field, i), Message: err.Error()}
		}
	}
	return nil
}

func uniqueID(field, id string, seen map[string]struct{}) error {
	if id == "" {
		return fieldError(field+".id", "missing id")
	}
	if _, dup := seen[id]; dup {
		return fieldError(field+".id", "duplicate id %s", id)
	}
	seen[id] = struct{}{}
	return nil
}

// MissingFields lists the required basic data fields that are blank.
type MissingFields []string

func (m MissingFields) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingFields, strings.Join(m, ", "))
}

func (m MissingFields) Unwrap() error { return ErrMissingFields }

// ValidateRequired checks the fields that must be filled before a survey can
// be saved: trade name, CNPJ, manager name and manager phone.
func (d *Document) ValidateRequired() error {
	b := d.BasicData
	if b == nil {
		b = &BasicData{}
	}
	required := []struct {
		field string
		value string
	}{
		{"nomeFantasia", b.TradeName},
		{"cnpj", b.CNPJ},
		{"gerenteNome", b.ManagerName},
		{"gerenteTelefone", b.ManagerPhone},
	}
	var missing MissingFields
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.field)
		}
	}
	if len(missing) > 0 {
		return missing
	}
	return nil
}

package survey

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// MaxProductsPerBlock caps the fuel products listed on each half of a sign.
const MaxProductsPerBlock = 5

// Fuels is the product catalog offered for pump signs.
var Fuels = []Product{
	{ID: "gas-comum", Name: "Gasolina Comum"},
	{ID: "gas-aditi", Name: "Gasolina Aditivada"},
	{ID: "etanol", Name: "Etanol"},
	{ID: "diesel-s10", Name: "Diesel S10"},
	{ID: "diesel-s500", Name: "Diesel S500"},
}

// OtherProductName is used for product ids outside the catalog.
const OtherProductName = "Outro"

var (
	ErrProductLimit   = errors.New("survey: product block is full")
	ErrMirroredBlock  = errors.New("survey: lower block mirrors the upper block on simple pumps")
	ErrInvalidSection = errors.New("survey: invalid sign section")
	ErrOutOfRange     = errors.New("survey: index out of range")
)

// SignSection selects the upper or lower product block of a sign.
type SignSection string

const (
	SectionUpper SignSection = "superior"
	SectionLower SignSection = "inferior"
)

// ProductName resolves a catalog id to its display name.
func ProductName(id string) string {
	for _, p := range Fuels {
		if p.ID == id {
			return p.Name
		}
	}
	return OtherProductName
}

// NewPumpSign returns an empty sign named after its position.
func NewPumpSign(index int) PumpSign {
	return PumpSign{
		ID:              uuid.NewString(),
		Name:            fmt.Sprintf("Sinalizador %d", index+1),
		ConditionPhotos: Photos{},
		Dimensions:      SignDimensions{MarkedPhotos: Photos{}},
		PumpType:        PumpSimple,
		Upper:           []Product{},
		Lower:           []Product{},
	}
}

func (s *PumpSign) normalize() {
	if s.PumpType == "" {
		s.PumpType = PumpSimple
	}
	if s.Upper == nil {
		s.Upper = []Product{}
	}
	if s.PumpType == PumpSimple {
		s.Lower = append([]Product{}, s.Upper...)
	}
	if s.Lower == nil {
		s.Lower = []Product{}
	}
}

func (s PumpSign) validate(field string) error {
	switch s.Condition {
	case SignConditionNone, SignConditionGood, SignConditionDented, SignConditionRust, SignConditionReplace:
	default:
		return fieldError(field+".condicaoAtual", "unknown condition %q", s.Condition)
	}
	switch s.PumpType {
	case PumpSimple, PumpInverted:
	default:
		return fieldError(field+".tipoBomba", "unknown pump type %q", s.PumpType)
	}
	if len(s.Upper) > MaxProductsPerBlock {
		return fieldError(field+".blocoSuperior", "at most %d products", MaxProductsPerBlock)
	}
	if len(s.Lower) > MaxProductsPerBlock {
		return fieldError(field+".blocoInferior", "at most %d products", MaxProductsPerBlock)
	}
	if err := validatePhotos(field+".fotosCondicao", s.ConditionPhotos); err != nil {
		return err
	}
	return validatePhotos(field+".dimensoes.fotosMarcadas", s.Dimensions.MarkedPhotos)
}

// SetPumpType switches the pump layout. Switching to simple copies the upper
// block over the lower one.
func (s *PumpSign) SetPumpType(t PumpType) error {
	if t != PumpSimple && t != PumpInverted {
		return fmt.Errorf("survey: unknown pump type %q", t)
	}
	s.PumpType = t
	s.normalize()
	return nil
}

func (s *PumpSign) section(sec SignSection) (*[]Product, error) {
	switch sec {
	case SectionUpper:
		return &s.Upper, nil
	case SectionLower:
		if s.PumpType == PumpSimple {
			return nil, ErrMirroredBlock
		}
		return &s.Lower, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSection, sec)
	}
}

// AddProduct appends an unselected product slot to a section.
func (s *PumpSign) AddProduct(sec SignSection) error {
	list, err := s.section(sec)
	if err != nil {
		return err
	}
	if len(*list) >= MaxProductsPerBlock {
		return ErrProductLimit
	}
	*list = append(*list, Product{ID: uuid.NewString()})
	s.normalize()
	return nil
}

// SetProduct selects a catalog product for the slot at index.
func (s *PumpSign) SetProduct(sec SignSection, index int, productID string) error {
	list, err := s.section(sec)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(*list) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}
	(*list)[index] = Product{ID: productID, Name: ProductName(productID)}
	s.normalize()
	return nil
}

func (s *PumpSign) RemoveProduct(sec SignSection, index int) error {
	list, err := s.section(sec)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(*list) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}
	*list = append((*list)[:index:index], (*list)[index+1:]...)
	s.normalize()
	return nil
}

// AddSign appends a new sign and keeps the count in step.
func (b *PumpSigns) AddSign() *PumpSign {
	b.Signs = append(b.Signs, NewPumpSign(len(b.Signs)))
	b.Count = len(b.Signs)
	return &b.Signs[len(b.Signs)-1]
}

func (b *PumpSigns) RemoveSign(id string) bool {
	for i := range b.Signs {
		if b.Signs[i].ID == id {
			b.Signs = append(b.Signs[:i:i], b.Signs[i+1:]...)
			b.Count = len(b.Signs)
			return true
		}
	}
	return false
}

// AddColumn appends a new column named after its position.
func (b *Columns) AddColumn() *Column {
	b.Columns = append(b.Columns, Column{
		ID:            uuid.NewString(),
		Name:          fmt.Sprintf("Coluna %d", len(b.Columns)+1),
		MeasurePhotos: Photos{},
		ExtraPhotos:   Photos{},
	})
	b.Count = len(b.Columns)
	return &b.Columns[len(b.Columns)-1]
}

func (b *Columns) RemoveColumn(id string) bool {
	for i := range b.Columns {
		if b.Columns[i].ID == id {
			b.Columns = append(b.Columns[:i:i], b.Columns[i+1:]...)
			b.Count = len(b.Columns)
			return true
		}
	}
	return false
}

// AddCover appends a new pump cover named after its position.
func (b *PumpCovers) AddCover() *PumpCover {
	b.Covers = append(b.Covers, PumpCover{
		ID:            uuid.NewString(),
		Name:          fmt.Sprintf("Capa / Bomba %d", len(b.Covers)+1),
		MeasurePhotos: Photos{},
		DecalPhotos:   Photos{},
	})
	return &b.Covers[len(b.Covers)-1]
}

// AddIsland appends a new fuel island named after its position.
func (b *Islands) AddIsland() *Island {
	b.Islands = append(b.Islands, Island{
		ID:            uuid.NewString(),
		Name:          fmt.Sprintf("Ilha %d", len(b.Islands)+1),
		MeasurePhotos: Photos{},
	})
	return &b.Islands[len(b.Islands)-1]
}

package survey

import (
	"fmt"
	"strings"
)

// Block keys in display order.
const (
	KeyBasicData     = "dados"
	KeyFascia        = "testeira"
	KeyFasciaLogo    = "logo"
	KeyPVCCeiling    = "forro"
	KeyColumns       = "colunas"
	KeyPumpSigns     = "sinalizadores"
	KeyPumpCovers    = "capas"
	KeyIslands       = "ilha"
	KeyCorporateSign = "totemCorp"
	KeyANPSign       = "totemANP"
	KeyPennant       = "galhardete"
)

type block interface {
	filled() bool
	validate() error
	photoLists() []*Photos
}

type blockEntry struct {
	key   string
	label string
	block block
}

func newEntry[B any, P interface {
	*B
	block
}](key, label string, b P) blockEntry {
	e := blockEntry{key: key, label: label}
	if b != nil {
		e.block = b
	}
	return e
}

func (d *Document) blocks() []blockEntry {
	return []blockEntry{
		newEntry(KeyBasicData, "Dados Básicos", d.BasicData),
		newEntry(KeyFascia, "Testeira", d.Fascia),
		newEntry(KeyFasciaLogo, "Logo de Testeira", d.FasciaLogo),
		newEntry(KeyPVCCeiling, "Forro de PVC", d.PVCCeiling),
		newEntry(KeyColumns, "Colunas", d.Columns),
		newEntry(KeyPumpSigns, "Sinalizadores de Bomba", d.PumpSigns),
		newEntry(KeyPumpCovers, "Capas de Bomba", d.PumpCovers),
		newEntry(KeyIslands, "Ilhas de Abastecimento", d.Islands),
		newEntry(KeyCorporateSign, "Totem Corporativo", d.CorporateSign),
		newEntry(KeyANPSign, "Totem ANP", d.ANPSign),
		newEntry(KeyPennant, "Galhardete", d.Pennant),
	}
}

// BlockStatus describes one block for the form's section list.
type BlockStatus struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Title      string `json:"title"`
	Configured bool   `json:"configured"`
	Filled     bool   `json:"filled"`
	Photos     int    `json:"photos"`
}

// Blocks reports every block in display order. The basic data block is shown
// unnumbered; the others are titled "Bloco N – label".
func (d *Document) Blocks() []BlockStatus {
	entries := d.blocks()
	out := make([]BlockStatus, 0, len(entries))
	for i, e := range entries {
		st := BlockStatus{Key: e.key, Label: e.label, Title: e.label}
		if i > 0 {
			st.Title = fmt.Sprintf("Bloco %d – %s", i, e.label)
		}
		if e.block != nil {
			st.Configured = true
			st.Filled = e.block.filled()
			for _, list := range e.block.photoLists() {
				st.Photos += len(*list)
			}
		}
		out = append(out, st)
	}
	return out
}

func hasText(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

func hasPhotos(lists ...Photos) bool {
	for _, l := range lists {
		if len(l) > 0 {
			return true
		}
	}
	return false
}

func anyTrue(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}

func (b *BasicData) filled() bool {
	return hasText(b.Network, b.Brand, b.TradeName, b.CNPJ, b.ManagerName, b.ManagerPhone) ||
		hasPhotos(b.StationPhotos)
}

func (b *BasicData) validate() error {
	return validatePhotos("fotoPosto", b.StationPhotos)
}

func (b *BasicData) photoLists() []*Photos {
	return []*Photos{&b.StationPhotos}
}

func (b *Fascia) filled() bool {
	n := b.Notes
	return hasPhotos(b.Perimeter.Photos, b.Height.Photos) ||
		hasText(n.CurrentMaterial, n.Condition, string(n.Lighting), n.Finishes, n.InnerStructure,
			b.Plan.SpecificService, b.Reuse.Note) ||
		anyTrue(b.Plan.Project3D, b.Plan.ClientBrandManual, b.Reuse.Reuse)
}

func (b *Fascia) validate() error {
	switch b.Notes.Lighting {
	case LightingNone, LightingLED, LightingFluorescent, LightingAbsent, LightingOther:
	default:
		return fieldError("testeira.observacoes.iluminacao", "unknown lighting %q", b.Notes.Lighting)
	}
	if err := validatePhotos("testeira.perimetro.fotos", b.Perimeter.Photos); err != nil {
		return err
	}
	return validatePhotos("testeira.altura.fotos", b.Height.Photos)
}

func (b *Fascia) photoLists() []*Photos {
	return []*Photos{&b.Perimeter.Photos, &b.Height.Photos}
}

func (b *FasciaLogo) filled() bool {
	s := b.Supply
	return b.Count > 0 || hasPhotos(b.PositionPhotos) ||
		hasText(string(s.Material), s.Lighting, s.ReuseNote) || s.MaterialReuse
}

func (b *FasciaLogo) validate() error {
	if b.Count < 0 {
		return fieldError("logoTesteira.quantidadeLogos", "must not be negative")
	}
	switch b.Supply.Material {
	case MaterialNone, MaterialAcrylic, MaterialACM, MaterialCanvas, MaterialAluminum:
	default:
		return fieldError("logoTesteira.comoSeraFornecida.material", "unknown material %q", b.Supply.Material)
	}
	return validatePhotos("logoTesteira.posicaoFotos", b.PositionPhotos)
}

func (b *FasciaLogo) photoLists() []*Photos {
	return []*Photos{&b.PositionPhotos}
}

func (b *PVCCeiling) filled() bool {
	return hasPhotos(b.Photos) || hasText(b.Notes)
}

func (b *PVCCeiling) validate() error {
	return validatePhotos("forroPVC.fotos", b.Photos)
}

func (b *PVCCeiling) photoLists() []*Photos {
	return []*Photos{&b.Photos}
}

func (b *Columns) filled() bool {
	return len(b.Columns) > 0 || hasText(b.CurrentCondition) ||
		anyTrue(b.Plan.Cladding, b.Plan.Painting, b.Plan.Decals)
}

func (b *Columns) validate() error {
	ids := make(map[string]struct{}, len(b.Columns))
	for i, c := range b.Columns {
		field := fmt.Sprintf("colunas.colunas[%d]", i)
		if err := uniqueID(field, c.ID, ids); err != nil {
			return err
		}
		if err := validatePhotos(field+".medidasFotos", c.MeasurePhotos); err != nil {
			return err
		}
		if err := validatePhotos(field+".fotosAdicionais", c.ExtraPhotos); err != nil {
			return err
		}
	}
	return nil
}

func (b *Columns) photoLists() []*Photos {
	var lists []*Photos
	for i := range b.Columns {
		lists = append(lists, &b.Columns[i].MeasurePhotos, &b.Columns[i].ExtraPhotos)
	}
	return lists
}

func (b *PumpSigns) filled() bool {
	return len(b.Signs) > 0 || anyTrue(b.Plan.Refurbish, b.Plan.Decals, b.Plan.New)
}

func (b *PumpSigns) validate() error {
	ids := make(map[string]struct{}, len(b.Signs))
	for i, s := range b.Signs {
		field := fmt.Sprintf("sinalizadores.sinalizadores[%d]", i)
		if err := uniqueID(field, s.ID, ids); err != nil {
			return err
		}
		if err := s.validate(field); err != nil {
			return err
		}
	}
	return nil
}

func (b *PumpSigns) photoLists() []*Photos {
	var lists []*Photos
	for i := range b.Signs {
		lists = append(lists, &b.Signs[i].ConditionPhotos, &b.Signs[i].Dimensions.MarkedPhotos)
	}
	return lists
}

func (b *PumpCovers) filled() bool {
	return b.PumpCount > 0 || len(b.Covers) > 0
}

func (b *PumpCovers) validate() error {
	if b.PumpCount < 0 {
		return fieldError("capasBomba.quantidadeBombas", "must not be negative")
	}
	ids := make(map[string]struct{}, len(b.Covers))
	for i, c := range b.Covers {
		field := fmt.Sprintf("capasBomba.capas[%d]", i)
		if err := uniqueID(field, c.ID, ids); err != nil {
			return err
		}
		if err := validatePhotos(field+".fotosMedidas", c.MeasurePhotos); err != nil {
			return err
		}
		if err := validatePhotos(field+".fotosAdesivos", c.DecalPhotos); err != nil {
			return err
		}
	}
	return nil
}

func (b *PumpCovers) photoLists() []*Photos {
	var lists []*Photos
	for i := range b.Covers {
		lists = append(lists, &b.Covers[i].MeasurePhotos, &b.Covers[i].DecalPhotos)
	}
	return lists
}

func (b *Islands) filled() bool {
	return len(b.Islands) > 0
}

func (b *Islands) validate() error {
	ids := make(map[string]struct{}, len(b.Islands))
	for i, isl := range b.Islands {
		field := fmt.Sprintf("ilha.ilhas[%d]", i)
		if err := uniqueID(field, isl.ID, ids); err != nil {
			return err
		}
		if err := validatePhotos(field+".fotosMedidas", isl.MeasurePhotos); err != nil {
			return err
		}
	}
	return nil
}

func (b *Islands) photoLists() []*Photos {
	var lists []*Photos
	for i := range b.Islands {
		lists = append(lists, &b.Islands[i].MeasurePhotos)
	}
	return lists
}

var (
	totemElectrical = []string{"", "funcionando", "parcial", "desligada", "nao_possui"}
	totemPaint      = []string{"", "boa", "desgastada", "ferrugem", "amassada"}
	totemBase       = []string{"", "concreto_bom", "concreto_ruim", "chumbado", "solto"}
)

func (b *Totem) filled() bool {
	c := b.Condition
	return b.Present || hasPhotos(b.MeasurePhotos) || hasText(c.Electrical, c.Paint, c.Base, b.Plan)
}

func (b *Totem) validate() error {
	checks := []struct {
		field   string
		value   string
		allowed []string
	}{
		{"condicaoAtual.eletrica", b.Condition.Electrical, totemElectrical},
		{"condicaoAtual.pintura", b.Condition.Paint, totemPaint},
		{"condicaoAtual.baseSolo", b.Condition.Base, totemBase},
	}
	for _, c := range checks {
		if !contains(c.allowed, c.value) {
			return fieldError(c.field, "unknown value %q", c.value)
		}
	}
	return validatePhotos("fotosMedidas", b.MeasurePhotos)
}

func (b *Totem) photoLists() []*Photos {
	return []*Photos{&b.MeasurePhotos}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

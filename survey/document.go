package survey

import (
	"encoding/json"
	"fmt"

	"github.com/camden-git/fieldsurvey/annotation"
)

// CurrentVersion is written into every encoded Document. Documents stored
// before versioning decode as version 1 and are upgraded on load.
const CurrentVersion = 2

// Photos is a list of uploaded photos with their annotation overlays.
type Photos []annotation.AnnotatedImage

// Document is the full survey form. A nil block pointer means the block was
// never configured for this survey.
type Document struct {
	Version       int         `json:"version"`
	BasicData     *BasicData  `json:"dadosBasicos,omitempty"`
	Fascia        *Fascia     `json:"testeira,omitempty"`
	FasciaLogo    *FasciaLogo `json:"logoTesteira,omitempty"`
	PVCCeiling    *PVCCeiling `json:"forroPVC,omitempty"`
	Columns       *Columns    `json:"colunas,omitempty"`
	PumpSigns     *PumpSigns  `json:"sinalizadores,omitempty"`
	PumpCovers    *PumpCovers `json:"capasBomba,omitempty"`
	Islands       *Islands    `json:"ilha,omitempty"`
	CorporateSign *Totem      `json:"totemCorp,omitempty"`
	ANPSign       *Totem      `json:"totemANP,omitempty"`
	Pennant       *Totem      `json:"galhardete,omitempty"`
}

type BasicData struct {
	Network       string `json:"rede"`
	Brand         string `json:"bandeira"`
	TradeName     string `json:"nomeFantasia"`
	CNPJ          string `json:"cnpj"`
	ManagerName   string `json:"gerenteNome"`
	ManagerPhone  string `json:"gerenteTelefone"`
	StationPhotos Photos `json:"fotoPosto"`
}

type PhotoSet struct {
	Photos Photos `json:"fotos"`
}

type Lighting string

const (
	LightingNone        Lighting = ""
	LightingLED         Lighting = "led"
	LightingFluorescent Lighting = "fluorescente"
	LightingAbsent      Lighting = "sem_iluminacao"
	LightingOther       Lighting = "outros"
)

type Fascia struct {
	Perimeter PhotoSet      `json:"perimetro"`
	Height    PhotoSet      `json:"altura"`
	Notes     FasciaNotes   `json:"observacoes"`
	Plan      FasciaPlan    `json:"oQueSeraFeito"`
	Reuse     MaterialReuse `json:"aproveitamentoMaterial"`
}

type FasciaNotes struct {
	CurrentMaterial string   `json:"materialAtual"`
	Condition       string   `json:"condicaoGeral"`
	Lighting        Lighting `json:"iluminacao"`
	Finishes        string   `json:"acabamentos"`
	InnerStructure  string   `json:"estruturaInterna"`
}

type FasciaPlan struct {
	Project3D         bool   `json:"padraoProjeto3D"`
	ClientBrandManual bool   `json:"manualMarcaCliente"`
	SpecificService   string `json:"servicoEspecifico"`
}

type MaterialReuse struct {
	Reuse bool   `json:"reaproveita"`
	Note  string `json:"observacao"`
}

type LogoMaterial string

const (
	MaterialNone     LogoMaterial = ""
	MaterialAcrylic  LogoMaterial = "acrilico"
	MaterialACM      LogoMaterial = "acm"
	MaterialCanvas   LogoMaterial = "lona"
	MaterialAluminum LogoMaterial = "aluminio"
)

type FasciaLogo struct {
	Count          int        `json:"quantidadeLogos"`
	PositionPhotos Photos     `json:"posicaoFotos"`
	Supply         LogoSupply `json:"comoSeraFornecida"`
}

type LogoSupply struct {
	Material      LogoMaterial `json:"material"`
	Lighting      string       `json:"iluminacao"`
	MaterialReuse bool         `json:"aproveitamentoMaterial"`
	ReuseNote     string       `json:"aproveitamentoObservacao"`
}

type PVCCeiling struct {
	Photos Photos `json:"fotos"`
	Notes  string `json:"observacoes"`
}

type Columns struct {
	Count            int        `json:"quantidade"`
	Columns          []Column   `json:"colunas"`
	CurrentCondition string     `json:"condicaoAtualDescricao"`
	Plan             ColumnPlan `json:"oQueSeraFeito"`
}

type Column struct {
	ID            string      `json:"id"`
	Name          string      `json:"nome"`
	MeasurePhotos Photos      `json:"medidasFotos"`
	Existing      ColumnItems `json:"itensExistentes"`
	Note          string      `json:"observacao"`
	ExtraPhotos   Photos      `json:"fotosAdicionais"`
}

type ColumnItems struct {
	ElectricalDucts bool `json:"dutosEletricos"`
	DrainDucts      bool `json:"dutosEscoamento"`
	Taps            bool `json:"torneiras"`
	SpareItems      bool `json:"itensSobressalentes"`
}

type ColumnPlan struct {
	Cladding bool `json:"revestimento"`
	Painting bool `json:"pintura"`
	Decals   bool `json:"adesivacao"`
}

type SignCondition string

const (
	SignConditionNone    SignCondition = ""
	SignConditionGood    SignCondition = "bom"
	SignConditionDented  SignCondition = "amassado"
	SignConditionRust    SignCondition = "ferrugem"
	SignConditionReplace SignCondition = "trocar"
)

type PumpType string

const (
	// PumpSimple mirrors the upper product block into the lower one.
	PumpSimple   PumpType = "simples"
	PumpInverted PumpType = "invertida"
)

type PumpSigns struct {
	Count int        `json:"quantidade"`
	Signs []PumpSign `json:"sinalizadores"`
	Plan  SignPlan   `json:"oQueSeraFeito"`
}

type PumpSign struct {
	ID              string         `json:"id"`
	Name            string         `json:"nome"`
	Condition       SignCondition  `json:"condicaoAtual"`
	ConditionPhotos Photos         `json:"fotosCondicao"`
	ConditionNote   string         `json:"observacaoCondicao"`
	Dimensions      SignDimensions `json:"dimensoes"`
	PumpType        PumpType       `json:"tipoBomba"`
	Upper           []Product      `json:"blocoSuperior"`
	Lower           []Product      `json:"blocoInferior"`
}

type SignDimensions struct {
	Height       string `json:"altura"`
	Width        string `json:"largura"`
	Depth        string `json:"profundidade"`
	MarkedPhotos Photos `json:"fotosMarcadas"`
}

type Product struct {
	ID   string `json:"id"`
	Name string `json:"nome"`
}

type SignPlan struct {
	Refurbish bool `json:"reforma"`
	Decals    bool `json:"adesivacao"`
	New       bool `json:"novo"`
}

type PumpCovers struct {
	PumpCount int         `json:"quantidadeBombas"`
	Covers    []PumpCover `json:"capas"`
}

type PumpCover struct {
	ID            string `json:"id"`
	Name          string `json:"nome"`
	MeasurePhotos Photos `json:"fotosMedidas"`
	DecalPhotos   Photos `json:"fotosAdesivos"`
	Notes         string `json:"observacoes"`
}

type Islands struct {
	Islands []Island `json:"ilhas"`
}

type Island struct {
	ID            string `json:"id"`
	Name          string `json:"nome"`
	MeasurePhotos Photos `json:"fotosMedidas"`
	Notes         string `json:"observacoes"`
}

type Totem struct {
	Present       bool           `json:"possui"`
	Condition     TotemCondition `json:"condicaoAtual"`
	MeasurePhotos Photos         `json:"fotosMedidas"`
	Plan          string         `json:"oQueSeraFeito"`
}

type TotemCondition struct {
	Electrical string `json:"eletrica"`
	Paint      string `json:"pintura"`
	Base       string `json:"baseSolo"`
}

// NewDocument returns the empty form with every block configured.
func NewDocument() *Document {
	return &Document{
		Version:       CurrentVersion,
		BasicData:     &BasicData{StationPhotos: Photos{}},
		Fascia:        &Fascia{Perimeter: PhotoSet{Photos: Photos{}}, Height: PhotoSet{Photos: Photos{}}},
		FasciaLogo:    &FasciaLogo{PositionPhotos: Photos{}},
		PVCCeiling:    &PVCCeiling{Photos: Photos{}},
		Columns:       &Columns{Columns: []Column{}},
		PumpSigns:     &PumpSigns{Signs: []PumpSign{}},
		PumpCovers:    &PumpCovers{Covers: []PumpCover{}},
		Islands:       &Islands{Islands: []Island{}},
		CorporateSign: &Totem{MeasurePhotos: Photos{}},
		ANPSign:       &Totem{MeasurePhotos: Photos{}},
		Pennant:       &Totem{MeasurePhotos: Photos{}},
	}
}

// Decode parses a stored document, upgrades it to CurrentVersion, normalizes
// it and validates every block.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Version > CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	doc.upgrade()
	doc.Normalize()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Encode normalizes the document and serializes it.
func (d *Document) Encode() ([]byte, error) {
	d.Version = CurrentVersion
	d.Normalize()
	return json.Marshal(d)
}

// upgrade migrates older document versions in place.
func (d *Document) upgrade() {
	if d.Version < 2 {
		// version 1 stored sign pump types as empty strings
		if d.PumpSigns != nil {
			for i := range d.PumpSigns.Signs {
				if d.PumpSigns.Signs[i].PumpType == "" {
					d.PumpSigns.Signs[i].PumpType = PumpSimple
				}
			}
		}
		d.Version = 2
	}
}

// Normalize keeps derived fields consistent: counts follow list lengths,
// simple pumps mirror their upper products, photo lists and annotation lists
// are never null.
func (d *Document) Normalize() {
	if d.Columns != nil {
		d.Columns.Count = len(d.Columns.Columns)
	}
	if d.PumpSigns != nil {
		d.PumpSigns.Count = len(d.PumpSigns.Signs)
		for i := range d.PumpSigns.Signs {
			d.PumpSigns.Signs[i].normalize()
		}
	}
	for _, list := range d.photoLists() {
		if *list == nil {
			*list = Photos{}
		}
		for i := range *list {
			img := &(*list)[i]
			if img.Annotations == nil {
				img.Annotations = []annotation.Annotation{}
			}
			for j := range img.Annotations {
				img.Annotations[j] = img.Annotations[j].Normalize()
			}
		}
	}
}

// Images returns pointers to every photo in the document, in block order.
func (d *Document) Images() []*annotation.AnnotatedImage {
	var out []*annotation.AnnotatedImage
	for _, list := range d.photoLists() {
		for i := range *list {
			out = append(out, &(*list)[i])
		}
	}
	return out
}

// FindImage returns the photo with the given id.
func (d *Document) FindImage(id string) (*annotation.AnnotatedImage, bool) {
	for _, img := range d.Images() {
		if img.ID == id {
			return img, true
		}
	}
	return nil, false
}

func (d *Document) photoLists() []*Photos {
	var lists []*Photos
	for _, b := range d.blocks() {
		if b.block != nil {
			lists = append(lists, b.block.photoLists()...)
		}
	}
	return lists
}

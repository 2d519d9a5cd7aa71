package survey

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func photo(id string, anns ...annotation.Annotation) annotation.AnnotatedImage {
	if anns == nil {
		anns = []annotation.Annotation{}
	}
	return annotation.AnnotatedImage{ID: id, URL: "https://cdn.test/" + id + ".jpg", Annotations: anns}
}

func TestNewDocumentRoundTrip(t *testing.T) {
	doc := NewDocument()
	doc.BasicData.TradeName = "Posto Central"
	doc.Fascia.Perimeter.Photos = Photos{photo("p1",
		annotation.NewLine("l1", annotation.Point{X: 10, Y: 10}, annotation.Point{X: 100, Y: 50}, annotation.DefaultColor,
			annotation.LineInput{Label: "Largura", Value: "120", Unit: annotation.UnitCentimeter}))}

	data, err := doc.Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

func TestDecodeLegacyDocument(t *testing.T) {
	data := []byte(`{
		"dadosBasicos": {"rede":"","bandeira":"","nomeFantasia":"Posto","cnpj":"","gerenteNome":"","gerenteTelefone":"","fotoPosto":[]},
		"testeira": {
			"perimetro": {"fotos": [{"id":"f1","url":"u1","annotations":[
				{"id":"a","type":"line","startX":1,"startY":2,"endX":3,"endY":4,"color":"hsl(0, 72%, 51%)"}
			]}]},
			"altura": {"fotos": []},
			"observacoes": {"materialAtual":"","condicaoGeral":"","iluminacao":"led","acabamentos":"","estruturaInterna":""},
			"oQueSeraFeito": {"padraoProjeto3D":false,"manualMarcaCliente":false,"servicoEspecifico":""},
			"aproveitamentoMaterial": {"reaproveita":false,"observacao":""}
		},
		"sinalizadores": {"quantidade": 9, "sinalizadores": [
			{"id":"s1","nome":"Sinalizador 1","condicaoAtual":"","fotosCondicao":[],"observacaoCondicao":"",
			 "dimensoes":{"altura":"","largura":"","profundidade":"","fotosMarcadas":[]},
			 "tipoBomba":"","blocoSuperior":[{"id":"etanol","nome":"Etanol"}],"blocoInferior":[]}
		], "oQueSeraFeito": {"reforma":false,"adesivacao":false,"novo":false}}
	}`)

	doc, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, doc.Version)
	assert.Nil(t, doc.Columns, "absent block stays unconfigured")

	img, ok := doc.FindImage("f1")
	require.True(t, ok)
	require.Len(t, img.Annotations, 1)
	assert.Equal(t, annotation.KindLine, img.Annotations[0].Kind)

	signs := doc.PumpSigns
	assert.Equal(t, 1, signs.Count)
	assert.Equal(t, PumpSimple, signs.Signs[0].PumpType)
	assert.Equal(t, signs.Signs[0].Upper, signs.Signs[0].Lower)
}

func TestDecodeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		err  error
	}{
		{"future version", `{"version": 99}`, ErrUnsupportedVersion},
		{"bad lighting", `{"version":2,"testeira":{"observacoes":{"iluminacao":"neon"}}}`, ErrInvalidDocument},
		{"annotation kind invariant", `{"version":2,"forroPVC":{"fotos":[{"id":"f","url":"u","annotations":[
			{"id":"a","kind":"line","anchor":{"x":1,"y":1},"color":"hsl(0, 72%, 51%)"}]}]}}`, ErrInvalidDocument},
		{"duplicate column ids", `{"version":2,"colunas":{"colunas":[{"id":"c"},{"id":"c"}]}}`, ErrInvalidDocument},
		{"too many products", `{"version":2,"sinalizadores":{"sinalizadores":[{"id":"s","tipoBomba":"invertida",
			"blocoSuperior":[{"id":"1"},{"id":"2"},{"id":"3"},{"id":"4"},{"id":"5"},{"id":"6"}]}]}}`, ErrInvalidDocument},
		{"bad totem value", `{"version":2,"totemANP":{"condicaoAtual":{"eletrica":"talvez"}}}`, ErrInvalidDocument},
		{"duplicate image ids", `{"version":2,"forroPVC":{"fotos":[{"id":"f","url":"u","annotations":[]}]},
			"ilha":{"ilhas":[{"id":"i","fotosMedidas":[{"id":"f","url":"u","annotations":[]}]}]}}`, ErrInvalidDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, err := Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestTooManyPhotosInField(t *testing.T) {
	doc := NewDocument()
	for i := 0; i <= MaxImages; i++ {
		doc.PVCCeiling.Photos = append(doc.PVCCeiling.Photos, photo(fmt.Sprintf("f%d", i)))
	}
	var fe *FieldError
	require.ErrorAs(t, doc.Validate(), &fe)
	assert.Equal(t, "forroPVC.fotos", fe.Field)
}

func TestBlocksStatus(t *testing.T) {
	doc := NewDocument()
	doc.Pennant = nil
	doc.Fascia.Plan.Project3D = true
	doc.Islands.AddIsland().MeasurePhotos = Photos{photo("i1"), photo("i2")}

	blocks := doc.Blocks()
	require.Len(t, blocks, 11)
	assert.Equal(t, "Dados Básicos", blocks[0].Title)
	assert.Equal(t, "Bloco 1 – Testeira", blocks[1].Title)

	byKey := map[string]BlockStatus{}
	for _, b := range blocks {
		byKey[b.Key] = b
	}
	assert.False(t, byKey[KeyBasicData].Filled)
	assert.True(t, byKey[KeyFascia].Filled)
	assert.True(t, byKey[KeyIslands].Filled)
	assert.Equal(t, 2, byKey[KeyIslands].Photos)
	assert.False(t, byKey[KeyPennant].Configured)
	assert.False(t, byKey[KeyPennant].Filled)
	assert.True(t, byKey[KeyCorporateSign].Configured)
	assert.False(t, byKey[KeyCorporateSign].Filled)

	doc.BasicData.ManagerName = "   "
	assert.False(t, doc.Blocks()[0].Filled, "whitespace does not fill a block")
}

func TestValidateRequired(t *testing.T) {
	doc := NewDocument()
	err := doc.ValidateRequired()
	require.ErrorIs(t, err, ErrMissingFields)
	var missing MissingFields
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, MissingFields{"nomeFantasia", "cnpj", "gerenteNome", "gerenteTelefone"}, missing)

	doc.BasicData.TradeName = "Posto"
	doc.BasicData.CNPJ = "12.345.678/0001-90"
	doc.BasicData.ManagerName = "Ana"
	doc.BasicData.ManagerPhone = " "
	err = doc.ValidateRequired()
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, MissingFields{"gerenteTelefone"}, missing)

	doc.BasicData.ManagerPhone = "(11) 99999-0000"
	assert.NoError(t, doc.ValidateRequired())

	doc.BasicData = nil
	assert.ErrorIs(t, doc.ValidateRequired(), ErrMissingFields)
}

func TestFormatCNPJ(t *testing.T) {
	tests := map[string]string{
		"":                     "",
		"1":                    "1",
		"123":                  "12.3",
		"123456":               "12.345.6",
		"123456789":            "12.345.678/9",
		"1234567890123":        "12.345.678/9012-3",
		"12345678000190":       "12.345.678/0001-90",
		"12.345.678/0001-9099": "12.345.678/0001-90",
		"ab12cd":               "12",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatCNPJ(in), in)
	}
	assert.Equal(t, "12345678000190", NormalizeCNPJ("12.345.678/0001-90"))
}

func TestFormatPhone(t *testing.T) {
	tests := map[string]string{
		"1199":          "1199",
		"119999":        "(11) 9999-",
		"1133334444":    "(11) 3333-4444",
		"11999998888":   "(11) 99999-8888",
		"(11) 99999-88": "(11) 9999-988",
		"119999988889":  "(11) 99999-8888",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatPhone(in), in)
	}
}

func TestPumpSignProducts(t *testing.T) {
	signs := &PumpSigns{}
	s := signs.AddSign()
	assert.Equal(t, "Sinalizador 1", s.Name)
	assert.Equal(t, 1, signs.Count)

	require.NoError(t, s.AddProduct(SectionUpper))
	require.NoError(t, s.SetProduct(SectionUpper, 0, "diesel-s10"))
	assert.Equal(t, Product{ID: "diesel-s10", Name: "Diesel S10"}, s.Upper[0])
	assert.Equal(t, s.Upper, s.Lower, "simple pumps mirror the upper block")
	assert.ErrorIs(t, s.AddProduct(SectionLower), ErrMirroredBlock)

	require.NoError(t, s.SetPumpType(PumpInverted))
	require.NoError(t, s.AddProduct(SectionLower))
	require.NoError(t, s.SetProduct(SectionLower, 1, "querosene"))
	assert.Equal(t, OtherProductName, s.Lower[1].Name)
	assert.Len(t, s.Upper, 1)

	for i := 0; i < MaxProductsPerBlock-1; i++ {
		require.NoError(t, s.AddProduct(SectionUpper))
	}
	assert.ErrorIs(t, s.AddProduct(SectionUpper), ErrProductLimit)
	assert.ErrorIs(t, s.SetProduct(SectionUpper, 9, "etanol"), ErrOutOfRange)
	assert.ErrorIs(t, s.AddProduct("meio"), ErrInvalidSection)

	require.NoError(t, s.RemoveProduct(SectionUpper, 0))
	assert.Len(t, s.Upper, MaxProductsPerBlock-1)

	require.NoError(t, s.SetPumpType(PumpSimple))
	assert.Equal(t, s.Upper, s.Lower)

	assert.True(t, signs.RemoveSign(s.ID))
	assert.Equal(t, 0, signs.Count)
	assert.False(t, signs.RemoveSign("missing"))
}

func TestColumnsKeepCount(t *testing.T) {
	cols := &Columns{}
	first := cols.AddColumn()
	firstID := first.ID
	second := cols.AddColumn()
	assert.Equal(t, "Coluna 2", second.Name)
	assert.Equal(t, 2, cols.Count)
	assert.True(t, cols.RemoveColumn(firstID))
	assert.Equal(t, 1, cols.Count)

	covers := &PumpCovers{}
	assert.Equal(t, "Capa / Bomba 1", covers.AddCover().Name)
}

type fakeUploader struct {
	n    int
	fail error
	got  []string
}

func (f *fakeUploader) Upload(_ context.Context, userID uint, filename string, data io.Reader) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	if _, err := io.ReadAll(data); err != nil {
		return "", err
	}
	f.n++
	f.got = append(f.got, filename)
	return fmt.Sprintf("https://cdn.test/%d/%d.jpg", userID, f.n), nil
}

func TestImageListLimitAndRemove(t *testing.T) {
	var photos Photos
	up := &fakeUploader{}
	list := NewImageList(&photos, up, 7)
	ctx := context.Background()

	var ids []string
	for i := 0; i < MaxImages; i++ {
		img, err := list.Add(ctx, "a.jpg", bytes.NewReader([]byte("x")))
		require.NoError(t, err)
		assert.Empty(t, img.Annotations)
		assert.NotNil(t, img.Annotations)
		ids = append(ids, img.ID)
	}
	_, err := list.Add(ctx, "b.jpg", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrImageLimit)
	assert.Equal(t, MaxImages, up.n, "no upload once the field is full")

	require.NoError(t, list.Remove(ids[0]))
	assert.Len(t, photos, MaxImages-1)
	assert.ErrorIs(t, list.Remove("missing"), ErrImageNotFound)
}

func TestImageListUploadFailureAddsNothing(t *testing.T) {
	var photos Photos
	list := NewImageList(&photos, &fakeUploader{fail: errors.New("offline")}, 1)
	_, err := list.Add(context.Background(), "a.jpg", bytes.NewReader(nil))
	assert.Error(t, err)
	assert.Empty(t, photos)
}

func TestImageListEditorLifecycle(t *testing.T) {
	existing := annotation.NewLine("A", annotation.Point{}, annotation.Point{X: 1, Y: 1}, annotation.DefaultColor, annotation.LineInput{})
	photos := Photos{photo("p1", existing), photo("p2")}
	list := NewImageList(&photos, &fakeUploader{}, 1)

	session, err := list.Edit("p1", annotation.WithCanvasSize(annotation.Size{Width: 400, Height: 300}))
	require.NoError(t, err)
	_, err = list.Edit("p2")
	assert.ErrorIs(t, err, ErrEditorOpen)
	assert.ErrorIs(t, list.Remove("p1"), ErrEditorOpen)

	require.NoError(t, session.PointerDown(annotation.Point{X: 5, Y: 5}))
	require.NoError(t, session.PointerUp(annotation.Point{X: 9, Y: 9}))
	require.NoError(t, session.ConfirmLine(annotation.LineInput{Value: "3"}))
	require.NoError(t, session.Cancel())

	assert.Equal(t, []annotation.Annotation{existing}, photos[0].Annotations, "cancel leaves the host list untouched")
	_, open := list.Editing()
	assert.False(t, open)

	session, err = list.Edit("p1", annotation.WithCanvasSize(annotation.Size{Width: 400, Height: 300}))
	require.NoError(t, err)
	require.NoError(t, session.Undo())
	require.NoError(t, session.Save())

	assert.Empty(t, photos[0].Annotations)
	require.NotNil(t, photos[0].Canvas)
	assert.Equal(t, annotation.Size{Width: 400, Height: 300}, *photos[0].Canvas)

	session, err = list.Edit("p1")
	require.NoError(t, err)
	assert.Equal(t, annotation.Size{Width: 400, Height: 300}, session.Canvas(), "reopens on the recorded canvas")
	require.NoError(t, session.Cancel())

	session, err = list.Edit("p2")
	require.NoError(t, err)
	assert.Equal(t, annotation.DefaultCanvas, session.Canvas())
	require.NoError(t, session.Cancel())
}

func TestImagesWalksEveryField(t *testing.T) {
	doc := NewDocument()
	doc.BasicData.StationPhotos = Photos{photo("a")}
	c := doc.Columns.AddColumn()
	c.ExtraPhotos = Photos{photo("b")}
	s := doc.PumpSigns.AddSign()
	s.Dimensions.MarkedPhotos = Photos{photo("c")}
	doc.ANPSign.MeasurePhotos = Photos{photo("d")}

	var ids []string
	for _, img := range doc.Images() {
		ids = append(ids, img.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)

	img, ok := doc.FindImage("c")
	require.True(t, ok)
	img.Annotations = []annotation.Annotation{}
	img.URL = "changed"
	assert.Equal(t, "changed", doc.PumpSigns.Signs[0].Dimensions.MarkedPhotos[0].URL, "images are returned by reference")
}

func TestEncodeNeverWritesNullLists(t *testing.T) {
	doc := &Document{PVCCeiling: &PVCCeiling{Photos: Photos{{ID: "x", URL: "u"}}}}
	data, err := doc.Encode()
	require.NoError(t, err)
	var raw struct {
		Ceiling struct {
			Photos []map[string]any `json:"fotos"`
		} `json:"forroPVC"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	fotos := raw.Ceiling.Photos
	require.Len(t, fotos, 1)
	assert.Equal(t, []any{}, fotos[0]["annotations"])
	assert.NotContains(t, string(data), "null")
}

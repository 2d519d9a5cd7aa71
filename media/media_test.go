package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"regexp"
	"testing"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir(), DefaultSubDirs())
	require.NoError(t, err)
	return store
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLocalStorageRoundTrip(t *testing.T) {
	store := newTestStore(t)

	rel, err := store.Save(AssetTypeSurveyImage, "3", "a.jpg", bytes.NewReader([]byte("data")))
	require.NoError(t, err)
	assert.Equal(t, "survey-images/3/a.jpg", rel)

	rc, info, err := store.Get(rel)
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "data", string(got))
	assert.Equal(t, int64(4), info.Size())

	require.NoError(t, store.Delete(rel))
	_, _, err = store.Get(rel)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoError(t, store.Delete(rel), "deleting a missing asset is not an error")
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetFullPath("../outside.txt")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = store.GetFullPath("survey-images/../../x")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = store.Save(AssetTypeRender, "../..", "x.jpg", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = store.Save(AssetTypeRender, "", "../x.jpg", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, _, err = store.Get("survey-images")
	assert.Error(t, err, "directories are not assets")
}

func TestUploaderStore(t *testing.T) {
	store := newTestStore(t)
	up := NewUploader(store, "/api/media/", 1<<20)

	res, err := up.Store(context.Background(), 7, "Foto.PNG", bytes.NewReader(pngBytes(t, 40, 30)))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^survey-images/7/[0-9a-f-]{36}\.png$`), res.RelPath)
	assert.Equal(t, "/api/media/"+res.RelPath, res.URL)
	assert.Equal(t, "image/png", res.ContentType)
	require.NotNil(t, res.Metadata.Width)
	assert.Equal(t, 40, *res.Metadata.Width)
	assert.Equal(t, 30, *res.Metadata.Height)
	assert.Nil(t, res.Metadata.Latitude)

	rel, ok := up.RelPathFor(res.URL)
	require.True(t, ok)
	assert.Equal(t, res.RelPath, rel)
	_, ok = up.RelPathFor("https://elsewhere/x.png")
	assert.False(t, ok)

	url, err := up.Upload(context.Background(), 7, "b.png", bytes.NewReader(pngBytes(t, 2, 2)))
	require.NoError(t, err)
	assert.Contains(t, url, "/api/media/survey-images/7/")
}

func TestUploaderRejects(t *testing.T) {
	up := NewUploader(newTestStore(t), "/media", 100)
	ctx := context.Background()

	_, err := up.Store(ctx, 1, "notes.txt", bytes.NewReader([]byte("hi")))
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = up.Store(ctx, 1, "big.png", bytes.NewReader(make([]byte, 101)))
	assert.ErrorIs(t, err, ErrUploadTooLarge)

	_, err = up.Store(ctx, 1, "empty.png", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = up.Store(ctx, 1, "garbage.png", bytes.NewReader([]byte("not a png")))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestGenerateThumbnail(t *testing.T) {
	store := newTestStore(t)
	p := NewProcessor(store)
	src := image.NewRGBA(image.Rect(0, 0, 400, 100))

	rel, err := p.GenerateThumbnail(src, "x.png", 100)
	require.NoError(t, err)

	img, err := p.Open(rel)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 25, img.Bounds().Dy())
}

func TestRenderAnnotated(t *testing.T) {
	store := newTestStore(t)
	p := NewProcessor(store)
	base := image.NewRGBA(image.Rect(0, 0, 1600, 1200))

	img := annotation.AnnotatedImage{
		ID:  "img-1",
		URL: "/api/media/survey-images/1/x.png",
		Annotations: []annotation.Annotation{
			annotation.NewLine("l", annotation.Point{X: 10, Y: 10}, annotation.Point{X: 300, Y: 10}, annotation.DefaultColor,
				annotation.LineInput{Value: "2", Unit: annotation.UnitMeter}),
		},
	}

	rel, size, err := p.RenderAnnotated(base, img)
	require.NoError(t, err)
	assert.Equal(t, annotation.Size{Width: 800, Height: 600}, size, "fits the default canvas without a recorded one")
	assert.Contains(t, rel, "renders/img-1/")

	img.Canvas = &annotation.Size{Width: 400, Height: 300}
	_, size, err = p.RenderAnnotated(base, img)
	require.NoError(t, err)
	assert.Equal(t, *img.Canvas, size)
}

func TestFingerprint(t *testing.T) {
	img := annotation.AnnotatedImage{ID: "a", URL: "u", Annotations: []annotation.Annotation{}}
	first := Fingerprint(img)
	assert.Len(t, first, 64)
	assert.Equal(t, first, Fingerprint(img))

	img.Annotations = append(img.Annotations, annotation.NewLine("l", annotation.Point{}, annotation.Point{X: 1}, annotation.DefaultColor, annotation.LineInput{}))
	assert.NotEqual(t, first, Fingerprint(img))

	img2 := img
	img2.Canvas = &annotation.Size{Width: 10, Height: 10}
	assert.NotEqual(t, Fingerprint(img), Fingerprint(img2))
}

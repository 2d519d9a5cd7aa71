package media

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log"
	"math"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	ThumbnailJpegQuality   = 90
	ThumbnailFileExtension = ".jpg"

	RenderJpegQuality   = 92
	RenderFileExtension = ".jpg"
)

// fallbackViewport fits images without a recorded canvas into the default
// 800x600 box.
var fallbackViewport = annotation.Viewport{
	ContainerWidth: annotation.DefaultCanvasWidth + annotation.ViewportPadding,
	WindowHeight:   int(annotation.DefaultCanvasHeight / annotation.ViewportHeightFraction),
}

// Processor handles media transformations like thumbnailing and annotated
// renders. It relies on a Store implementation for reading and saving files.
type Processor struct {
	store    Store
	renderer *annotation.Renderer
}

func NewProcessor(store Store) *Processor {
	return &Processor{store: store, renderer: annotation.NewRenderer()}
}

// Open decodes a stored image, applying its EXIF orientation.
func (p *Processor) Open(relPath string) (image.Image, error) {
	rc, _, err := p.store.Get(relPath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	img, err := imaging.Decode(rc, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", relPath, err)
	}
	return img, nil
}

// GenerateThumbnail creates a thumbnail where the longest side matches maxSize.
// saves the result using the Store. returns relative path to saved thumb or error.
func (p *Processor) GenerateThumbnail(originalImg image.Image, originalRelPath string, maxSize int) (string, error) {
	origBounds := originalImg.Bounds()
	origWidth := origBounds.Dx()
	origHeight := origBounds.Dy()
	if origWidth <= 0 || origHeight <= 0 {
		return "", fmt.Errorf("invalid original image dimensions: %dx%d", origWidth, origHeight)
	}

	newWidth, newHeight := origWidth, origHeight
	if longest := max(origWidth, origHeight); longest > maxSize {
		scale := float64(maxSize) / float64(longest)
		newWidth = max(1, int(math.Round(float64(origWidth)*scale)))
		newHeight = max(1, int(math.Round(float64(origHeight)*scale)))
	}

	thumb := imaging.Resize(originalImg, newWidth, newHeight, imaging.Lanczos)

	thumbUUID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID for thumbnail: %w", err)
	}

	savedRelPath, err := p.saveJPEG(AssetTypeThumbnail, "", thumbUUID.String()+ThumbnailFileExtension, thumb, ThumbnailJpegQuality)
	if err != nil {
		return "", fmt.Errorf("failed to save thumbnail via store: %w", err)
	}

	log.Printf("processor: Generated and saved thumbnail for %s at %s", originalRelPath, savedRelPath)
	return savedRelPath, nil
}

// RenderSize is the size an annotated image is rendered at: the canvas the
// annotations were drawn on, or the image fitted into the default canvas.
func RenderSize(img annotation.AnnotatedImage, natural annotation.Size) annotation.Size {
	if img.Canvas != nil && !img.Canvas.Empty() {
		return *img.Canvas
	}
	return annotation.FitSize(natural, fallbackViewport)
}

// Render draws the annotations of img over base and returns the bitmap.
func (p *Processor) Render(base image.Image, img annotation.AnnotatedImage) *image.RGBA {
	b := base.Bounds()
	size := RenderSize(img, annotation.Size{Width: b.Dx(), Height: b.Dy()})
	return p.renderer.Render(base, size, img.Annotations, nil)
}

// RenderAnnotated renders img over base and saves the result as JPEG under
// renders/{imageID}. It returns the relative path and the rendered size.
func (p *Processor) RenderAnnotated(base image.Image, img annotation.AnnotatedImage) (string, annotation.Size, error) {
	out := p.Render(base, img)
	size := annotation.Size{Width: out.Bounds().Dx(), Height: out.Bounds().Dy()}

	filename := Fingerprint(img)[:16] + RenderFileExtension
	savedRelPath, err := p.saveJPEG(AssetTypeRender, img.ID, filename, out, RenderJpegQuality)
	if err != nil {
		return "", annotation.Size{}, fmt.Errorf("failed to save render via store: %w", err)
	}

	log.Printf("processor: Rendered %d annotations for image %s at %s", len(img.Annotations), img.ID, savedRelPath)
	return savedRelPath, size, nil
}

// saveJPEG encodes img through a pipe straight into the store.
func (p *Processor) saveJPEG(assetType AssetType, dir, filename string, img image.Image, quality int) (string, error) {
	reader, writer := io.Pipe()
	go func() {
		err := imaging.Encode(writer, img, imaging.JPEG, imaging.JPEGQuality(quality))
		if err != nil {
			log.Printf("processor: Failed to encode %s: %v", filename, err)
			writer.CloseWithError(fmt.Errorf("jpeg encoding failed: %w", err))
			return
		}
		writer.Close()
	}()

	savedRelPath, err := p.store.Save(assetType, dir, filename, reader)
	reader.Close()
	return savedRelPath, err
}

// Fingerprint identifies the rendered content of an annotated image: its
// URL, recorded canvas and annotation list.
func Fingerprint(img annotation.AnnotatedImage) string {
	h := sha256.New()
	payload := struct {
		URL         string                  `json:"url"`
		Canvas      *annotation.Size        `json:"canvas"`
		Annotations []annotation.Annotation `json:"annotations"`
	}{img.URL, img.Canvas, img.Annotations}
	_ = json.NewEncoder(h).Encode(payload)
	return hex.EncodeToString(h.Sum(nil))
}

package survey

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/google/uuid"
)

// MaxImages is the number of photos a single photo field accepts.
const MaxImages = 10

var (
	ErrImageLimit    = fmt.Errorf("survey: at most %d images per field", MaxImages)
	ErrEditorOpen    = errors.New("survey: an annotation editor is already open")
	ErrImageNotFound = errors.New("survey: image not found")
)

// Uploader stores an image for a user and returns the URL it can be loaded
// from.
type Uploader interface {
	Upload(ctx context.Context, userID uint, filename string, data io.Reader) (string, error)
}

// ImageList is the host of the annotation editor for one photo field of a
// document. It edits the field in place and allows one open editor at a time.
type ImageList struct {
	mu       sync.Mutex
	photos   *Photos
	uploader Uploader
	userID   uint
	editing  string
}

func NewImageList(photos *Photos, uploader Uploader, userID uint) *ImageList {
	if *photos == nil {
		*photos = Photos{}
	}
	return &ImageList{photos: photos, uploader: uploader, userID: userID}
}

// Images returns a copy of the field's photos.
func (l *ImageList) Images() Photos {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(Photos, len(*l.photos))
	for i, img := range *l.photos {
		img.Annotations = annotation.NewList(img.Annotations).Slice()
		out[i] = img
	}
	return out
}

// Add uploads data and appends the resulting photo with no annotations. The
// photo only joins the list once the upload has succeeded.
func (l *ImageList) Add(ctx context.Context, filename string, data io.Reader) (annotation.AnnotatedImage, error) {
	l.mu.Lock()
	full := len(*l.photos) >= MaxImages
	l.mu.Unlock()
	if full {
		return annotation.AnnotatedImage{}, ErrImageLimit
	}

	url, err := l.uploader.Upload(ctx, l.userID, filename, data)
	if err != nil {
		return annotation.AnnotatedImage{}, fmt.Errorf("survey: upload %s: %w", filename, err)
	}

	img := annotation.AnnotatedImage{
		ID:          uuid.NewString(),
		URL:         url,
		Annotations: []annotation.Annotation{},
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(*l.photos) >= MaxImages {
		return annotation.AnnotatedImage{}, ErrImageLimit
	}
	*l.photos = append(*l.photos, img)
	return img, nil
}

// Remove drops a photo and its annotations. A photo with an open editor
// cannot be removed.
func (l *ImageList) Remove(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.editing == id {
		return ErrEditorOpen
	}
	idx := l.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrImageNotFound, id)
	}
	*l.photos = append((*l.photos)[:idx:idx], (*l.photos)[idx+1:]...)
	return nil
}

// Edit opens the annotation editor on a photo. Saving the session replaces
// that photo's annotations wholesale; canceling leaves them untouched.
func (l *ImageList) Edit(id string, opts ...annotation.Option) (*annotation.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.editing != "" {
		return nil, ErrEditorOpen
	}
	idx := l.indexLocked(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, id)
	}
	img := (*l.photos)[idx]
	if img.Canvas != nil {
		opts = append([]annotation.Option{annotation.WithCanvasSize(*img.Canvas)}, opts...)
	}

	onSave := func(list []annotation.Annotation, canvas annotation.Size) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		i := l.indexLocked(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrImageNotFound, id)
		}
		(*l.photos)[i].Annotations = list
		(*l.photos)[i].Canvas = &canvas
		return nil
	}
	onClose := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.editing = ""
	}

	l.editing = id
	return annotation.Open(img.URL, img.Annotations, onSave, onClose, opts...), nil
}

// Editing reports the id of the photo with an open editor.
func (l *ImageList) Editing() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.editing, l.editing != ""
}

func (l *ImageList) indexLocked(id string) int {
	for i := range *l.photos {
		if (*l.photos)[i].ID == id {
			return i
		}
	}
	return -1
}

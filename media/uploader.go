package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedImage = errors.New("media: unsupported image type")
	ErrUploadTooLarge   = errors.New("media: upload exceeds size limit")
	ErrEmptyUpload      = errors.New("media: empty upload")
)

// Upload describes a stored survey photo.
type Upload struct {
	ID          string
	Filename    string
	RelPath     string // relative to the store root
	URL         string
	ContentType string
	Size        int64
	Metadata    *Metadata
}

// Uploader stores survey photos at survey-images/{userID}/{uuid}.{ext} and
// builds their public URLs.
type Uploader struct {
	store     Store
	publicURL string
	maxBytes  int64
}

// NewUploader returns an Uploader whose URLs are publicURL joined with the
// stored relative path. maxBytes <= 0 disables the size limit.
func NewUploader(store Store, publicURL string, maxBytes int64) *Uploader {
	return &Uploader{
		store:     store,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxBytes:  maxBytes,
	}
}

// URLFor returns the public URL of a stored relative path.
func (u *Uploader) URLFor(relPath string) string {
	return u.publicURL + "/" + strings.TrimLeft(relPath, "/")
}

// RelPathFor maps a public URL back to its stored relative path.
func (u *Uploader) RelPathFor(url string) (string, bool) {
	prefix := u.publicURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// Store validates and saves an uploaded image and reads its metadata.
func (u *Uploader) Store(ctx context.Context, userID uint, filename string, data io.Reader) (*Upload, error) {
	if !IsRasterImage(filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, filename)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := data
	if u.maxBytes > 0 {
		src = io.LimitReader(data, u.maxBytes+1)
	}
	buf, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("media: failed to read upload %s: %w", filename, err)
	}
	if len(buf) == 0 {
		return nil, ErrEmptyUpload
	}
	if u.maxBytes > 0 && int64(len(buf)) > u.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrUploadTooLarge, u.maxBytes)
	}

	meta, err := ReadMetadata(bytes.NewReader(buf), filename)
	if err != nil {
		return nil, err
	}
	if meta.Width == nil {
		return nil, fmt.Errorf("%w: %s is not a decodable image", ErrUnsupportedImage, filename)
	}

	id := uuid.NewString()
	relPath, err := u.store.Save(AssetTypeSurveyImage, strconv.FormatUint(uint64(userID), 10), id+normalizedExt(filename), bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("media: failed to save upload %s: %w", filename, err)
	}

	log.Printf("media.uploader: Stored %s for user %d as %s", filename, userID, relPath)
	return &Upload{
		ID:          id,
		Filename:    filename,
		RelPath:     relPath,
		URL:         u.URLFor(relPath),
		ContentType: ContentType(filename),
		Size:        int64(len(buf)),
		Metadata:    meta,
	}, nil
}

// Upload stores the image and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, userID uint, filename string, data io.Reader) (string, error) {
	up, err := u.Store(ctx, userID, filename, data)
	if err != nil {
		return "", err
	}
	return up.URL, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (u *Uploader) Remove(relPath string) error {
	return u.store.Delete(relPath)
}

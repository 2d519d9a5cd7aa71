package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/camden-git/fieldsurvey/media"
	"github.com/camden-git/fieldsurvey/metrics"
	"github.com/camden-git/fieldsurvey/models"
	"github.com/camden-git/fieldsurvey/realtime"
	"github.com/camden-git/fieldsurvey/repository"
)

// ThumbnailQueue schedules thumbnail generation. *workers.ImageProcessor
// implements it.
type ThumbnailQueue interface {
	QueueThumbnail(imageID, relPath string) bool
}

// ImageService stores uploaded survey photos and keeps a record of each.
// It implements survey.Uploader.
type ImageService struct {
	Uploader   *media.Uploader
	Images     repository.ImageRepositoryInterface
	Thumbnails ThumbnailQueue // may be nil
	Events     realtime.Broadcaster
	Metrics    *metrics.Metrics
}

// IsRejectedUpload tells client errors apart from storage failures.
func IsRejectedUpload(err error) bool {
	return errors.Is(err, media.ErrUnsupportedImage) ||
		errors.Is(err, media.ErrUploadTooLarge) ||
		errors.Is(err, media.ErrEmptyUpload)
}

// Store saves the upload and records it. The stored file is removed again
// when the record cannot be written.
func (s *ImageService) Store(ctx context.Context, userID uint, filename string, data io.Reader) (*models.SurveyImage, error) {
	up, err := s.Uploader.Store(ctx, userID, filename, data)
	if err != nil {
		s.Metrics.UploadFailed(IsRejectedUpload(err))
		return nil, err
	}

	rec := &models.SurveyImage{
		ID:          up.ID,
		UserID:      userID,
		StoragePath: up.RelPath,
		URL:         up.URL,
		Filename:    up.Filename,
		ContentType: up.ContentType,
		SizeBytes:   up.Size,
	}
	if meta := up.Metadata; meta != nil {
		rec.Width, rec.Height = meta.Width, meta.Height
		rec.TakenAt = meta.TakenAt
		rec.Latitude, rec.Longitude = meta.Latitude, meta.Longitude
		rec.CameraMake, rec.CameraModel = meta.CameraMake, meta.CameraModel
	}

	if err := s.Images.Create(rec); err != nil {
		s.Metrics.UploadFailed(false)
		if delErr := s.Uploader.Remove(up.RelPath); delErr != nil {
			log.Printf("services: WARNING failed to remove orphaned upload %s: %v", up.RelPath, delErr)
		}
		return nil, err
	}

	s.Metrics.UploadStored(up.Size)
	if s.Thumbnails != nil {
		s.Thumbnails.QueueThumbnail(rec.ID, rec.StoragePath)
	}
	if s.Events != nil {
		s.Events.Broadcast(realtime.Event{Type: realtime.EventImageUploaded, UserID: userID, ImageID: rec.ID})
	}
	return rec, nil
}

// Upload stores the image and returns its public URL.
func (s *ImageService) Upload(ctx context.Context, userID uint, filename string, data io.Reader) (string, error) {
	rec, err := s.Store(ctx, userID, filename, data)
	if err != nil {
		return "", err
	}
	return rec.URL, nil
}

// NewAnnotatedImage returns the photo entry for a stored upload, with no
// annotations.
func NewAnnotatedImage(rec *models.SurveyImage) annotation.AnnotatedImage {
	return annotation.AnnotatedImage{
		ID:          rec.ID,
		URL:         rec.URL,
		Annotations: []annotation.Annotation{},
	}
}

// Get returns an upload of the user.
func (s *ImageService) Get(userID uint, id string) (*models.SurveyImage, error) {
	rec, err := s.Images.GetByID(id)
	if err != nil {
		return nil, notFound(err)
	}
	if rec.UserID != userID {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *ImageService) List(userID uint) ([]models.SurveyImage, error) {
	return s.Images.ListByUser(userID)
}

// Delete drops the record and the stored file of an upload.
func (s *ImageService) Delete(userID uint, id string) error {
	rec, err := s.Get(userID, id)
	if err != nil {
		return err
	}
	if err := s.Images.Delete(id); err != nil {
		return notFound(err)
	}
	paths := []string{rec.StoragePath}
	if rec.ThumbnailPath != nil {
		paths = append(paths, *rec.ThumbnailPath)
	}
	for _, p := range paths {
		if err := s.Uploader.Remove(p); err != nil {
			log.Printf("services: WARNING failed to remove %s: %v", p, err)
		}
	}
	return nil
}

// ByURL returns the upload behind an annotated image URL, checked against
// the owner.
func (s *ImageService) ByURL(userID uint, url string) (*models.SurveyImage, error) {
	rec, err := s.Images.GetByURL(url)
	if err != nil {
		return nil, notFound(err)
	}
	if rec.UserID != userID {
		return nil, fmt.Errorf("%w: upload %s", ErrForbidden, rec.ID)
	}
	return rec, nil
}

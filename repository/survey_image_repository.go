package repository

import (
	"errors"
	"fmt"

	"github.com/camden-git/fieldsurvey/models"
	"gorm.io/gorm"
)

// ImageRepository handles database operations for uploaded survey images
type ImageRepository struct {
	DB *gorm.DB
}

// NewImageRepository creates a new instance of ImageRepository
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{DB: db}
}

func (r *ImageRepository) Create(img *models.SurveyImage) error {
	if err := r.DB.Create(img).Error; err != nil {
		return fmt.Errorf("failed to create image record %s: %w", img.ID, err)
	}
	return nil
}

func (r *ImageRepository) GetByID(id string) (*models.SurveyImage, error) {
	var img models.SurveyImage
	err := r.DB.Where("id = ?", id).First(&img).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image %s: %w", id, err)
	}
	return &img, nil
}

// GetByURL finds the upload behind an AnnotatedImage URL.
func (r *ImageRepository) GetByURL(url string) (*models.SurveyImage, error) {
	var img models.SurveyImage
	err := r.DB.Where("url = ?", url).First(&img).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image by url %s: %w", url, err)
	}
	return &img, nil
}

func (r *ImageRepository) ListByUser(userID uint) ([]models.SurveyImage, error) {
	var images []models.SurveyImage
	err := r.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list images for user %d: %w", userID, err)
	}
	return images, nil
}

func (r *ImageRepository) UpdateThumbnail(id string, thumbPath *string) error {
	result := r.DB.Model(&models.SurveyImage{}).Where("id = ?", id).Update("thumbnail_path", thumbPath)
	if result.Error != nil {
		return fmt.Errorf("failed to update thumbnail for image %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete soft-deletes the record. The stored file is left to the caller.
func (r *ImageRepository) Delete(id string) error {
	result := r.DB.Where("id = ?", id).Delete(&models.SurveyImage{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete image %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

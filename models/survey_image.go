package models

import (
	"time"

	"gorm.io/gorm"
)

// SurveyImage is an uploaded photo. Annotated images refer to it by URL,
// which is unique, so renders can be traced back to the file.
type SurveyImage struct {
	ID          string `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"index;not null" json:"user_id"`
	StoragePath string `gorm:"not null" json:"-"` // relative to the media store root
	URL         string `gorm:"uniqueIndex;not null" json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`

	Width       *int     `json:"width,omitempty"`
	Height      *int     `json:"height,omitempty"`
	TakenAt     *int64   `gorm:"index" json:"taken_at,omitempty"` // unix seconds
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	CameraMake  *string  `json:"camera_make,omitempty"`
	CameraModel *string  `json:"camera_model,omitempty"`

	ThumbnailPath *string `json:"thumbnail_path,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (SurveyImage) TableName() string {
	return "survey_images"
}

package repository

import (
	"github.com/camden-git/fieldsurvey/models"
	"github.com/camden-git/fieldsurvey/survey"
)

// UserRepository defines the methods for user data operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
}

// SurveyListOptions narrows and orders a survey listing.
type SurveyListOptions struct {
	Filter string
	Sort   string // one of the database.Sort* constants; empty means newest first
}

// SurveyRepository defines the methods for survey data operations. Every
// read and write is scoped to the owning user; a survey of another user is
// reported as gorm.ErrRecordNotFound.
type SurveyRepository interface {
	// Create stores the survey and its document item in one transaction.
	Create(s *models.Survey, doc *survey.Document) error
	// Update rewrites the listing columns and the document of an existing survey.
	Update(s *models.Survey, doc *survey.Document) error
	GetByID(userID, id uint) (*models.Survey, error)
	ListByUser(userID uint, opts SurveyListOptions) ([]models.Survey, error)
	// Delete removes the survey's items, then the survey, in one transaction.
	Delete(userID, id uint) error
	// UpdateDocument applies fn to the stored document inside a transaction
	// and writes the result back. Nothing is written when fn fails.
	UpdateDocument(userID, id uint, fn func(doc *survey.Document) error) (*models.Survey, error)
}

// ImageRepositoryInterface defines the methods for uploaded image records
type ImageRepositoryInterface interface {
	Create(img *models.SurveyImage) error
	GetByID(id string) (*models.SurveyImage, error)
	GetByURL(url string) (*models.SurveyImage, error)
	ListByUser(userID uint) ([]models.SurveyImage, error)
	UpdateThumbnail(id string, thumbPath *string) error
	Delete(id string) error
}

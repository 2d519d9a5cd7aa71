package repository

import (
	"fmt"
	"sort"
	"strings"

	"github.com/camden-git/fieldsurvey/database"
	"github.com/camden-git/fieldsurvey/models"
	"github.com/camden-git/fieldsurvey/survey"
	"github.com/facette/natsort"
	"gorm.io/gorm"
)

type GormSurveyRepository struct {
	db *gorm.DB
}

func NewGormSurveyRepository(db *gorm.DB) SurveyRepository {
	return &GormSurveyRepository{db: db}
}

func (r *GormSurveyRepository) Create(s *models.Survey, doc *survey.Document) error {
	s.ApplyDocument(doc)
	return r.db.Transaction(func(tx *gorm.DB) error {
		items := s.Items
		s.Items = nil
		if err := tx.Create(s).Error; err != nil {
			s.Items = items
			return fmt.Errorf("failed to create survey: %w", err)
		}
		item := models.SurveyItem{
			SurveyID: s.ID,
			UserID:   s.UserID,
			Name:     models.DocumentItemName,
			Document: doc,
		}
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("failed to create survey item for survey %d: %w", s.ID, err)
		}
		s.Items = []models.SurveyItem{item}
		return nil
	})
}

func (r *GormSurveyRepository) Update(s *models.Survey, doc *survey.Document) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		existing, err := loadSurvey(tx, s.UserID, s.ID)
		if err != nil {
			return err
		}
		updated, err := saveDocument(tx, existing, doc)
		if err != nil {
			return err
		}
		*s = *updated
		return nil
	})
}

func (r *GormSurveyRepository) GetByID(userID, id uint) (*models.Survey, error) {
	return loadSurvey(r.db, userID, id)
}

func (r *GormSurveyRepository) ListByUser(userID uint, opts SurveyListOptions) ([]models.Survey, error) {
	sqlStr, args, err := database.SurveyListQuery(userID, opts.Sort)
	if err != nil {
		return nil, err
	}

	var rows []models.Survey
	if err := r.db.Raw(sqlStr, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list surveys for user %d: %w", userID, err)
	}

	surveys := make([]models.Survey, 0, len(rows))
	for _, s := range rows {
		if s.Matches(opts.Filter) {
			surveys = append(surveys, s)
		}
	}

	if opts.Sort == database.SortTitleNat {
		sort.SliceStable(surveys, func(i, j int) bool {
			return natsort.Compare(strings.ToLower(surveys[i].Title), strings.ToLower(surveys[j].Title))
		})
	}
	return surveys, nil
}

func (r *GormSurveyRepository) Delete(userID, id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("survey_id = ? AND user_id = ?", id, userID).Delete(&models.SurveyItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete items of survey %d: %w", id, err)
		}
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Survey{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete survey %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *GormSurveyRepository) UpdateDocument(userID, id uint, fn func(doc *survey.Document) error) (*models.Survey, error) {
	var out *models.Survey
	err := r.db.Transaction(func(tx *gorm.DB) error {
		s, err := loadSurvey(tx, userID, id)
		if err != nil {
			return err
		}
		doc := survey.NewDocument()
		if item, ok := s.DocumentItem(); ok && item.Document != nil {
			doc = item.Document
		}
		if err := fn(doc); err != nil {
			return err
		}
		out, err = saveDocument(tx, s, doc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func loadSurvey(db *gorm.DB, userID, id uint) (*models.Survey, error) {
	var s models.Survey
	err := db.Preload("Items").Where("id = ? AND user_id = ?", id, userID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// saveDocument writes doc into the survey's document item, creating the item
// for surveys that never had one, and refreshes the listing columns.
func saveDocument(tx *gorm.DB, s *models.Survey, doc *survey.Document) (*models.Survey, error) {
	s.ApplyDocument(doc)
	items := s.Items
	s.Items = nil
	if err := tx.Save(s).Error; err != nil {
		return nil, fmt.Errorf("failed to update survey %d: %w", s.ID, err)
	}
	s.Items = items

	item, ok := s.DocumentItem()
	if !ok {
		s.Items = append(s.Items, models.SurveyItem{
			SurveyID: s.ID,
			UserID:   s.UserID,
			Name:     models.DocumentItemName,
		})
		item = &s.Items[len(s.Items)-1]
	}
	item.Document = doc
	if err := tx.Save(item).Error; err != nil {
		return nil, fmt.Errorf("failed to save document of survey %d: %w", s.ID, err)
	}
	return s, nil
}

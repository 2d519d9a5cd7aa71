package services

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/camden-git/fieldsurvey/database"
	"github.com/camden-git/fieldsurvey/metrics"
	"github.com/camden-git/fieldsurvey/models"
	"github.com/camden-git/fieldsurvey/realtime"
	"github.com/camden-git/fieldsurvey/repository"
	"github.com/camden-git/fieldsurvey/survey"
	"gorm.io/gorm"
)

// RenderQueue schedules annotated renders. *workers.ImageProcessor
// implements it.
type RenderQueue interface {
	QueueRender(userID, surveyID uint, img annotation.AnnotatedImage) (bool, error)
}

// SurveyService owns the survey lifecycle: validation, persistence, render
// scheduling and change events.
type SurveyService struct {
	Surveys repository.SurveyRepository
	CacheDB *sql.DB     // render cache; may be nil
	Renders RenderQueue // may be nil
	Events  realtime.Broadcaster
	Metrics *metrics.Metrics
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Save validates doc and stores it, creating a survey when id is 0.
// Required fields are checked first, then the document schema.
func (s *SurveyService) Save(userID, id uint, doc *survey.Document) (*models.Survey, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", survey.ErrInvalidDocument)
	}
	doc.Normalize()
	if err := doc.ValidateRequired(); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	rec := &models.Survey{ID: id, UserID: userID}
	created := id == 0
	var err error
	if created {
		err = s.Surveys.Create(rec, doc)
	} else {
		err = s.Surveys.Update(rec, doc)
	}
	if err != nil {
		return nil, notFound(err)
	}

	log.Printf("services: Saved survey %d for user %d (created=%t)", rec.ID, userID, created)
	s.Metrics.SurveySaved(created)
	s.broadcast(realtime.Event{Type: realtime.EventSurveySaved, UserID: userID, SurveyID: rec.ID})
	s.queueRenders(userID, rec.ID, doc.Images())
	return rec, nil
}

// Get returns the survey and its document. Surveys stored without a
// document item yield an empty document.
func (s *SurveyService) Get(userID, id uint) (*models.Survey, *survey.Document, error) {
	rec, err := s.Surveys.GetByID(userID, id)
	if err != nil {
		return nil, nil, notFound(err)
	}
	return rec, documentOf(rec), nil
}

func (s *SurveyService) List(userID uint, opts repository.SurveyListOptions) ([]models.Survey, error) {
	if opts.Sort != "" && !database.IsValidSortOrder(opts.Sort) {
		return nil, fmt.Errorf("%w: unknown sort order %q", ErrInvalidInput, opts.Sort)
	}
	return s.Surveys.ListByUser(userID, opts)
}

// Delete removes the survey and drops the cached renders of its images.
func (s *SurveyService) Delete(userID, id uint) error {
	rec, err := s.Surveys.GetByID(userID, id)
	if err != nil {
		return notFound(err)
	}
	var imageIDs []string
	for _, img := range documentOf(rec).Images() {
		imageIDs = append(imageIDs, img.ID)
	}

	if err := s.Surveys.Delete(userID, id); err != nil {
		return notFound(err)
	}
	if s.CacheDB != nil {
		if err := database.DeleteRenders(s.CacheDB, imageIDs); err != nil {
			log.Printf("services: WARNING failed to drop renders of survey %d: %v", id, err)
		}
	}

	log.Printf("services: Deleted survey %d of user %d", id, userID)
	s.broadcast(realtime.Event{Type: realtime.EventSurveyDeleted, UserID: userID, SurveyID: id})
	return nil
}

// SaveImageAnnotations replaces the annotations of one photo of a stored
// survey. The photo is matched by id anywhere in the document. canvas, when
// set, records the display size the annotations were drawn at.
func (s *SurveyService) SaveImageAnnotations(userID, surveyID uint, imageID string, list []annotation.Annotation, canvas *annotation.Size) (annotation.AnnotatedImage, error) {
	if canvas != nil && canvas.Empty() {
		return annotation.AnnotatedImage{}, fmt.Errorf("%w: canvas must have a positive size", ErrInvalidInput)
	}

	var saved annotation.AnnotatedImage
	_, err := s.Surveys.UpdateDocument(userID, surveyID, func(doc *survey.Document) error {
		img, ok := doc.FindImage(imageID)
		if !ok {
			return fmt.Errorf("%w: %s", survey.ErrImageNotFound, imageID)
		}
		updated := *img
		updated.Annotations = make([]annotation.Annotation, len(list))
		for i, a := range list {
			updated.Annotations[i] = a.Normalize()
		}
		if canvas != nil {
			c := *canvas
			updated.Canvas = &c
		}
		if err := updated.Validate(); err != nil {
			return fmt.Errorf("%w: %v", survey.ErrInvalidDocument, err)
		}
		*img = updated
		saved = updated
		return nil
	})
	if err != nil {
		return annotation.AnnotatedImage{}, notFound(err)
	}

	s.broadcast(realtime.Event{
		Type:     realtime.EventSurveySaved,
		UserID:   userID,
		SurveyID: surveyID,
		ImageID:  imageID,
	})
	s.queueRenders(userID, surveyID, []*annotation.AnnotatedImage{&saved})
	return saved, nil
}

// Image returns one photo of a stored survey.
func (s *SurveyService) Image(userID, surveyID uint, imageID string) (annotation.AnnotatedImage, error) {
	_, doc, err := s.Get(userID, surveyID)
	if err != nil {
		return annotation.AnnotatedImage{}, err
	}
	img, ok := doc.FindImage(imageID)
	if !ok {
		return annotation.AnnotatedImage{}, fmt.Errorf("%w: %s", survey.ErrImageNotFound, imageID)
	}
	return *img, nil
}

// RenderStatus reports the cached render of a photo. A missing or stale
// render is scheduled and reported as pending.
func (s *SurveyService) RenderStatus(userID, surveyID uint, imageID string) (database.RenderInfo, error) {
	img, err := s.Image(userID, surveyID, imageID)
	if err != nil {
		return database.RenderInfo{}, err
	}
	if s.CacheDB == nil || s.Renders == nil {
		return database.RenderInfo{}, ErrRendersDisabled
	}

	if _, err := s.Renders.QueueRender(userID, surveyID, img); err != nil {
		return database.RenderInfo{}, fmt.Errorf("failed to schedule render of %s: %w", imageID, err)
	}
	return database.GetRenderInfo(s.CacheDB, imageID)
}

// queueRenders schedules renders for annotated photos. Photos without
// annotations have nothing to draw.
func (s *SurveyService) queueRenders(userID, surveyID uint, images []*annotation.AnnotatedImage) {
	if s.Renders == nil {
		return
	}
	for _, img := range images {
		if len(img.Annotations) == 0 {
			continue
		}
		if _, err := s.Renders.QueueRender(userID, surveyID, *img); err != nil {
			log.Printf("services: WARNING failed to queue render of %s: %v", img.ID, err)
		}
	}
}

func (s *SurveyService) broadcast(event realtime.Event) {
	if s.Events != nil {
		s.Events.Broadcast(event)
	}
}

func documentOf(rec *models.Survey) *survey.Document {
	if item, ok := rec.DocumentItem(); ok && item.Document != nil {
		return item.Document
	}
	return survey.NewDocument()
}

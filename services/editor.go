package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/camden-git/fieldsurvey/metrics"
	"github.com/camden-git/fieldsurvey/survey"
	"github.com/google/uuid"
)

// ErrEditorNotFound is returned for unknown, expired or foreign sessions.
var ErrEditorNotFound = errors.New("services: editor session not found")

// EditorOptions configure a new editor session.
type EditorOptions struct {
	// Canvas is the display size of the client. Annotations recorded at
	// another size are rescaled to it.
	Canvas *annotation.Size
	// Simple appends lines without asking for a label and value.
	Simple bool
}

// EditorSession is an open annotation editor on one photo of a stored
// survey. Saving it writes the annotations back into the survey.
type EditorSession struct {
	ID       string
	UserID   uint
	SurveyID uint
	ImageID  string
	Session  *annotation.Session

	lastUsed time.Time
	saved    annotation.AnnotatedImage
	didSave  bool
}

// EditorManager keeps the editor sessions of all users in memory. Only one
// session may be open per photo.
type EditorManager struct {
	mu       sync.Mutex
	sessions map[string]*EditorSession
	byImage  map[string]string

	surveys *SurveyService
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewEditorManager(surveys *SurveyService, m *metrics.Metrics) *EditorManager {
	return &EditorManager{
		sessions: make(map[string]*EditorSession),
		byImage:  make(map[string]string),
		surveys:  surveys,
		metrics:  m,
		now:      time.Now,
	}
}

func imageKey(userID, surveyID uint, imageID string) string {
	return fmt.Sprintf("%d:%d:%s", userID, surveyID, imageID)
}

// Open starts an editor on a photo of a stored survey.
func (m *EditorManager) Open(userID, surveyID uint, imageID string, opts EditorOptions) (*EditorSession, error) {
	if opts.Canvas != nil && opts.Canvas.Empty() {
		return nil, fmt.Errorf("%w: canvas must have a positive size", ErrInvalidInput)
	}
	img, err := m.surveys.Image(userID, surveyID, imageID)
	if err != nil {
		return nil, err
	}

	key := imageKey(userID, surveyID, imageID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.byImage[key]; busy {
		return nil, survey.ErrEditorOpen
	}

	es := &EditorSession{
		ID:       uuid.NewString(),
		UserID:   userID,
		SurveyID: surveyID,
		ImageID:  imageID,
		lastUsed: m.now(),
	}

	var sessionOpts []annotation.Option
	switch {
	case img.Canvas != nil:
		sessionOpts = append(sessionOpts, annotation.WithCanvasSize(*img.Canvas))
	case opts.Canvas != nil:
		sessionOpts = append(sessionOpts, annotation.WithCanvasSize(*opts.Canvas))
	}
	if opts.Simple {
		sessionOpts = append(sessionOpts, annotation.WithoutConfirmation())
	}

	onSave := func(list []annotation.Annotation, canvas annotation.Size) error {
		saved, err := m.surveys.SaveImageAnnotations(userID, surveyID, imageID, list, &canvas)
		if err != nil {
			log.Printf("services: Error saving editor %s on image %s: %v", es.ID, imageID, err)
			return err
		}
		es.saved, es.didSave = saved, true
		return nil
	}
	onClose := func() {
		m.mu.Lock()
		delete(m.sessions, es.ID)
		delete(m.byImage, key)
		m.mu.Unlock()
		m.metrics.SessionClosed(es.didSave)
	}
	es.Session = annotation.Open(img.URL, img.Annotations, onSave, onClose, sessionOpts...)

	if opts.Canvas != nil && *opts.Canvas != es.Session.Canvas() {
		if err := es.Session.Resize(*opts.Canvas); err != nil {
			return nil, err
		}
	}

	m.sessions[es.ID] = es
	m.byImage[key] = es.ID
	m.metrics.SessionOpened()
	log.Printf("services: Opened editor %s on image %s of survey %d", es.ID, imageID, surveyID)
	return es, nil
}

// Get returns an open session of the user and marks it as used.
func (m *EditorManager) Get(userID uint, id string) (*EditorSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	es, ok := m.sessions[id]
	if !ok || es.UserID != userID {
		return nil, ErrEditorNotFound
	}
	es.lastUsed = m.now()
	return es, nil
}

// Save writes the session's annotations into the survey and closes it. A
// failed write leaves the session open so the user can retry.
func (m *EditorManager) Save(userID uint, id string) (annotation.AnnotatedImage, error) {
	es, err := m.Get(userID, id)
	if err != nil {
		return annotation.AnnotatedImage{}, err
	}
	if err := es.Session.Save(); err != nil {
		if errors.Is(err, annotation.ErrSessionClosed) {
			return annotation.AnnotatedImage{}, ErrEditorNotFound
		}
		return annotation.AnnotatedImage{}, err
	}
	return es.saved, nil
}

// Cancel closes the session and discards its changes.
func (m *EditorManager) Cancel(userID uint, id string) error {
	es, err := m.Get(userID, id)
	if err != nil {
		return err
	}
	if err := es.Session.Cancel(); err != nil && !errors.Is(err, annotation.ErrSessionClosed) {
		return err
	}
	return nil
}

// Count returns the number of open sessions.
func (m *EditorManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep cancels sessions idle for longer than maxIdle and returns how many
// were closed.
func (m *EditorManager) Sweep(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)
	m.mu.Lock()
	var idle []*EditorSession
	for _, es := range m.sessions {
		if es.lastUsed.Before(cutoff) {
			idle = append(idle, es)
		}
	}
	m.mu.Unlock()

	for _, es := range idle {
		_ = es.Session.Cancel()
		log.Printf("services: Closed idle editor %s on image %s", es.ID, es.ImageID)
	}
	return len(idle)
}

// RunJanitor sweeps idle sessions every interval until ctx is done.
func (m *EditorManager) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep(maxIdle)
		case <-ctx.Done():
			return
		}
	}
}

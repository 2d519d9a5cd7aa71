package services

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/png"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/camden-git/fieldsurvey/database"
	"github.com/camden-git/fieldsurvey/media"
	"github.com/camden-git/fieldsurvey/metrics"
	"github.com/camden-git/fieldsurvey/models"
	"github.com/camden-git/fieldsurvey/realtime"
	"github.com/camden-git/fieldsurvey/repository"
	"github.com/camden-git/fieldsurvey/survey"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type queuedRender struct {
	userID, surveyID uint
	img              annotation.AnnotatedImage
}

type fakeQueue struct {
	mu      sync.Mutex
	renders []queuedRender
	thumbs  []string
}

func (q *fakeQueue) QueueRender(userID, surveyID uint, img annotation.AnnotatedImage) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.renders = append(q.renders, queuedRender{userID, surveyID, img})
	return true, nil
}

func (q *fakeQueue) QueueThumbnail(imageID, relPath string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.thumbs = append(q.thumbs, imageID)
	return true
}

type recorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recorder) Broadcast(e realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) last() realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type env struct {
	db       *gorm.DB
	cache    *sql.DB
	store    *media.LocalStorage
	queue    *fakeQueue
	events   *recorder
	metrics  *metrics.Metrics
	surveys  *SurveyService
	images   *ImageService
	editors  *EditorManager
	exporter *Exporter
	alice    *models.User
	bob      *models.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	db, err := database.OpenGormDB(filepath.Join(dir, "app.db"), logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	cache, err := database.InitDB(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		cache.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store, err := media.NewLocalStorage(filepath.Join(dir, "media"), media.DefaultSubDirs())
	require.NoError(t, err)

	e := &env{db: db, cache: cache, store: store, queue: &fakeQueue{}, events: &recorder{}, metrics: metrics.New()}
	imageRepo := repository.NewImageRepository(db)
	e.surveys = &SurveyService{
		Surveys: repository.NewGormSurveyRepository(db),
		CacheDB: cache,
		Renders: e.queue,
		Events:  e.events,
		Metrics: e.metrics,
	}
	e.images = &ImageService{
		Uploader:   media.NewUploader(store, "/api/media", 1<<20),
		Images:     imageRepo,
		Thumbnails: e.queue,
		Events:     e.events,
		Metrics:    e.metrics,
	}
	e.editors = NewEditorManager(e.surveys, e.metrics)
	e.exporter = &Exporter{Surveys: e.surveys, Images: imageRepo, Store: store, CacheDB: cache}

	users := repository.NewGormUserRepository(db)
	for _, name := range []string{"alice", "bob"} {
		u := &models.User{Username: name}
		require.NoError(t, u.SetPassword("secret123"))
		require.NoError(t, users.Create(u))
		if name == "alice" {
			e.alice = u
		} else {
			e.bob = u
		}
	}
	return e
}

func pngData(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func validDoc() *survey.Document {
	doc := survey.NewDocument()
	doc.BasicData.TradeName = "Posto Central"
	doc.BasicData.Brand = "Ipiranga"
	doc.BasicData.CNPJ = "12.345.678/0001-90"
	doc.BasicData.ManagerName = "Carla"
	doc.BasicData.ManagerPhone = "(11) 98888-7777"
	return doc
}

func line(id string) annotation.Annotation {
	return annotation.NewLine(id, annotation.Point{X: 100, Y: 100}, annotation.Point{X: 300, Y: 100}, annotation.DefaultColor,
		annotation.LineInput{Label: "Altura", Value: "2", Unit: annotation.UnitMeter})
}

// withPhoto uploads a photo for the user and puts it into the ceiling block.
func (e *env) withPhoto(t *testing.T, doc *survey.Document, userID uint, annotations ...annotation.Annotation) annotation.AnnotatedImage {
	t.Helper()
	rec, err := e.images.Store(context.Background(), userID, "foto.png", bytes.NewReader(pngData(t, 64, 48)))
	require.NoError(t, err)
	img := NewAnnotatedImage(rec)
	if len(annotations) > 0 {
		img.Annotations = annotations
	}
	doc.PVCCeiling.Photos = append(doc.PVCCeiling.Photos, img)
	return img
}

func TestSaveRequiresFields(t *testing.T) {
	e := newEnv(t)
	doc := validDoc()
	doc.BasicData.CNPJ = "  "
	doc.BasicData.ManagerPhone = ""

	_, err := e.surveys.Save(e.alice.ID, 0, doc)
	require.ErrorIs(t, err, survey.ErrMissingFields)
	var missing survey.MissingFields
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, survey.MissingFields{"cnpj", "gerenteTelefone"}, missing)

	_, err = e.surveys.Save(e.alice.ID, 0, nil)
	assert.ErrorIs(t, err, survey.ErrInvalidDocument)
}

func TestSaveCreateAndUpdate(t *testing.T) {
	e := newEnv(t)
	doc := validDoc()
	e.withPhoto(t, doc, e.alice.ID)
	annotated := e.withPhoto(t, doc, e.alice.ID, line("l1"))

	rec, err := e.surveys.Save(e.alice.ID, 0, doc)
	require.NoError(t, err)
	require.NotZero(t, rec.ID)
	assert.Equal(t, "Posto Central", rec.Title)
	assert.Equal(t, realtime.EventSurveySaved, e.events.last().Type)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.SurveysSaved.WithLabelValues("create")))

	require.Len(t, e.queue.renders, 1, "only annotated photos are rendered")
	assert.Equal(t, annotated.ID, e.queue.renders[0].img.ID)
	assert.Equal(t, rec.ID, e.queue.renders[0].surveyID)

	doc.BasicData.TradeName = "Posto Norte"
	updated, err := e.surveys.Save(e.alice.ID, rec.ID, doc)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, updated.ID)
	assert.Equal(t, "Posto Norte", updated.Title)

	_, err = e.surveys.Save(e.bob.ID, rec.ID, doc)
	assert.ErrorIs(t, err, ErrNotFound)

	got, gotDoc, err := e.surveys.Get(e.alice.ID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Posto Norte", got.Title)
	require.Len(t, gotDoc.PVCCeiling.Photos, 2)

	list, err := e.surveys.List(e.alice.ID, repository.SurveyListOptions{Filter: "norte"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	_, err = e.surveys.List(e.alice.ID, repository.SurveyListOptions{Sort: "random"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSaveImageAnnotations(t *testing.T) {
	e := newEnv(t)
	doc := validDoc()
	img := e.withPhoto(t, doc, e.alice.ID)
	rec, err := e.surveys.Save(e.alice.ID, 0, doc)
	require.NoError(t, err)

	canvas := annotation.Size{Width: 640, Height: 480}
	saved, err := e.surveys.SaveImageAnnotations(e.alice.ID, rec.ID, img.ID, []annotation.Annotation{line("a"), line("b")}, &canvas)
	require.NoError(t, err)
	assert.Len(t, saved.Annotations, 2)
	assert.Equal(t, img.URL, saved.URL)

	stored, err := e.surveys.Image(e.alice.ID, rec.ID, img.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, []string{stored.Annotations[0].ID, stored.Annotations[1].ID})
	require.NotNil(t, stored.Canvas)
	assert.Equal(t, canvas, *stored.Canvas)
	assert.Equal(t, img.ID, e.events.last().ImageID)

	_, err = e.surveys.SaveImageAnnotations(e.alice.ID, rec.ID, "missing", nil, nil)
	assert.ErrorIs(t, err, survey.ErrImageNotFound)

	_, err = e.surveys.SaveImageAnnotations(e.bob.ID, rec.ID, img.ID, nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	broken := annotation.Annotation{ID: "t", Kind: annotation.KindText, Color: annotation.DefaultColor}
	_, err = e.surveys.SaveImageAnnotations(e.alice.ID, rec.ID, img.ID, []annotation.Annotation{broken}, nil)
	assert.ErrorIs(t, err, survey.ErrInvalidDocument)

	stored, err = e.surveys.Image(e.alice.ID, rec.ID, img.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Annotations, 2, "failed updates leave the document untouched")
}

func TestDeleteDropsRenders(t *testing.T) {
	e := newEnv(t)
	doc := validDoc()
	img := e.withPhoto(t, doc, e.alice.ID, line("l1"))
	rec, err := e.surveys.Save(e.alice.ID, 0, doc)
	require.NoError(t, err)

	path := "renders/x.jpg"
	w, h := 10, 10
	require.NoError(t, database.SetRenderResult(e.cache, img.ID, "fp", &path, &w, &h, nil))

	assert.ErrorIs(t, e.surveys.Delete(e.bob.ID, rec.ID), ErrNotFound)
	require.NoError(t, e.surveys.Delete(e.alice.ID, rec.ID))

	_, err = database.GetRenderInfo(e.cache, img.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.Equal(t, realtime.EventSurveyDeleted, e.events.last().Type)

	_, _, err = e.surveys.Get(e.alice.ID, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImageServiceStore(t *testing.T) {
	e := newEnv(t)

	rec, err := e.images.Store(context.Background(), e.alice.ID, "Foto.PNG", bytes.NewReader(pngData(t, 32, 16)))
	require.NoError(t, err)
	assert.Equal(t, e.alice.ID, rec.UserID)
	require.NotNil(t, rec.Width)
	assert.Equal(t, 32, *rec.Width)
	assert.Equal(t, []string{rec.ID}, e.queue.thumbs)
	assert.Equal(t, realtime.EventImageUploaded, e.events.last().Type)

	_, err = e.images.Get(e.bob.ID, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.images.ByURL(e.bob.ID, rec.URL)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.images.Store(context.Background(), e.alice.ID, "notes.txt", bytes.NewReader([]byte("x")))
	assert.True(t, IsRejectedUpload(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Uploads.WithLabelValues("rejected")))

	require.NoError(t, e.images.Delete(e.alice.ID, rec.ID))
	_, _, err = e.store.Get(rec.StoragePath)
	assert.Error(t, err, "stored file is removed")
}

func TestImageListUsesImageService(t *testing.T) {
	e := newEnv(t)
	var photos survey.Photos
	list := survey.NewImageList(&photos, e.images, e.alice.ID)

	img, err := list.Add(context.Background(), "a.png", bytes.NewReader(pngData(t, 8, 8)))
	require.NoError(t, err)
	rec, err := e.images.ByURL(e.alice.ID, img.URL)
	require.NoError(t, err)
	assert.Equal(t, e.alice.ID, rec.UserID)
}

func openEditorEnv(t *testing.T) (*env, uint, annotation.AnnotatedImage) {
	t.Helper()
	e := newEnv(t)
	doc := validDoc()
	img := e.withPhoto(t, doc, e.alice.ID, line("l1"))
	rec, err := e.surveys.Save(e.alice.ID, 0, doc)
	require.NoError(t, err)
	return e, rec.ID, img
}

func TestEditorSaveWritesBack(t *testing.T) {
	e, surveyID, img := openEditorEnv(t)

	es, err := e.editors.Open(e.alice.ID, surveyID, img.ID, EditorOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, e.editors.Count())
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.OpenEditors))

	_, err = e.editors.Open(e.alice.ID, surveyID, img.ID, EditorOptions{})
	assert.ErrorIs(t, err, survey.ErrEditorOpen)

	_, err = e.editors.Get(e.bob.ID, es.ID)
	assert.ErrorIs(t, err, ErrEditorNotFound)

	s := es.Session
	require.NoError(t, s.PointerDown(annotation.Point{X: 10, Y: 10}))
	require.NoError(t, s.PointerUp(annotation.Point{X: 110, Y: 10}))
	require.NoError(t, s.ConfirmLine(annotation.LineInput{Value: "5", Unit: annotation.UnitMeter}))

	saved, err := e.editors.Save(e.alice.ID, es.ID)
	require.NoError(t, err)
	assert.Len(t, saved.Annotations, 2)
	require.NotNil(t, saved.Canvas)
	assert.Equal(t, annotation.DefaultCanvas, *saved.Canvas)
	assert.Equal(t, 0, e.editors.Count())
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.EditorSessions.WithLabelValues("saved")))

	_, err = e.editors.Save(e.alice.ID, es.ID)
	assert.ErrorIs(t, err, ErrEditorNotFound)

	stored, err := e.surveys.Image(e.alice.ID, surveyID, img.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Annotations, 2)
}

func TestEditorSaveFailureKeepsSession(t *testing.T) {
	e, surveyID, img := openEditorEnv(t)
	es, err := e.editors.Open(e.alice.ID, surveyID, img.ID, EditorOptions{})
	require.NoError(t, err)

	s := es.Session
	require.NoError(t, s.PointerDown(annotation.Point{X: 10, Y: 10}))
	require.NoError(t, s.PointerUp(annotation.Point{X: 110, Y: 10}))
	require.NoError(t, s.ConfirmLine(annotation.LineInput{Value: "5", Unit: annotation.UnitMeter}))

	sqlDB, err := e.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = e.editors.Save(e.alice.ID, es.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEditorNotFound)

	again, err := e.editors.Get(e.alice.ID, es.ID)
	require.NoError(t, err, "session stays registered after a failed save")
	assert.Equal(t, annotation.StateIdle, again.Session.State())
	assert.Len(t, again.Session.Annotations(), 2)
	assert.Equal(t, 1, e.editors.Count())
	assert.Equal(t, 0.0, testutil.ToFloat64(e.metrics.EditorSessions.WithLabelValues("saved")))
}

func TestEditorRescalesToClientCanvas(t *testing.T) {
	e, surveyID, img := openEditorEnv(t)
	canvas := annotation.Size{Width: 800, Height: 600}
	_, err := e.surveys.SaveImageAnnotations(e.alice.ID, surveyID, img.ID, []annotation.Annotation{line("l1")}, &canvas)
	require.NoError(t, err)

	half := annotation.Size{Width: 400, Height: 300}
	es, err := e.editors.Open(e.alice.ID, surveyID, img.ID, EditorOptions{Canvas: &half})
	require.NoError(t, err)
	assert.Equal(t, half, es.Session.Canvas())
	got := es.Session.Annotations()
	require.Len(t, got, 1)
	assert.InDelta(t, 50, got[0].Anchor.X, 0.001)
	assert.InDelta(t, 150, got[0].Terminus.X, 0.001)

	require.NoError(t, e.editors.Cancel(e.alice.ID, es.ID))
	stored, err := e.surveys.Image(e.alice.ID, surveyID, img.ID)
	require.NoError(t, err)
	assert.InDelta(t, 100, stored.Annotations[0].Anchor.X, 0.001, "cancel keeps stored coordinates")
}

func TestEditorSweep(t *testing.T) {
	e, surveyID, img := openEditorEnv(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e.editors.now = func() time.Time { return now }

	_, err := e.editors.Open(e.alice.ID, surveyID, img.ID, EditorOptions{Simple: true})
	require.NoError(t, err)

	assert.Equal(t, 0, e.editors.Sweep(time.Minute))
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, e.editors.Sweep(time.Minute))
	assert.Equal(t, 0, e.editors.Count())

	_, err = e.editors.Open(e.alice.ID, surveyID, img.ID, EditorOptions{})
	assert.NoError(t, err, "the photo is free again")
}

func TestExport(t *testing.T) {
	e, surveyID, img := openEditorEnv(t)

	var buf bytes.Buffer
	title, err := e.exporter.Export(e.alice.ID, surveyID, &buf)
	require.NoError(t, err)
	assert.Equal(t, "Posto Central", title)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"fotos/" + img.ID + ".png", "survey.json"}, names)

	_, err = e.exporter.Export(e.bob.ID, surveyID, &buf)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, "survey-3-Posto-Central.zip", ArchiveName(3, "Posto Central"))
	assert.Equal(t, "survey-4.zip", ArchiveName(4, "  "))
}

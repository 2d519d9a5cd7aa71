package repository

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/camden-git/fieldsurvey/database"
	"github.com/camden-git/fieldsurvey/models"
	"github.com/camden-git/fieldsurvey/survey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenGormDB(filepath.Join(t.TempDir(), "test.db"), logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name}
	require.NoError(t, u.SetPassword("secret123"))
	require.NoError(t, NewGormUserRepository(db).Create(u))
	return u
}

func newDoc(tradeName, brand, network, cnpj string) *survey.Document {
	doc := survey.NewDocument()
	doc.BasicData.TradeName = tradeName
	doc.BasicData.Brand = brand
	doc.BasicData.Network = network
	doc.BasicData.CNPJ = cnpj
	doc.BasicData.ManagerName = "Gerente"
	doc.BasicData.ManagerPhone = "(11) 3333-4444"
	return doc
}

func TestSurveyCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSurveyRepository(db)
	owner := newUser(t, db, "ana")
	other := newUser(t, db, "bruno")

	doc := newDoc("Posto Central", "Shell", "Rede Sul", "12.345.678/0001-90")
	doc.PVCCeiling.Photos = survey.Photos{{
		ID:  "img-1",
		URL: "/api/media/survey-images/1/a.jpg",
		Annotations: []annotation.Annotation{
			annotation.NewLine("l1", annotation.Point{X: 1, Y: 1}, annotation.Point{X: 50, Y: 1}, annotation.DefaultColor,
				annotation.LineInput{Value: "30", Unit: annotation.UnitMeter}),
		},
	}}

	s := &models.Survey{UserID: owner.ID}
	require.NoError(t, repo.Create(s, doc))
	require.NotZero(t, s.ID)
	assert.Equal(t, "Posto Central", s.Title)
	require.NotNil(t, s.Description)
	assert.Equal(t, "Shell", *s.Description)

	got, err := repo.GetByID(owner.ID, s.ID)
	require.NoError(t, err)
	item, ok := got.DocumentItem()
	require.True(t, ok)
	assert.Equal(t, models.DocumentItemName, item.Name)
	require.NotNil(t, item.Document)
	img, ok := item.Document.FindImage("img-1")
	require.True(t, ok)
	require.Len(t, img.Annotations, 1)
	assert.Equal(t, "30 m", img.Annotations[0].Caption())

	_, err = repo.GetByID(other.ID, s.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound), "surveys are scoped to their owner")
}

func TestSurveyUpdate(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSurveyRepository(db)
	owner := newUser(t, db, "ana")

	s := &models.Survey{UserID: owner.ID}
	require.NoError(t, repo.Create(s, newDoc("Posto A", "", "", "1")))
	assert.Nil(t, s.Description)

	update := &models.Survey{ID: s.ID, UserID: owner.ID}
	require.NoError(t, repo.Update(update, newDoc("Posto B", "Ipiranga", "", "2")))
	assert.Equal(t, "Posto B", update.Title)
	assert.Equal(t, s.CreatedAt.Unix(), update.CreatedAt.Unix())

	got, err := repo.GetByID(owner.ID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ipiranga", got.Brand)
	require.Len(t, got.Items, 1, "update rewrites the existing item")
	assert.Equal(t, "Posto B", got.Items[0].Document.BasicData.TradeName)

	missing := &models.Survey{ID: s.ID + 100, UserID: owner.ID}
	assert.ErrorIs(t, repo.Update(missing, newDoc("X", "", "", "")), gorm.ErrRecordNotFound)
}

func TestSurveyListFilterAndSort(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSurveyRepository(db)
	owner := newUser(t, db, "ana")
	other := newUser(t, db, "bruno")

	docs := []*survey.Document{
		newDoc("Posto 10", "Shell", "Rede Norte", "11.111.111/0001-11"),
		newDoc("Posto 2", "Ipiranga", "Rede Sul", "22.222.222/0001-22"),
		newDoc("Posto São João", "BR", "", "33.333.333/0001-33"),
	}
	for _, doc := range docs {
		require.NoError(t, repo.Create(&models.Survey{UserID: owner.ID}, doc))
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, repo.Create(&models.Survey{UserID: other.ID}, newDoc("Posto Alheio", "Shell", "", "")))

	titles := func(list []models.Survey) []string {
		var out []string
		for _, s := range list {
			out = append(out, s.Title)
		}
		return out
	}

	tests := []struct {
		name string
		opts SurveyListOptions
		want []string
	}{
		{"newest first", SurveyListOptions{}, []string{"Posto São João", "Posto 2", "Posto 10"}},
		{"oldest first", SurveyListOptions{Sort: database.SortCreatedAsc}, []string{"Posto 10", "Posto 2", "Posto São João"}},
		{"natural title", SurveyListOptions{Sort: database.SortTitleNat}, []string{"Posto 2", "Posto 10", "Posto São João"}},
		{"brand case-insensitive", SurveyListOptions{Filter: "sHeLl"}, []string{"Posto 10"}},
		{"network", SurveyListOptions{Filter: "rede sul"}, []string{"Posto 2"}},
		{"accented title", SurveyListOptions{Filter: "SÃO"}, []string{"Posto São João"}},
		{"cnpj substring", SurveyListOptions{Filter: "333/0001"}, []string{"Posto São João"}},
		{"no match", SurveyListOptions{Filter: "texaco"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := repo.ListByUser(owner.ID, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(list))
		})
	}

	_, err := repo.ListByUser(owner.ID, SurveyListOptions{Sort: "bogus"})
	assert.Error(t, err)
}

func TestSurveyDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSurveyRepository(db)
	owner := newUser(t, db, "ana")
	other := newUser(t, db, "bruno")

	s := &models.Survey{UserID: owner.ID}
	require.NoError(t, repo.Create(s, newDoc("Posto", "", "", "")))

	assert.ErrorIs(t, repo.Delete(other.ID, s.ID), gorm.ErrRecordNotFound)
	var count int64
	require.NoError(t, db.Model(&models.SurveyItem{}).Where("survey_id = ?", s.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "a rejected delete leaves the items in place")

	require.NoError(t, repo.Delete(owner.ID, s.ID))
	require.NoError(t, db.Model(&models.SurveyItem{}).Where("survey_id = ?", s.ID).Count(&count).Error)
	assert.Zero(t, count)
	_, err := repo.GetByID(owner.ID, s.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSurveyUpdateDocument(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormSurveyRepository(db)
	owner := newUser(t, db, "ana")

	doc := newDoc("Posto", "", "", "")
	doc.PVCCeiling.Photos = survey.Photos{{ID: "img", URL: "u", Annotations: []annotation.Annotation{}}}
	s := &models.Survey{UserID: owner.ID}
	require.NoError(t, repo.Create(s, doc))

	boom := errors.New("boom")
	_, err := repo.UpdateDocument(owner.ID, s.ID, func(d *survey.Document) error {
		d.BasicData.TradeName = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)
	got, err := repo.GetByID(owner.ID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Posto", got.Title)

	updated, err := repo.UpdateDocument(owner.ID, s.ID, func(d *survey.Document) error {
		img, ok := d.FindImage("img")
		require.True(t, ok)
		text, err := annotation.NewText("t1", annotation.Point{X: 5, Y: 20}, annotation.DefaultColor, "Entrada")
		require.NoError(t, err)
		img.Annotations = append(img.Annotations, text)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, s.ID, updated.ID)

	got, err = repo.GetByID(owner.ID, s.ID)
	require.NoError(t, err)
	item, _ := got.DocumentItem()
	img, ok := item.Document.FindImage("img")
	require.True(t, ok)
	require.Len(t, img.Annotations, 1)
	assert.Equal(t, "Entrada", img.Annotations[0].Caption())
}

package services

import (
	"database/sql"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/camden-git/fieldsurvey/database"
	"github.com/camden-git/fieldsurvey/media"
	"github.com/camden-git/fieldsurvey/repository"
	"github.com/camden-git/fieldsurvey/survey"
	"github.com/camden-git/fieldsurvey/utils"
)

// Exporter packs a survey into a ZIP archive: the form document, every
// original photo and the finished renders of annotated photos.
type Exporter struct {
	Surveys *SurveyService
	Images  repository.ImageRepositoryInterface
	Store   media.Store
	CacheDB *sql.DB // may be nil
}

// ArchiveName is the download name of a survey archive.
func ArchiveName(surveyID uint, title string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, strings.TrimSpace(title))
	if slug == "" {
		return fmt.Sprintf("survey-%d.zip", surveyID)
	}
	return fmt.Sprintf("survey-%d-%s.zip", surveyID, slug)
}

// Export writes the archive of a survey of the user to w and returns the
// survey title.
func (e *Exporter) Export(userID, surveyID uint, w io.Writer) (string, error) {
	rec, doc, err := e.Surveys.Get(userID, surveyID)
	if err != nil {
		return "", err
	}
	entries, err := e.entries(userID, doc)
	if err != nil {
		return "", err
	}
	if _, err := utils.WriteZip(w, entries); err != nil {
		return "", fmt.Errorf("failed to write archive of survey %d: %w", surveyID, err)
	}
	return rec.Title, nil
}

func (e *Exporter) entries(userID uint, doc *survey.Document) ([]utils.ZipEntry, error) {
	encoded, err := doc.Encode()
	if err != nil {
		return nil, err
	}
	entries := []utils.ZipEntry{utils.BytesEntry("survey.json", encoded)}

	seen := map[string]bool{}
	for _, img := range doc.Images() {
		if seen[img.ID] {
			continue
		}
		seen[img.ID] = true

		rec, err := e.Images.GetByURL(img.URL)
		if err != nil || rec.UserID != userID {
			continue
		}
		entries = append(entries, e.storeEntry("fotos/"+img.ID+path.Ext(rec.StoragePath), rec.StoragePath))

		if e.CacheDB == nil || len(img.Annotations) == 0 {
			continue
		}
		info, err := database.GetRenderInfo(e.CacheDB, img.ID)
		if err != nil || info.Status != database.StatusDone || info.RenderPath == nil {
			continue
		}
		if info.Fingerprint != media.Fingerprint(*img) {
			continue // stale
		}
		entries = append(entries, e.storeEntry("anotadas/"+img.ID+path.Ext(*info.RenderPath), *info.RenderPath))
	}
	return entries, nil
}

func (e *Exporter) storeEntry(name, relPath string) utils.ZipEntry {
	return utils.ZipEntry{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			rc, _, err := e.Store.Get(relPath)
			return rc, err
		},
	}
}

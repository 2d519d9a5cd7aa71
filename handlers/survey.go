package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/camden-git/fieldsurvey/database"
	"github.com/camden-git/fieldsurvey/media"
	"github.com/camden-git/fieldsurvey/models"
	"github.com/camden-git/fieldsurvey/repository"
	"github.com/camden-git/fieldsurvey/services"
	"github.com/camden-git/fieldsurvey/survey"
	"github.com/go-chi/chi/v5"
)

const maxDocumentBytes = 4 << 20

type SurveyHandler struct {
	Surveys  *services.SurveyService
	Exporter *services.Exporter
	Uploader *media.Uploader // builds render URLs
}

// SurveyResponse is a survey with its form document.
type SurveyResponse struct {
	Survey   *models.Survey       `json:"survey"`
	Document *survey.Document     `json:"document"`
	Blocks   []survey.BlockStatus `json:"blocks"`
}

func surveyIDParam(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "survey_id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid survey id", services.ErrInvalidInput)
	}
	return uint(id), nil
}

func (h *SurveyHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := repository.SurveyListOptions{
		Filter: r.URL.Query().Get("q"),
		Sort:   r.URL.Query().Get("sort"),
	}
	list, err := h.Surveys.List(currentUser(r).ID, opts)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	for i := range list {
		list[i].Items = nil
	}
	writeJSON(w, http.StatusOK, list)
}

// readDocument decodes and validates a form document body.
func readDocument(w http.ResponseWriter, r *http.Request) (*survey.Document, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", services.ErrInvalidInput, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty body", services.ErrInvalidInput)
	}
	return survey.Decode(body)
}

func (h *SurveyHandler) Create(w http.ResponseWriter, r *http.Request) {
	doc, err := readDocument(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rec, err := h.Surveys.Save(currentUser(r).ID, 0, doc)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.response(rec, doc))
}

func (h *SurveyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := surveyIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rec, doc, err := h.Surveys.Get(currentUser(r).ID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.response(rec, doc))
}

func (h *SurveyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := surveyIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	doc, err := readDocument(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rec, err := h.Surveys.Save(currentUser(r).ID, id, doc)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.response(rec, doc))
}

func (h *SurveyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := surveyIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.Surveys.Delete(currentUser(r).ID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Blocks reports the configured and filled state of every block.
func (h *SurveyHandler) Blocks(w http.ResponseWriter, r *http.Request) {
	id, err := surveyIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_, doc, err := h.Surveys.Get(currentUser(r).ID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc.Blocks())
}

type annotationsPayload struct {
	Annotations []annotation.Annotation `json:"annotations"`
	Canvas      *annotation.Size        `json:"canvas,omitempty"`
}

// PutAnnotations replaces the annotations of one photo.
func (h *SurveyHandler) PutAnnotations(w http.ResponseWriter, r *http.Request) {
	id, err := surveyIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var payload annotationsPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBytes)).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request payload: "+err.Error())
		return
	}
	if payload.Annotations == nil {
		payload.Annotations = []annotation.Annotation{}
	}
	img, err := h.Surveys.SaveImageAnnotations(currentUser(r).ID, id, chi.URLParam(r, "image_id"), payload.Annotations, payload.Canvas)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, img)
}

// RenderResponse reports the annotated render of a photo.
type RenderResponse struct {
	ImageID string  `json:"image_id"`
	Status  string  `json:"status"`
	URL     *string `json:"url,omitempty"`
	Width   *int    `json:"width,omitempty"`
	Height  *int    `json:"height,omitempty"`
	Error   *string `json:"error,omitempty"`
}

// Render returns the render of a photo, scheduling it when missing or
// stale. Pending renders answer 202.
func (h *SurveyHandler) Render(w http.ResponseWriter, r *http.Request) {
	id, err := surveyIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	imageID := chi.URLParam(r, "image_id")
	info, err := h.Surveys.RenderStatus(currentUser(r).ID, id, imageID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := RenderResponse{ImageID: imageID, Status: info.Status, Width: info.Width, Height: info.Height, Error: info.Error}
	status := http.StatusAccepted
	switch info.Status {
	case database.StatusDone:
		status = http.StatusOK
		if info.RenderPath != nil && h.Uploader != nil {
			url := h.Uploader.URLFor(*info.RenderPath)
			resp.URL = &url
		}
	case database.StatusFailed:
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

// Export streams a ZIP archive of the survey.
func (h *SurveyHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := surveyIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var buf bytes.Buffer
	title, err := h.Exporter.Export(currentUser(r).ID, id, &buf)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, services.ArchiveName(id, title)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func (h *SurveyHandler) response(rec *models.Survey, doc *survey.Document) SurveyResponse {
	out := *rec
	out.Items = nil
	return SurveyResponse{Survey: &out, Document: doc, Blocks: doc.Blocks()}
}

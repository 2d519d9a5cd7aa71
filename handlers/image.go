package handlers

import (
	"net/http"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/camden-git/fieldsurvey/models"
	"github.com/camden-git/fieldsurvey/services"
	"github.com/go-chi/chi/v5"
)

// multipart overhead allowed on top of the upload limit
const uploadFormSlack = 1 << 20

type ImageHandler struct {
	Images         *services.ImageService
	MaxUploadBytes int64
}

// UploadResponse is the stored record plus the entry to put in a photo field.
type UploadResponse struct {
	Image          *models.SurveyImage       `json:"image"`
	AnnotatedImage annotation.AnnotatedImage `json:"annotated_image"`
}

// Upload stores the multipart field "file".
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+uploadFormSlack)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "Missing or unreadable form field 'file': "+err.Error())
		return
	}
	defer file.Close()

	rec, err := h.Images.Store(r.Context(), currentUser(r).ID, header.Filename, file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{Image: rec, AnnotatedImage: services.NewAnnotatedImage(rec)})
}

func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Images.List(currentUser(r).ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.SurveyImage{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Images.Get(currentUser(r).ID, chi.URLParam(r, "image_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Images.Delete(currentUser(r).ID, chi.URLParam(r, "image_id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

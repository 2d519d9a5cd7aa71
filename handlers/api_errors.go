package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/camden-git/fieldsurvey/media"
	"github.com/camden-git/fieldsurvey/services"
	"github.com/camden-git/fieldsurvey/survey"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	writeAPIErrors(w, httpStatus, []APIErrorDetail{{Code: code, Detail: detail}})
}

func writeAPIErrors(w http.ResponseWriter, httpStatus int, details []APIErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	for i := range details {
		details[i].Status = strconv.Itoa(httpStatus)
	}
	_ = json.NewEncoder(w).Encode(APIErrorResponse{Errors: details})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("handlers: Error encoding JSON response: %v", err)
		}
	}
}

// writeServiceError maps domain errors onto API errors. Anything unknown is
// logged and reported as an internal error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var missing survey.MissingFields
	var fieldErr *survey.FieldError

	switch {
	case errors.As(err, &missing):
		details := make([]APIErrorDetail, 0, len(missing))
		for _, field := range missing {
			details = append(details, APIErrorDetail{Code: "missing_field", Detail: field})
		}
		writeAPIErrors(w, http.StatusUnprocessableEntity, details)
	case errors.As(err, &fieldErr):
		WriteAPIError(w, http.StatusBadRequest, "invalid_document", fieldErr.Error())
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrEditorNotFound),
		errors.Is(err, survey.ErrImageNotFound):
		WriteAPIError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, services.ErrForbidden):
		WriteAPIError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, survey.ErrEditorOpen):
		WriteAPIError(w, http.StatusConflict, "editor_open", err.Error())
	case errors.Is(err, survey.ErrImageLimit):
		WriteAPIError(w, http.StatusConflict, "image_limit", err.Error())
	case errors.Is(err, survey.ErrInvalidDocument), errors.Is(err, survey.ErrUnsupportedVersion):
		WriteAPIError(w, http.StatusBadRequest, "invalid_document", err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		WriteAPIError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, media.ErrUploadTooLarge):
		WriteAPIError(w, http.StatusRequestEntityTooLarge, "upload_too_large", err.Error())
	case services.IsRejectedUpload(err):
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", err.Error())
	case errors.Is(err, services.ErrRendersDisabled):
		WriteAPIError(w, http.StatusServiceUnavailable, "renders_disabled", err.Error())
	case errors.Is(err, annotation.ErrSessionClosed):
		WriteAPIError(w, http.StatusGone, "session_closed", err.Error())
	case errors.Is(err, annotation.ErrPendingOperation),
		errors.Is(err, annotation.ErrNoPendingLine),
		errors.Is(err, annotation.ErrNoPendingText):
		WriteAPIError(w, http.StatusConflict, "invalid_state", err.Error())
	case isAnnotationInputError(err):
		WriteAPIError(w, http.StatusBadRequest, "invalid_annotation", err.Error())
	default:
		log.Printf("handlers: ERROR %s %s: %v", r.Method, r.URL.Path, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

var annotationInputErrors = []error{
	annotation.ErrInvalidKind,
	annotation.ErrMissingTerminus,
	annotation.ErrEmptyText,
	annotation.ErrMixedFields,
	annotation.ErrInvalidUnit,
	annotation.ErrInvalidColor,
	annotation.ErrMissingID,
	annotation.ErrCoordinateRange,
	annotation.ErrInvalidTool,
	annotation.ErrNoPointer,
	annotation.ErrNotFound,
	annotation.ErrNotLine,
}

func isAnnotationInputError(err error) bool {
	for _, target := range annotationInputErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

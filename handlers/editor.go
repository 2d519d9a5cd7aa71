package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/camden-git/fieldsurvey/media"
	"github.com/camden-git/fieldsurvey/services"
	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
)

// EditorHandler drives annotation editor sessions for clients that keep the
// editor state on the server.
type EditorHandler struct {
	Editors   *services.EditorManager
	Images    *services.ImageService
	Processor *media.Processor
	Renderer  *annotation.Renderer
}

type openEditorPayload struct {
	Canvas *annotation.Size `json:"canvas,omitempty"`
	Simple bool             `json:"simple"`
}

// EditorResponse is the state of a session after each request.
type EditorResponse struct {
	ID       string              `json:"id"`
	SurveyID uint                `json:"survey_id"`
	ImageID  string              `json:"image_id"`
	Snapshot annotation.Snapshot `json:"snapshot"`
}

func editorResponse(es *services.EditorSession) EditorResponse {
	return EditorResponse{ID: es.ID, SurveyID: es.SurveyID, ImageID: es.ImageID, Snapshot: es.Session.Snapshot()}
}

// Open starts a session on one photo of a survey.
func (h *EditorHandler) Open(w http.ResponseWriter, r *http.Request) {
	surveyID, err := surveyIDParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var payload openEditorPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request payload: "+err.Error())
		return
	}
	es, err := h.Editors.Open(currentUser(r).ID, surveyID, chi.URLParam(r, "image_id"), services.EditorOptions{
		Canvas: payload.Canvas,
		Simple: payload.Simple,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, editorResponse(es))
}

func (h *EditorHandler) session(w http.ResponseWriter, r *http.Request) (*services.EditorSession, bool) {
	es, err := h.Editors.Get(currentUser(r).ID, chi.URLParam(r, "editor_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	return es, true
}

func (h *EditorHandler) Get(w http.ResponseWriter, r *http.Request) {
	es, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, editorResponse(es))
}

// EditorEvent is one user interaction. Pointer events carry either a
// canvas-space Point or a raw client event plus the canvas origin.
type EditorEvent struct {
	Type    string                   `json:"type"`
	Point   *annotation.Point        `json:"point,omitempty"`
	Pointer *annotation.PointerEvent `json:"pointer,omitempty"`
	Origin  annotation.Point         `json:"origin"`
	Tool    annotation.Tool          `json:"tool,omitempty"`
	Color   annotation.Color         `json:"color,omitempty"`
	Line    annotation.LineInput     `json:"line"`
	Text    string                   `json:"text,omitempty"`
	Key     annotation.Key           `json:"key,omitempty"`
	ID      string                   `json:"id,omitempty"`
	Value   string                   `json:"value,omitempty"`
	Canvas  *annotation.Size         `json:"canvas,omitempty"`
}

func (ev EditorEvent) point() (annotation.Point, error) {
	if ev.Point != nil {
		return *ev.Point, nil
	}
	if ev.Pointer != nil {
		return annotation.CanvasPoint(*ev.Pointer, ev.Origin)
	}
	return annotation.Point{}, annotation.ErrNoPointer
}

// Apply feeds one event to the session.
func (ev EditorEvent) Apply(s *annotation.Session) error {
	switch ev.Type {
	case "pointer_down", "pointer_move", "pointer_up":
		p, err := ev.point()
		if err != nil {
			return err
		}
		switch ev.Type {
		case "pointer_down":
			return s.PointerDown(p)
		case "pointer_move":
			return s.PointerMove(p)
		default:
			return s.PointerUp(p)
		}
	case "tool":
		return s.SelectTool(ev.Tool)
	case "color":
		return s.SelectColor(ev.Color)
	case "confirm_line":
		return s.ConfirmLine(ev.Line)
	case "cancel_line":
		return s.CancelLine()
	case "set_text":
		return s.SetText(ev.Text)
	case "confirm_text":
		return s.ConfirmText()
	case "cancel_text":
		return s.CancelText()
	case "key":
		return s.HandleKey(ev.Key)
	case "undo":
		return s.Undo()
	case "clear":
		return s.Clear()
	case "update_value":
		return s.UpdateValue(ev.ID, ev.Value)
	case "resize":
		if ev.Canvas == nil || ev.Canvas.Empty() {
			return fmt.Errorf("%w: resize needs a positive canvas", services.ErrInvalidInput)
		}
		return s.Resize(*ev.Canvas)
	default:
		return fmt.Errorf("%w: unknown editor event %q", services.ErrInvalidInput, ev.Type)
	}
}

// Events applies a single event or a batch of events in order. Processing
// stops at the first failing event.
func (h *EditorHandler) Events(w http.ResponseWriter, r *http.Request) {
	es, ok := h.session(w, r)
	if !ok {
		return
	}
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request payload: "+err.Error())
		return
	}
	var events []EditorEvent
	if len(raw) > 0 && raw[0] == '[' {
		err := json.Unmarshal(raw, &events)
		if err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid event list: "+err.Error())
			return
		}
	} else {
		var ev EditorEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid event: "+err.Error())
			return
		}
		events = []EditorEvent{ev}
	}

	for _, ev := range events {
		if err := ev.Apply(es.Session); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, editorResponse(es))
}

// Preview renders the photo with the session's current annotations and
// drawing preview as PNG.
func (h *EditorHandler) Preview(w http.ResponseWriter, r *http.Request) {
	es, ok := h.session(w, r)
	if !ok {
		return
	}
	rec, err := h.Images.ByURL(es.UserID, es.Session.ImageURL())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	base, err := h.Processor.Open(rec.StoragePath)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := h.Renderer.RenderSession(base, es.Session)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := imaging.Encode(w, out, imaging.PNG); err != nil {
		log.Printf("handlers: Error encoding preview of editor %s: %v", es.ID, err)
	}
}

// Save closes the session and writes its annotations into the survey.
func (h *EditorHandler) Save(w http.ResponseWriter, r *http.Request) {
	img, err := h.Editors.Save(currentUser(r).ID, chi.URLParam(r, "editor_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, img)
}

// Cancel closes the session without saving.
func (h *EditorHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.Editors.Cancel(currentUser(r).ID, chi.URLParam(r, "editor_id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

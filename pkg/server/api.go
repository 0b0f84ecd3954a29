package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/blockpage/pkg/admin"
	"github.com/hazyhaar/blockpage/pkg/blocks"
	"github.com/hazyhaar/blockpage/pkg/engine"
	"github.com/hazyhaar/blockpage/pkg/media"
	"github.com/hazyhaar/blockpage/pkg/render"
	"github.com/hazyhaar/blockpage/pkg/session"
)

// maxUpload bounds the size of a media upload.
const maxUpload = 32 << 20

// Response helpers

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps an operation error to its HTTP status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *blocks.ValidationError
		pe *blocks.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  ve.Error(),
			"type":   ve.Type,
			"fields": ve.Fields,
		})
	case errors.Is(err, blocks.ErrNotFound), errors.Is(err, session.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrBusy), errors.Is(err, session.ErrInvalidTransition):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, blocks.ErrUnknownType),
		errors.Is(err, blocks.ErrInvalidField),
		errors.Is(err, engine.ErrCrossPage),
		errors.Is(err, engine.ErrMismatch),
		errors.Is(err, media.ErrEmptyUpload):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, admin.ErrNoUploader):
		writeMessage(w, http.StatusNotImplemented, err.Error())
	case errors.As(err, &pe):
		s.logger.Error("persistence failure", "op", pe.Op, "block", pe.BlockID, "error", pe.Err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  "storage failure, nothing was saved",
			"resync": pe.Resync,
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeMessage(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		s.logger.Error("admin request failed", "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// Block types

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.admin.Types())
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := s.admin.Schema(blocks.Type(chi.URLParam(r, "type")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

func (s *Server) handlePageBlocks(w http.ResponseWriter, r *http.Request) {
	bs, err := s.admin.Blocks(r.Context(), chi.URLParam(r, "page"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bs)
}

// Session handlers

type sessionResponse struct {
	ID    string        `json:"id"`
	Draft session.Draft `json:"draft"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page string `json:"page"`
	}
	if !decode(w, r, &req) {
		return
	}
	if !slugPattern.MatchString(req.Page) {
		writeMessage(w, http.StatusBadRequest, "invalid page")
		return
	}

	id := s.admin.StartSession(req.Page)
	d, err := s.admin.Draft(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id, Draft: d})
}

// respondDraft writes the draft of an operation on the session in the URL.
func (s *Server) respondDraft(w http.ResponseWriter, r *http.Request, d session.Draft, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: chi.URLParam(r, "session"), Draft: d})
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.admin.Draft(chi.URLParam(r, "session"))
	s.respondDraft(w, r, d, err)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	s.admin.EndSession(chi.URLParam(r, "session"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type blocks.Type `json:"type"`
	}
	if !decode(w, r, &req) {
		return
	}
	d, err := s.admin.StartCreate(chi.URLParam(r, "session"), req.Type)
	s.respondDraft(w, r, d, err)
}

func (s *Server) handleStartEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BlockID string `json:"blockId"`
	}
	if !decode(w, r, &req) {
		return
	}
	d, err := s.admin.StartEdit(r.Context(), chi.URLParam(r, "session"), req.BlockID)
	s.respondDraft(w, r, d, err)
}

func (s *Server) handleSetType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type blocks.Type `json:"type"`
	}
	if !decode(w, r, &req) {
		return
	}
	d, err := s.admin.SetType(chi.URLParam(r, "session"), req.Type)
	s.respondDraft(w, r, d, err)
}

func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path  string `json:"path"`
		Value any    `json:"value"`
	}
	if !decode(w, r, &req) {
		return
	}
	d, err := s.admin.SetField(chi.URLParam(r, "session"), req.Path, req.Value)
	s.respondDraft(w, r, d, err)
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if !decode(w, r, &req) {
		return
	}
	d, err := s.admin.SetActive(chi.URLParam(r, "session"), req.Active)
	s.respondDraft(w, r, d, err)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	d, err := s.admin.Cancel(chi.URLParam(r, "session"))
	s.respondDraft(w, r, d, err)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	saved, err := s.admin.Save(r.Context(), chi.URLParam(r, "session"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	data := &render.PageData{
		Title:       s.title,
		CurrentPath: r.URL.Path,
		IsHTMX:      r.Header.Get("HX-Request") == "true",
	}
	p, err := s.admin.Preview(r.Context(), chi.URLParam(r, "session"), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.RenderPage(w, data, p.Outputs); err != nil {
		s.logger.Error("render preview", "page", p.Draft.Page, "error", err)
	}
}

// Block handlers

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		A string `json:"a"`
		B string `json:"b"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.admin.Swap(r.Context(), req.A, req.B); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMoveUp(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.MoveUp(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMoveDown(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.MoveDown(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	active, err := s.admin.ToggleActive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	// htmx only swaps the placeholder out on a 200.
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	url, err := s.admin.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

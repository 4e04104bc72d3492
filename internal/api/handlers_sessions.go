// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/boston311/internal/palette"
	"github.com/tomtom215/boston311/internal/validation"
)

// SessionResponse describes a color session.
type SessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Columns   []string  `json:"columns"`
}

// LegendResponse maps the values of one column to colors.
type LegendResponse struct {
	Column string                `json:"column"`
	Legend []palette.LegendEntry `json:"legend"`
}

func (h *Handler) sessionResponse(s *palette.Session) SessionResponse {
	return SessionResponse{ID: s.ID, CreatedAt: s.CreatedAt, Columns: h.explorer.Columns()}
}

// sessionID reads and validates the {id} path parameter.
func sessionID(r *http.Request) (string, *validation.RequestValidationError) {
	req := SessionRequest{SessionID: chi.URLParam(r, "id")}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return "", verr
	}
	return req.SessionID, nil
}

// CreateSession handles POST /api/v1/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	s, err := h.explorer.NewSession(r.Context())
	if err != nil {
		rw.FromError(err)
		return
	}
	rw.Created(h.sessionResponse(s))
}

// DeleteSession handles DELETE /api/v1/sessions/{id}. Unknown sessions are
// not an error.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, verr := sessionID(r)
	if verr != nil {
		rw.ValidationError(verr)
		return
	}
	h.explorer.CloseSession(id)
	rw.NoContent()
}

// ResetSession handles POST /api/v1/sessions/{id}/reset.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, verr := sessionID(r)
	if verr != nil {
		rw.ValidationError(verr)
		return
	}
	s, err := h.explorer.ResetSession(r.Context(), id)
	if err != nil {
		rw.FromError(err)
		return
	}
	rw.Success(h.sessionResponse(s))
}

// SessionLegend handles GET /api/v1/sessions/{id}/legend/{column}. The
// legend covers the requests matching the filter parameters.
func (h *Handler) SessionLegend(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, verr := sessionID(r)
	if verr != nil {
		rw.ValidationError(verr)
		return
	}
	if _, err := h.explorer.Session(id); err != nil {
		rw.FromError(err)
		return
	}
	fs, err := parseFilterSet(r)
	if err != nil {
		rw.FromError(err)
		return
	}

	records, err := h.explorer.Query(r.Context(), fs)
	if err != nil {
		rw.FromError(err)
		return
	}
	column := chi.URLParam(r, "column")
	legend, err := h.explorer.Legend(id, column, records)
	if err != nil {
		rw.FromError(err)
		return
	}
	if legend == nil {
		legend = []palette.LegendEntry{}
	}
	rw.SuccessWithCount(LegendResponse{Column: column, Legend: legend}, len(legend))
}

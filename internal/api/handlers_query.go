// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/boston311/internal/database/query"
	"github.com/tomtom215/boston311/internal/models"
	"github.com/tomtom215/boston311/internal/palette"
	"github.com/tomtom215/boston311/internal/timeperiod"
)

// PeriodsResponse lists the period picker entries.
type PeriodsResponse struct {
	Now     time.Time           `json:"now"`
	AllTime *timeperiod.Range   `json:"all_time,omitempty"`
	Options []timeperiod.Option `json:"options"`
}

// RecordsResponse carries requests with one color per record.
type RecordsResponse struct {
	Records []models.Record       `json:"records"`
	Colors  []palette.RGBA        `json:"colors"`
	ColorBy string                `json:"color_by,omitempty"`
	Legend  []palette.LegendEntry `json:"legend,omitempty"`
}

// Periods handles GET /api/v1/periods.
func (h *Handler) Periods(w http.ResponseWriter, r *http.Request) {
	resp := PeriodsResponse{
		Now:     h.explorer.Now(),
		Options: h.explorer.Periods(h.explorer.Now()),
	}
	if ds := h.explorer.Dataset(); !ds.IsZero() {
		resp.AllTime = &ds
	}
	NewResponseWriter(w, r).Success(resp)
}

// Requests handles GET /api/v1/requests.
func (h *Handler) Requests(w http.ResponseWriter, r *http.Request) {
	h.serveRecords(w, r, h.explorer.Query)
}

// Selection handles GET /api/v1/selection. bbox is required.
func (h *Handler) Selection(w http.ResponseWriter, r *http.Request) {
	h.serveRecords(w, r, h.explorer.Select)
}

type recordsFunc func(ctx context.Context, fs query.FilterSet) ([]models.Record, error)

func (h *Handler) serveRecords(w http.ResponseWriter, r *http.Request, fetch recordsFunc) {
	rw := NewResponseWriter(w, r)

	fs, err := parseFilterSet(r)
	if err != nil {
		rw.FromError(err)
		return
	}
	colors, err := parseColorRequest(r, h.explorer.DefaultAlpha())
	if err != nil {
		rw.FromError(err)
		return
	}

	records, err := fetch(r.Context(), fs)
	if err != nil {
		rw.FromError(err)
		return
	}
	if records == nil {
		records = []models.Record{}
	}

	resp := RecordsResponse{Records: records, ColorBy: colors.ColorBy}
	resp.Colors, err = h.explorer.Colors(colors.SessionID, colors.ColorBy, records, colors.Alpha)
	if err != nil {
		rw.FromError(err)
		return
	}
	if colors.ColorBy != "" {
		resp.Legend, err = h.explorer.Legend(colors.SessionID, colors.ColorBy, records)
		if err != nil {
			rw.FromError(err)
			return
		}
	}

	rw.SuccessWithCount(resp, len(records))
}

// Options handles GET /api/v1/options/{column}.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	fs, err := parseFilterSet(r)
	if err != nil {
		rw.FromError(err)
		return
	}
	values, err := h.explorer.Options(r.Context(), chi.URLParam(r, "column"), fs)
	if err != nil {
		rw.FromError(err)
		return
	}
	if values == nil {
		values = []string{}
	}
	rw.SuccessWithCount(values, len(values))
}

// Counts handles GET /api/v1/counts/{column}.
func (h *Handler) Counts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	fs, err := parseFilterSet(r)
	if err != nil {
		rw.FromError(err)
		return
	}
	counts, err := h.explorer.Counts(r.Context(), chi.URLParam(r, "column"), fs)
	if err != nil {
		rw.FromError(err)
		return
	}
	if counts == nil {
		counts = []models.CategoryCount{}
	}
	rw.SuccessWithCount(counts, len(counts))
}

// ClearCache handles DELETE /api/v1/cache.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.explorer.ClearCaches()
	NewResponseWriter(w, r).NoContent()
}

// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/boston311/internal/database/query"
	"github.com/tomtom215/boston311/internal/models"
	"github.com/tomtom215/boston311/internal/timeperiod"
	"github.com/tomtom215/boston311/internal/validation"
)

// FilterRequest holds the raw filter query parameters shared by the query
// routes, validated before they are turned into a query.FilterSet.
//
// Fields:
//   - Period: period token such as year_2024 or last_30_days
//   - Start, End: explicit RFC3339 range, both or neither
//   - Neighborhoods, Sources, Subjects: repeated values, any-of
//   - BBox: minLon,minLat,maxLon,maxLat
//   - Text: free text matched against the text columns
type FilterRequest struct {
	Period        string `validate:"omitempty,period_token"`
	Start         string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	End           string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Neighborhoods []string
	Sources       []string
	Subjects      []string
	BBox          string
	Text          string `validate:"max=200"`
}

// ColorRequest holds the optional coloring parameters of record routes.
//
// Fields:
//   - SessionID: session whose color tables are used
//   - ColorBy: category column to color by; empty paints the point color
//   - Alpha: point opacity in [0, 1]
type ColorRequest struct {
	SessionID string  `validate:"omitempty,uuid4"`
	ColorBy   string  `validate:"omitempty,category_column"`
	Alpha     float64 `validate:"gte=0,lte=1"`
}

// SessionRequest identifies a session from the path.
type SessionRequest struct {
	SessionID string `validate:"required,uuid4"`
}

func newFilterRequest(r *http.Request) FilterRequest {
	q := r.URL.Query()
	return FilterRequest{
		Period:        strings.TrimSpace(q.Get("period")),
		Start:         q.Get("start"),
		End:           q.Get("end"),
		Neighborhoods: q["neighborhood"],
		Sources:       q["source"],
		Subjects:      q["subject"],
		BBox:          q.Get("bbox"),
		Text:          q.Get("q"),
	}
}

// parseFilterSet reads and validates the filter parameters of r.
func parseFilterSet(r *http.Request) (query.FilterSet, error) {
	req := newFilterRequest(r)
	if verr := validation.ValidateStruct(&req); verr != nil {
		return query.FilterSet{}, verr
	}
	return req.FilterSet()
}

// FilterSet converts the request into a validated filter set.
func (req *FilterRequest) FilterSet() (query.FilterSet, error) {
	fs := query.FilterSet{
		Period:        req.Period,
		Neighborhoods: req.Neighborhoods,
		Sources:       req.Sources,
		Subjects:      req.Subjects,
		Text:          req.Text,
	}

	if req.Start != "" || req.End != "" {
		if req.Start == "" || req.End == "" {
			return query.FilterSet{}, fmt.Errorf("%w: start and end must be given together", models.ErrInvalidFilter)
		}
		rng, err := parseRange(req.Start, req.End)
		if err != nil {
			return query.FilterSet{}, err
		}
		fs.Range = &rng
	}

	if req.BBox != "" {
		bbox, err := parseBBox(req.BBox)
		if err != nil {
			return query.FilterSet{}, err
		}
		fs.BBox = &bbox
	}

	if err := fs.Validate(); err != nil {
		return query.FilterSet{}, err
	}
	return fs, nil
}

func parseRange(start, end string) (timeperiod.Range, error) {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return timeperiod.Range{}, fmt.Errorf("%w: start: %w", models.ErrInvalidFilter, err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return timeperiod.Range{}, fmt.Errorf("%w: end: %w", models.ErrInvalidFilter, err)
	}
	return timeperiod.NewRange(s, e)
}

// parseBBox parses "minLon,minLat,maxLon,maxLat".
func parseBBox(raw string) (query.BBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return query.BBox{}, fmt.Errorf("%w: bbox must be minLon,minLat,maxLon,maxLat", models.ErrInvalidFilter)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return query.BBox{}, fmt.Errorf("%w: bbox coordinate %q is not a number", models.ErrInvalidFilter, p)
		}
		v[i] = f
	}
	bbox := query.BBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}
	if err := bbox.Validate(); err != nil {
		return query.BBox{}, err
	}
	return bbox, nil
}

// parseColorRequest reads the coloring parameters; alpha defaults to
// defaultAlpha when absent.
func parseColorRequest(r *http.Request, defaultAlpha float64) (ColorRequest, error) {
	q := r.URL.Query()
	req := ColorRequest{
		SessionID: q.Get("session"),
		ColorBy:   q.Get("color_by"),
		Alpha:     defaultAlpha,
	}
	if raw := q.Get("alpha"); raw != "" {
		alpha, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return ColorRequest{}, fmt.Errorf("%w: alpha %q is not a number", models.ErrInvalidFilter, raw)
		}
		req.Alpha = alpha
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return ColorRequest{}, verr
	}
	if req.ColorBy != "" && req.SessionID == "" {
		return ColorRequest{}, fmt.Errorf("%w: color_by requires a session", models.ErrInvalidFilter)
	}
	return req, nil
}

// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package palette

import (
	"fmt"
	"time"

	"github.com/tomtom215/boston311/internal/models"
)

// Session holds the color tables of one dashboard session.
// The column set is fixed at creation; assigners are individually safe for
// concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	assigners map[string]*Assigner
}

// NewSession creates a session with one Assigner per column.
func NewSession(id string, columns []string, palette []RGBA, null RGBA) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		assigners: make(map[string]*Assigner, len(columns)),
	}
	for _, col := range columns {
		s.assigners[col] = NewAssigner(col, palette, null)
	}
	return s
}

// Assigner returns the table for column.
func (s *Session) Assigner(column string) (*Assigner, error) {
	a, ok := s.assigners[column]
	if !ok {
		return nil, fmt.Errorf("%w: column %q is not a color column", models.ErrInvalidFilter, column)
	}
	return a, nil
}

// ColorFor returns the color of value in column.
func (s *Session) ColorFor(column, value string) (RGBA, error) {
	a, err := s.Assigner(column)
	if err != nil {
		return RGBA{}, err
	}
	return a.ColorFor(value), nil
}

// Seed seeds column with values; unknown columns are ignored.
func (s *Session) Seed(column string, values []string) {
	if a, ok := s.assigners[column]; ok {
		a.Seed(values)
	}
}

// Reset clears every column's assignments.
func (s *Session) Reset() {
	for _, a := range s.assigners {
		a.Reset()
	}
}

// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package explorer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/boston311/internal/database/query"
	"github.com/tomtom215/boston311/internal/logging"
	"github.com/tomtom215/boston311/internal/metrics"
	"github.com/tomtom215/boston311/internal/models"
	"github.com/tomtom215/boston311/internal/palette"
)

// Session-related errors
var (
	// ErrSessionNotFound is returned for an unknown session ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned for a session idle longer than the TTL.
	ErrSessionExpired = errors.New("session expired")
)

type sessionEntry struct {
	session        *palette.Session
	lastAccessedAt time.Time
}

// sessionRegistry keeps palette sessions in memory with a sliding idle TTL
// and a capacity bound that evicts the least recently used session.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	max      int
	now      func() time.Time
}

func newSessionRegistry(ttl time.Duration, maxSessions int, now func() time.Time) *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		max:      maxSessions,
		now:      now,
	}
}

func (r *sessionRegistry) expired(e *sessionEntry, now time.Time) bool {
	return r.ttl > 0 && now.Sub(e.lastAccessedAt) >= r.ttl
}

// add stores s, evicting the least recently used session when full.
func (r *sessionRegistry) add(s *palette.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max > 0 && len(r.sessions) >= r.max {
		var oldestID string
		var oldest time.Time
		for id, e := range r.sessions {
			if oldestID == "" || e.lastAccessedAt.Before(oldest) {
				oldestID, oldest = id, e.lastAccessedAt
			}
		}
		delete(r.sessions, oldestID)
		logging.Debug().Str("session_id", oldestID).Msg("Evicted least recently used session")
	}

	r.sessions[s.ID] = &sessionEntry{session: s, lastAccessedAt: r.now()}
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
}

// get returns the session and extends its idle TTL.
func (r *sessionRegistry) get(id string) (*palette.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := r.now()
	if r.expired(e, now) {
		delete(r.sessions, id)
		metrics.ActiveSessions.Set(float64(len(r.sessions)))
		return nil, ErrSessionExpired
	}
	e.lastAccessedAt = now
	return e.session, nil
}

func (r *sessionRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
}

// cleanupExpired removes all expired sessions.
func (r *sessionRegistry) cleanupExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	count := 0
	for id, e := range r.sessions {
		if r.expired(e, now) {
			delete(r.sessions, id)
			count++
		}
	}
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return count
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// NewSession creates a session with one color table per color column. When
// seeding is enabled each table is pre-assigned the dataset's distinct values
// in sorted order, so a value keeps its color across sessions. A failed seed
// leaves that table empty rather than failing the session.
func (e *Explorer) NewSession(ctx context.Context) (*palette.Session, error) {
	s := palette.NewSession(uuid.NewString(), e.columns, e.palette, e.nullColor)
	e.seedSession(ctx, s)
	e.sessions.add(s)

	logging.Ctx(ctx).Debug().Str("session_id", s.ID).Msg("Session created")
	return s, nil
}

func (e *Explorer) seedSession(ctx context.Context, s *palette.Session) {
	if !e.seed {
		return
	}
	for _, column := range e.columns {
		values, err := e.Options(ctx, column, query.FilterSet{})
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("column", column).Msg("Failed to seed session colors")
			continue
		}
		s.Seed(column, values)
	}
}

// Session returns a live session and refreshes its idle timer.
func (e *Explorer) Session(id string) (*palette.Session, error) {
	return e.sessions.get(id)
}

// PruneSessions drops every session idle longer than the TTL and returns how
// many were removed. The server runs it periodically.
func (e *Explorer) PruneSessions() int {
	n := e.sessions.cleanupExpired()
	if n > 0 {
		logging.Debug().Int("removed", n).Int("remaining", e.sessions.len()).Msg("Pruned expired sessions")
	}
	return n
}

// CloseSession forgets a session.
func (e *Explorer) CloseSession(id string) {
	e.sessions.remove(id)
}

// SessionCount returns the number of tracked sessions, expired ones included
// until they are pruned.
func (e *Explorer) SessionCount() int {
	return e.sessions.len()
}

// ResetSession clears every color table of a session and seeds it again.
func (e *Explorer) ResetSession(ctx context.Context, id string) (*palette.Session, error) {
	s, err := e.sessions.get(id)
	if err != nil {
		return nil, err
	}
	s.Reset()
	e.seedSession(ctx, s)
	return s, nil
}

// ColorFor returns the color of value in column for a session.
func (e *Explorer) ColorFor(id, column, value string) (palette.RGBA, error) {
	s, err := e.sessions.get(id)
	if err != nil {
		return palette.RGBA{}, err
	}
	return s.ColorFor(column, value)
}

// Legend returns value -> hex for the column values present in records, in
// first-seen order.
func (e *Explorer) Legend(id, column string, records []models.Record) ([]palette.LegendEntry, error) {
	s, err := e.sessions.get(id)
	if err != nil {
		return nil, err
	}
	a, err := s.Assigner(column)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(records))
	for i := range records {
		values[i] = records[i].Category(column)
	}
	return a.Legend(values), nil
}

// Colors returns one color per record for the renderer. An empty column
// paints every record with the default point color.
func (e *Explorer) Colors(id, column string, records []models.Record, alpha float64) ([]palette.RGBA, error) {
	out := make([]palette.RGBA, len(records))
	if column == "" {
		c := e.pointColor.WithAlpha(alpha)
		for i := range out {
			out[i] = c
		}
		return out, nil
	}

	s, err := e.sessions.get(id)
	if err != nil {
		return nil, err
	}
	a, err := s.Assigner(column)
	if err != nil {
		return nil, err
	}
	for i := range records {
		out[i] = a.ColorFor(records[i].Category(column)).WithAlpha(alpha)
	}
	return out, nil
}

package sla

import (
	"context"
	"sync"
	"time"

	"github.com/AmitRK9819/pulsegov/internal/apperr"
	"github.com/AmitRK9819/pulsegov/internal/models"
)

type MockStore struct {
	GetComplaintFunc         func(ctx context.Context, id int64) (models.Complaint, error)
	GetOfficerFunc           func(ctx context.Context, id int64) (models.Officer, error)
	GetSLARuleFunc           func(ctx context.Context, categoryID int64) (models.SLARule, error)
	SetSLATrackingFunc       func(ctx context.Context, complaintID int64, deadline time.Time, predicted bool, probability float64) (bool, error)
	ListOpenWithDeadlineFunc func(ctx context.Context) ([]models.SLACandidate, error)
	TopRatedOfficerFunc      func(ctx context.Context, departmentID int64) (models.Officer, error)
	RecordEscalationFunc     func(ctx context.Context, e models.Escalation) (bool, error)
	MarkBreachedFunc         func(ctx context.Context, complaintID int64, notes string) (bool, error)
	PendingNoticesFunc       func(ctx context.Context) ([]models.Notice, error)
	MarkNotifiedFunc         func(ctx context.Context, n models.Notice) error
}

func (m *MockStore) GetComplaint(ctx context.Context, id int64) (models.Complaint, error) {
	if m.GetComplaintFunc == nil {
		return models.Complaint{}, apperr.NotFound("complaint %d", id)
	}
	return m.GetComplaintFunc(ctx, id)
}

func (m *MockStore) GetOfficer(ctx context.Context, id int64) (models.Officer, error) {
	if m.GetOfficerFunc == nil {
		return models.Officer{}, apperr.NotFound("officer %d", id)
	}
	return m.GetOfficerFunc(ctx, id)
}

func (m *MockStore) GetSLARule(ctx context.Context, categoryID int64) (models.SLARule, error) {
	if m.GetSLARuleFunc == nil {
		return models.SLARule{}, apperr.NotFound("sla rule %d", categoryID)
	}
	return m.GetSLARuleFunc(ctx, categoryID)
}

func (m *MockStore) SetSLATracking(ctx context.Context, complaintID int64, deadline time.Time, predicted bool, probability float64) (bool, error) {
	return m.SetSLATrackingFunc(ctx, complaintID, deadline, predicted, probability)
}

func (m *MockStore) ListOpenWithDeadline(ctx context.Context) ([]models.SLACandidate, error) {
	return m.ListOpenWithDeadlineFunc(ctx)
}

func (m *MockStore) TopRatedOfficer(ctx context.Context, departmentID int64) (models.Officer, error) {
	if m.TopRatedOfficerFunc == nil {
		return models.Officer{}, apperr.NotFound("department %d", departmentID)
	}
	return m.TopRatedOfficerFunc(ctx, departmentID)
}

func (m *MockStore) RecordEscalation(ctx context.Context, e models.Escalation) (bool, error) {
	return m.RecordEscalationFunc(ctx, e)
}

func (m *MockStore) MarkBreached(ctx context.Context, complaintID int64, notes string) (bool, error) {
	return m.MarkBreachedFunc(ctx, complaintID, notes)
}

func (m *MockStore) PendingNotices(ctx context.Context) ([]models.Notice, error) {
	if m.PendingNoticesFunc == nil {
		return nil, nil
	}
	return m.PendingNoticesFunc(ctx)
}

func (m *MockStore) MarkNotified(ctx context.Context, n models.Notice) error {
	if m.MarkNotifiedFunc == nil {
		return nil
	}
	return m.MarkNotifiedFunc(ctx, n)
}

type MockIndex struct {
	mu      sync.Mutex
	tracked map[int64]time.Time
}

func (m *MockIndex) TrackDeadline(ctx context.Context, complaintID int64, deadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tracked == nil {
		m.tracked = map[int64]time.Time{}
	}
	m.tracked[complaintID] = deadline
	return nil
}

func (m *MockIndex) Untrack(ctx context.Context, complaintID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tracked, complaintID)
	return nil
}

type published struct {
	Subject string
	Payload any
}

type MockPublisher struct {
	mu   sync.Mutex
	Err  error
	Sent []published
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, published{Subject: subject, Payload: payload})
	return nil
}

func (m *MockPublisher) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Sent))
	for _, p := range m.Sent {
		out = append(out, p.Subject)
	}
	return out
}

type MockLocker struct {
	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	return m.TryLockFunc(ctx, key, ttl)
}

// escalationTable mimics the UNIQUE (complaint_id, level) key and the
// notified_at marker.
type escalationTable struct {
	mu       sync.Mutex
	rows     map[[2]int64]models.Escalation
	notified map[[2]int64]bool
}

func (e *escalationTable) insert(ctx context.Context, esc models.Escalation) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rows == nil {
		e.rows = map[[2]int64]models.Escalation{}
	}
	key := [2]int64{esc.ComplaintID, int64(esc.Level)}
	if _, ok := e.rows[key]; ok {
		return false, nil
	}
	e.rows[key] = esc
	return true, nil
}

func (e *escalationTable) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rows)
}

func (e *escalationTable) levels(complaintID int64) map[int]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := map[int]bool{}
	for key := range e.rows {
		if key[0] == complaintID {
			out[int(key[1])] = true
		}
	}
	return out
}

func (e *escalationTable) pending(ctx context.Context) ([]models.Notice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.Notice
	for key, esc := range e.rows {
		if !e.notified[key] {
			out = append(out, models.Notice{ComplaintID: esc.ComplaintID, Level: esc.Level, ToOfficerID: esc.ToOfficerID})
		}
	}
	return out, nil
}

func (e *escalationTable) markNotified(ctx context.Context, n models.Notice) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.notified == nil {
		e.notified = map[[2]int64]bool{}
	}
	e.notified[[2]int64{n.ComplaintID, int64(n.Level)}] = true
	return nil
}

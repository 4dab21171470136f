package routing

import (
	"context"
	"sync"

	"github.com/AmitRK9819/pulsegov/internal/apperr"
	"github.com/AmitRK9819/pulsegov/internal/db"
	"github.com/AmitRK9819/pulsegov/internal/models"
)

type MockStore struct {
	GetComplaintFunc          func(ctx context.Context, id int64) (models.Complaint, error)
	GetOfficerFunc            func(ctx context.Context, id int64) (models.Officer, error)
	ListCandidateOfficersFunc func(ctx context.Context, departmentID int64, limit int) ([]models.Officer, error)
	AssignComplaintFunc       func(ctx context.Context, a db.Assignment) (bool, error)
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

func (m *MockStore) ListCandidateOfficers(ctx context.Context, departmentID int64, limit int) ([]models.Officer, error) {
	return m.ListCandidateOfficersFunc(ctx, departmentID, limit)
}

func (m *MockStore) AssignComplaint(ctx context.Context, a db.Assignment) (bool, error) {
	return m.AssignComplaintFunc(ctx, a)
}

type published struct {
	Subject string
	Payload any
}

type MockPublisher struct {
	mu   sync.Mutex
	Sent []published
	Err  error
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

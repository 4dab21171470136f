package handlers

import (
	"context"
	"time"

	"github.com/AmitRK9819/pulsegov/internal/cache"
	"github.com/AmitRK9819/pulsegov/internal/graph"
	"github.com/AmitRK9819/pulsegov/internal/intelligence"
	"github.com/AmitRK9819/pulsegov/internal/sla"
)

type MockSLA struct {
	StatusFunc func(ctx context.Context, complaintID int64) (sla.StatusReport, error)
}

func (m *MockSLA) Status(ctx context.Context, complaintID int64) (sla.StatusReport, error) {
	return m.StatusFunc(ctx, complaintID)
}

type MockSweeper struct {
	RunFunc func(ctx context.Context) (sla.SweepReport, error)
}

func (m *MockSweeper) Run(ctx context.Context) (sla.SweepReport, error) {
	return m.RunFunc(ctx)
}

type MockDeadlines struct {
	DueBeforeFunc func(ctx context.Context, t time.Time, limit int64) ([]cache.Deadline, error)
}

func (m *MockDeadlines) DueBefore(ctx context.Context, t time.Time, limit int64) ([]cache.Deadline, error) {
	return m.DueBeforeFunc(ctx, t, limit)
}

type MockIntelligence struct {
	SuggestionsFunc func(ctx context.Context, complaintID int64) (intelligence.Suggestion, error)
	NetworkFunc     func(ctx context.Context, categoryID int64) (graph.Network, error)
}

func (m *MockIntelligence) Suggestions(ctx context.Context, complaintID int64) (intelligence.Suggestion, error) {
	return m.SuggestionsFunc(ctx, complaintID)
}

func (m *MockIntelligence) Network(ctx context.Context, categoryID int64) (graph.Network, error) {
	return m.NetworkFunc(ctx, categoryID)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

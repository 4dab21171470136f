// Package routing assigns classified complaints to the best scoring officer
// of their department.
package routing

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/AmitRK9819/pulsegov/internal/bus"
	"github.com/AmitRK9819/pulsegov/internal/db"
	"github.com/AmitRK9819/pulsegov/internal/events"
	"github.com/AmitRK9819/pulsegov/internal/models"
)

type Store interface {
	GetComplaint(ctx context.Context, id int64) (models.Complaint, error)
	GetOfficer(ctx context.Context, id int64) (models.Officer, error)
	ListCandidateOfficers(ctx context.Context, departmentID int64, limit int) ([]models.Officer, error)
	AssignComplaint(ctx context.Context, a db.Assignment) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

const (
	SkipManualReview = "manual_review"
	SkipEmptyPool    = "no_officers_in_department"
	SkipNotPending   = "complaint_not_pending"
)

type Result struct {
	Assigned   bool
	Republish  bool
	Officer    models.Officer
	Score      Score
	SkipReason string
}

type Router struct {
	Store     Store
	Publisher Publisher
	PoolSize  int
	Logger    zerolog.Logger
}

// Handle is the complaint.classified consumer.
func (r *Router) Handle(ctx context.Context, msg bus.Message) error {
	ev, err := events.Decode[events.ClassifiedEvent](msg.Data)
	if err != nil {
		return err
	}
	_, err = r.Assign(ctx, ev)
	return err
}

func (r *Router) Assign(ctx context.Context, ev events.ClassifiedEvent) (Result, error) {
	log := r.Logger.With().Int64("complaint_id", ev.ComplaintID).Logger()
	if ev.NeedsManualReview {
		log.Info().Msg("complaint needs manual review, not routing")
		return Result{SkipReason: SkipManualReview}, nil
	}

	pool, err := r.Store.ListCandidateOfficers(ctx, ev.DepartmentID, r.PoolSize)
	if err != nil {
		return Result{}, err
	}
	pool = filterOfficers(pool, func(o models.Officer) bool {
		return o.Role == models.RoleOfficer && o.DepartmentID == ev.DepartmentID
	})
	if len(pool) == 0 {
		log.Warn().Int64("department_id", ev.DepartmentID).Msg("no officers available, complaint stays pending")
		return Result{SkipReason: SkipEmptyPool}, nil
	}

	best := RankCandidates(pool, ev.CategoryName)[0]
	notes, _ := json.Marshal(map[string]any{
		"score":      best.Score,
		"pool_size":  len(pool),
		"category":   ev.CategoryName,
		"confidence": ev.CategoryConfidence,
	})

	assigned, err := r.Store.AssignComplaint(ctx, db.Assignment{
		ComplaintID:        ev.ComplaintID,
		CategoryID:         ev.CategoryID,
		CategoryConfidence: ev.CategoryConfidence,
		DepartmentID:       ev.DepartmentID,
		OfficerID:          best.Officer.ID,
		Notes:              string(notes),
	})
	if err != nil {
		return Result{}, err
	}
	if !assigned {
		return r.republish(ctx, ev)
	}

	if err := r.publishRouted(ctx, ev, best.Officer); err != nil {
		return Result{}, err
	}
	log.Info().
		Int64("officer_id", best.Officer.ID).
		Float64("score", best.Score.Total).
		Msg("complaint routed")
	return Result{Assigned: true, Officer: best.Officer, Score: best.Score}, nil
}

// republish handles a redelivery after the assignment already committed: the
// routed event may not have gone out, so it is sent again for the officer on
// record. Complaints that moved further along are left alone.
func (r *Router) republish(ctx context.Context, ev events.ClassifiedEvent) (Result, error) {
	c, err := r.Store.GetComplaint(ctx, ev.ComplaintID)
	if err != nil {
		return Result{}, err
	}
	if c.Status != models.StatusAssigned || c.AssignedOfficerID == nil {
		r.Logger.Debug().Int64("complaint_id", c.ID).Str("status", string(c.Status)).Msg("complaint already past routing")
		return Result{SkipReason: SkipNotPending}, nil
	}
	officer, err := r.Store.GetOfficer(ctx, *c.AssignedOfficerID)
	if err != nil {
		return Result{}, err
	}
	if err := r.publishRouted(ctx, ev, officer); err != nil {
		return Result{}, err
	}
	return Result{Republish: true, Officer: officer}, nil
}

func (r *Router) publishRouted(ctx context.Context, ev events.ClassifiedEvent, o models.Officer) error {
	return r.Publisher.Publish(ctx, events.SubjectRouted, events.RoutedEvent{
		ComplaintID:  ev.ComplaintID,
		Code:         ev.Code,
		CategoryID:   ev.CategoryID,
		CategoryName: ev.CategoryName,
		DepartmentID: ev.DepartmentID,
		OfficerID:    o.ID,
		OfficerName:  o.Name,
	})
}

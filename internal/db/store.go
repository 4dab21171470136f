package db

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AmitRK9819/pulsegov/internal/apperr"
	"github.com/AmitRK9819/pulsegov/internal/models"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schemaSQL)
	return err
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Transient("db.begin", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Transient("db.commit", err)
	}
	return nil
}

const complaintColumns = `c.id, c.complaint_id, c.title, c.description, c.category_id, COALESCE(cat.name, ''),
	c.department_id, c.assigned_officer_id, c.status, c.created_at, c.sla_deadline,
	c.sla_breach_predicted, c.sla_breach_probability, c.resolved_at`

func scanComplaint(row pgx.Row, extra ...any) (models.Complaint, error) {
	var c models.Complaint
	dest := []any{
		&c.ID, &c.Code, &c.Title, &c.Description, &c.CategoryID, &c.CategoryName,
		&c.DepartmentID, &c.AssignedOfficerID, &c.Status, &c.CreatedAt, &c.SLADeadline,
		&c.SLABreachPredicted, &c.SLABreachProbability, &c.ResolvedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return c, err
}

func (s *Store) GetComplaint(ctx context.Context, id int64) (models.Complaint, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+complaintColumns+`
		FROM complaints c
		LEFT JOIN categories cat ON cat.id = c.category_id
		WHERE c.id = $1`, id)
	c, err := scanComplaint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Complaint{}, apperr.NotFound("complaint %d", id)
		}
		return models.Complaint{}, apperr.Transient("db.get_complaint", err)
	}
	return c, nil
}

const officerColumns = `id, name, role, COALESCE(department_id, 0), expertise, rating,
	active_complaints_count, avg_resolution_time_hours, total_resolved_count`

func scanOfficer(row pgx.Row) (models.Officer, error) {
	var o models.Officer
	err := row.Scan(&o.ID, &o.Name, &o.Role, &o.DepartmentID, &o.Expertise, &o.Rating,
		&o.ActiveLoad, &o.AvgResolutionHours, &o.TotalResolved)
	return o, err
}

func (s *Store) GetOfficer(ctx context.Context, id int64) (models.Officer, error) {
	o, err := scanOfficer(s.Pool.QueryRow(ctx, `SELECT `+officerColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Officer{}, apperr.NotFound("officer %d", id)
		}
		return models.Officer{}, apperr.Transient("db.get_officer", err)
	}
	return o, nil
}

// ListCandidateOfficers returns the department's officers ordered by
// (active load ASC, rating DESC), capped at limit.
func (s *Store) ListCandidateOfficers(ctx context.Context, departmentID int64, limit int) ([]models.Officer, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+officerColumns+`
		FROM users
		WHERE department_id = $1 AND role = $2
		ORDER BY active_complaints_count ASC, rating DESC, id ASC
		LIMIT $3`, departmentID, models.RoleOfficer, limit)
	if err != nil {
		return nil, apperr.Transient("db.list_candidates", err)
	}
	defer rows.Close()

	var out []models.Officer
	for rows.Next() {
		o, err := scanOfficer(rows)
		if err != nil {
			return nil, apperr.Transient("db.scan_officer", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("db.list_candidates", err)
	}
	return out, nil
}

// TopRatedOfficer is the escalation target: the highest rated officer of the
// department.
func (s *Store) TopRatedOfficer(ctx context.Context, departmentID int64) (models.Officer, error) {
	o, err := scanOfficer(s.Pool.QueryRow(ctx, `SELECT `+officerColumns+`
		FROM users
		WHERE department_id = $1 AND role = $2
		ORDER BY rating DESC, active_complaints_count ASC, id ASC
		LIMIT 1`, departmentID, models.RoleOfficer))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Officer{}, apperr.NotFound("no officer in department %d", departmentID)
		}
		return models.Officer{}, apperr.Transient("db.top_rated_officer", err)
	}
	return o, nil
}

func (s *Store) UpdateOfficerLoad(ctx context.Context, tx pgx.Tx, officerID int64, delta int) error {
	_, err := tx.Exec(ctx, `UPDATE users
		SET active_complaints_count = GREATEST(active_complaints_count + $1, 0), updated_at = NOW()
		WHERE id = $2`, delta, officerID)
	return err
}

func (s *Store) AppendHistory(ctx context.Context, tx pgx.Tx, h models.HistoryEntry) error {
	_, err := tx.Exec(ctx, `INSERT INTO complaint_history (complaint_id, action, performed_by, notes)
		VALUES ($1, $2, $3, $4)`, h.ComplaintID, h.Action, h.PerformedBy, h.Notes)
	return err
}

type Assignment struct {
	ComplaintID        int64
	CategoryID         int64
	CategoryConfidence float64
	DepartmentID       int64
	OfficerID          int64
	Notes              string
}

// AssignComplaint assigns a still-pending complaint and bumps the officer's
// load in one transaction. It reports false when the complaint already left
// the pending state.
func (s *Store) AssignComplaint(ctx context.Context, a Assignment) (bool, error) {
	assigned := false
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE complaints
			SET category_id = $1, category_confidence = $2, department_id = $3,
				assigned_officer_id = $4, status = $5, updated_at = NOW()
			WHERE id = $6 AND status = $7`,
			a.CategoryID, a.CategoryConfidence, a.DepartmentID, a.OfficerID,
			models.StatusAssigned, a.ComplaintID, models.StatusPending)
		if err != nil {
			return apperr.Transient("db.assign", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if err := s.UpdateOfficerLoad(ctx, tx, a.OfficerID, 1); err != nil {
			return apperr.Transient("db.officer_load", err)
		}
		officer := a.OfficerID
		if err := s.AppendHistory(ctx, tx, models.HistoryEntry{
			ComplaintID: a.ComplaintID,
			Action:      "ROUTED",
			PerformedBy: &officer,
			Notes:       a.Notes,
		}); err != nil {
			return apperr.Transient("db.history", err)
		}
		assigned = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return assigned, nil
}

func (s *Store) GetResolution(ctx context.Context, complaintID int64) (models.Resolution, error) {
	var r models.Resolution
	err := s.Pool.QueryRow(ctx, `SELECT complaint_id, resolution_text, time_to_resolve_hours, success_rating, officer_id, created_at
		FROM resolutions WHERE complaint_id = $1`, complaintID).
		Scan(&r.ComplaintID, &r.Text, &r.TimeToResolveHours, &r.SuccessRating, &r.OfficerID, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Resolution{}, apperr.NotFound("resolution for complaint %d", complaintID)
		}
		return models.Resolution{}, apperr.Transient("db.get_resolution", err)
	}
	return r, nil
}

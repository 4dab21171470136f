package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/AmitRK9819/pulsegov/internal/apperr"
	"github.com/AmitRK9819/pulsegov/internal/models"
)

func (s *Store) GetSLARule(ctx context.Context, categoryID int64) (models.SLARule, error) {
	var (
		rule   models.SLARule
		levels []byte
	)
	err := s.Pool.QueryRow(ctx, `SELECT category_id, sla_hours, escalation_levels FROM sla_rules WHERE category_id = $1`, categoryID).
		Scan(&rule.CategoryID, &rule.SLAHours, &levels)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SLARule{}, apperr.NotFound("sla rule for category %d", categoryID)
		}
		return models.SLARule{}, apperr.Transient("db.get_sla_rule", err)
	}
	if rule.EscalationLevels, err = decodeLevels(levels); err != nil {
		return models.SLARule{}, err
	}
	return rule, nil
}

func decodeLevels(raw []byte) ([]models.EscalationLevel, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var levels []models.EscalationLevel
	if err := json.Unmarshal(raw, &levels); err != nil {
		return nil, apperr.Validation("escalation_levels: %v", err)
	}
	return levels, nil
}

// SetSLATracking stores the deadline and routing-time prediction. A deadline
// that is already set is never overwritten; false is returned in that case.
func (s *Store) SetSLATracking(ctx context.Context, complaintID int64, deadline time.Time, predicted bool, probability float64) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `UPDATE complaints
		SET sla_deadline = $1, sla_breach_predicted = $2, sla_breach_probability = $3, updated_at = NOW()
		WHERE id = $4 AND sla_deadline IS NULL`, deadline, predicted, probability, complaintID)
	if err != nil {
		return false, apperr.Transient("db.set_sla", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListOpenWithDeadline returns every non-terminal complaint with a deadline,
// with its category's escalation levels and the levels already recorded.
func (s *Store) ListOpenWithDeadline(ctx context.Context) ([]models.SLACandidate, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+complaintColumns+`,
			COALESCE(r.escalation_levels, '[]'::jsonb),
			COALESCE(array_agg(e.level) FILTER (WHERE e.level IS NOT NULL), '{}')::int[]
		FROM complaints c
		LEFT JOIN categories cat ON cat.id = c.category_id
		LEFT JOIN sla_rules r ON r.category_id = c.category_id
		LEFT JOIN escalations e ON e.complaint_id = c.id
		WHERE c.sla_deadline IS NOT NULL AND c.status NOT IN ($1, $2)
		GROUP BY c.id, cat.name, r.escalation_levels
		ORDER BY c.sla_deadline ASC`, models.StatusResolved, models.StatusClosed)
	if err != nil {
		return nil, apperr.Transient("db.list_open_sla", err)
	}
	defer rows.Close()

	var out []models.SLACandidate
	for rows.Next() {
		var (
			rawLevels []byte
			done      []int32
		)
		c, err := scanComplaint(rows, &rawLevels, &done)
		if err != nil {
			return nil, apperr.Transient("db.scan_open_sla", err)
		}
		levels, err := decodeLevels(rawLevels)
		if err != nil {
			return nil, err
		}
		cand := models.SLACandidate{
			Complaint:        c,
			EscalationLevels: levels,
			EscalatedLevels:  make(map[int]bool, len(done)),
		}
		for _, l := range done {
			cand.EscalatedLevels[int(l)] = true
		}
		out = append(out, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("db.list_open_sla", err)
	}
	return out, nil
}

// RecordEscalation inserts the escalation row and, only when this call wins
// the (complaint, level) key, moves the complaint and its load to the target
// officer. It reports whether the escalation was applied.
func (s *Store) RecordEscalation(ctx context.Context, e models.Escalation) (bool, error) {
	applied := false
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		var (
			prevOfficer *int64
			status      models.Status
		)
		err := tx.QueryRow(ctx, `SELECT assigned_officer_id, status FROM complaints WHERE id = $1 FOR UPDATE`, e.ComplaintID).
			Scan(&prevOfficer, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("complaint %d", e.ComplaintID)
			}
			return apperr.Transient("db.lock_complaint", err)
		}
		if status.Terminal() {
			return nil
		}

		var id int64
		err = tx.QueryRow(ctx, `INSERT INTO escalations (complaint_id, from_officer_id, to_officer_id, level, reason, auto_escalated)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (complaint_id, level) DO NOTHING
			RETURNING id`, e.ComplaintID, prevOfficer, e.ToOfficerID, e.Level, e.Reason, e.AutoEscalated).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return apperr.Transient("db.insert_escalation", err)
		}

		if prevOfficer == nil || *prevOfficer != e.ToOfficerID {
			if prevOfficer != nil {
				if err := s.UpdateOfficerLoad(ctx, tx, *prevOfficer, -1); err != nil {
					return apperr.Transient("db.officer_load", err)
				}
			}
			if err := s.UpdateOfficerLoad(ctx, tx, e.ToOfficerID, 1); err != nil {
				return apperr.Transient("db.officer_load", err)
			}
		}

		// A breached complaint keeps its breach status through later escalations.
		if _, err := tx.Exec(ctx, `UPDATE complaints
			SET assigned_officer_id = $1,
				status = CASE WHEN status = $2 THEN status ELSE $3 END,
				updated_at = NOW()
			WHERE id = $4`, e.ToOfficerID, models.StatusSLABreached, models.StatusEscalated, e.ComplaintID); err != nil {
			return apperr.Transient("db.escalate_complaint", err)
		}

		to := e.ToOfficerID
		if err := s.AppendHistory(ctx, tx, models.HistoryEntry{
			ComplaintID: e.ComplaintID,
			Action:      "ESCALATED",
			PerformedBy: &to,
			Notes:       fmt.Sprintf("level %d: %s", e.Level, e.Reason),
		}); err != nil {
			return apperr.Transient("db.history", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// MarkBreached moves a non-terminal complaint to sla_breached. It reports
// false when the complaint was already breached or is terminal.
func (s *Store) MarkBreached(ctx context.Context, complaintID int64, notes string) (bool, error) {
	marked := false
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE complaints
			SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status NOT IN ($1, $3, $4)`,
			models.StatusSLABreached, complaintID, models.StatusResolved, models.StatusClosed)
		if err != nil {
			return apperr.Transient("db.mark_breached", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if err := s.AppendHistory(ctx, tx, models.HistoryEntry{
			ComplaintID: complaintID,
			Action:      "SLA_BREACHED",
			Notes:       notes,
		}); err != nil {
			return apperr.Transient("db.history", err)
		}
		marked = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return marked, nil
}

// PendingNotices lists escalations and breaches whose event was never
// confirmed as published.
func (s *Store) PendingNotices(ctx context.Context) ([]models.Notice, error) {
	rows, err := s.Pool.Query(ctx, `SELECT e.complaint_id, c.complaint_id, COALESCE(cat.name, ''), FALSE, e.level, e.to_officer_id
		FROM escalations e
		JOIN complaints c ON c.id = e.complaint_id
		LEFT JOIN categories cat ON cat.id = c.category_id
		WHERE e.notified_at IS NULL
		UNION ALL
		SELECT c.id, c.complaint_id, COALESCE(cat.name, ''), TRUE, 0, 0
		FROM complaints c
		LEFT JOIN categories cat ON cat.id = c.category_id
		WHERE c.status = $1 AND c.breach_notified_at IS NULL
		ORDER BY 1, 4, 5`, models.StatusSLABreached)
	if err != nil {
		return nil, apperr.Transient("db.pending_notices", err)
	}
	defer rows.Close()

	var out []models.Notice
	for rows.Next() {
		var n models.Notice
		if err := rows.Scan(&n.ComplaintID, &n.Code, &n.CategoryName, &n.Breach, &n.Level, &n.ToOfficerID); err != nil {
			return nil, apperr.Transient("db.scan_notice", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("db.pending_notices", err)
	}
	return out, nil
}

// MarkNotified records that the notice's event reached the bus.
func (s *Store) MarkNotified(ctx context.Context, n models.Notice) error {
	var err error
	if n.Breach {
		_, err = s.Pool.Exec(ctx, `UPDATE complaints SET breach_notified_at = NOW()
			WHERE id = $1 AND breach_notified_at IS NULL`, n.ComplaintID)
	} else {
		_, err = s.Pool.Exec(ctx, `UPDATE escalations SET notified_at = NOW()
			WHERE complaint_id = $1 AND level = $2 AND notified_at IS NULL`, n.ComplaintID, n.Level)
	}
	return apperr.Transient("db.mark_notified", err)
}

package sla

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/AmitRK9819/pulsegov/internal/apperr"
	"github.com/AmitRK9819/pulsegov/internal/cache"
	"github.com/AmitRK9819/pulsegov/internal/events"
	"github.com/AmitRK9819/pulsegov/internal/models"
)

// ErrSweepInFlight is returned when another sweep, local or on another
// replica, is still running.
var ErrSweepInFlight = errors.New("sla sweep already in flight")

// Locker takes a non-blocking lock shared by every tracker replica.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

type SweepReport struct {
	Checked     int `json:"checked"`
	Escalations int `json:"escalations"`
	Breaches    int `json:"breaches"`
	Redelivered int `json:"redelivered"`
	Failed      int `json:"failed"`
}

const defaultLockTTL = 5 * time.Minute

type Sweeper struct {
	Store     Store
	Index     Index
	Publisher Publisher
	Locker    Locker
	LockTTL   time.Duration
	Now       func() time.Time
	Logger    zerolog.Logger

	running atomic.Bool
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run republishes undelivered notices, then evaluates every open complaint
// with a deadline once. Overlapping calls return ErrSweepInFlight instead of
// queueing. With a Locker the run stops before the shared lock can expire.
func (s *Sweeper) Run(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	if !s.running.CompareAndSwap(false, true) {
		return report, ErrSweepInFlight
	}
	defer s.running.Store(false)

	if s.Locker != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = defaultLockTTL
		}
		unlock, err := s.Locker.TryLock(ctx, cache.SweepLockKey, ttl)
		if err != nil {
			if errors.Is(err, cache.ErrLockHeld) {
				return report, ErrSweepInFlight
			}
			return report, err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.Logger.Warn().Err(err).Msg("sweep lock release failed")
			}
		}()
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ttl-ttl/10)
		defer cancel()
	}

	var errs []error
	report.Redelivered, report.Failed, errs = s.redeliver(ctx)

	candidates, err := s.Store.ListOpenWithDeadline(ctx)
	if err != nil {
		return report, errors.Join(append(errs, err)...)
	}

	now := s.now()
	targets := map[int64]*models.Officer{}
	for _, cand := range candidates {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		report.Checked++
		esc, breached, err := s.evaluate(ctx, cand, now, targets)
		report.Escalations += esc
		if breached {
			report.Breaches++
		}
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("complaint %d: %w", cand.Complaint.ID, err))
		}
	}

	s.Logger.Info().
		Int("checked", report.Checked).
		Int("escalations", report.Escalations).
		Int("breaches", report.Breaches).
		Int("redelivered", report.Redelivered).
		Int("failed", report.Failed).
		Msg("sla sweep finished")
	return report, errors.Join(errs...)
}

func (s *Sweeper) evaluate(ctx context.Context, cand models.SLACandidate, now time.Time, targets map[int64]*models.Officer) (int, bool, error) {
	c := cand.Complaint
	log := s.Logger.With().Int64("complaint_id", c.ID).Logger()
	util := Utilization(c.CreatedAt, c.SLADeadline, c.ResolvedAt, now)

	levels := append([]models.EscalationLevel(nil), cand.EscalationLevels...)
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].AtPercent < levels[j].AtPercent })

	escalations := 0
	for _, lvl := range levels {
		if cand.EscalatedLevels[lvl.Level] || util < lvl.AtPercent {
			continue
		}
		target, err := s.target(ctx, c, targets)
		if err != nil {
			return escalations, false, err
		}
		if target == nil {
			log.Warn().Int("level", lvl.Level).Msg("no escalation target in department")
			break
		}
		applied, err := s.Store.RecordEscalation(ctx, models.Escalation{
			ComplaintID:   c.ID,
			ToOfficerID:   target.ID,
			Level:         lvl.Level,
			Reason:        fmt.Sprintf("SLA %g%% utilized", lvl.AtPercent),
			AutoEscalated: true,
		})
		if err != nil {
			return escalations, false, err
		}
		if !applied {
			continue
		}
		escalations++
		log.Info().Int("level", lvl.Level).Int64("to_officer_id", target.ID).Float64("utilization", util).Msg("complaint escalated")
		if err := s.notify(ctx, models.Notice{
			ComplaintID:  c.ID,
			Code:         c.Code,
			CategoryName: c.CategoryName,
			Level:        lvl.Level,
			ToOfficerID:  target.ID,
		}); err != nil {
			return escalations, false, err
		}
	}

	if util < 100 || c.Status == models.StatusSLABreached {
		return escalations, false, nil
	}
	marked, err := s.Store.MarkBreached(ctx, c.ID, fmt.Sprintf("SLA deadline %s passed", c.SLADeadline.UTC().Format(time.RFC3339)))
	if err != nil {
		return escalations, false, err
	}
	if !marked {
		return escalations, false, nil
	}
	log.Warn().Msg("sla breached")
	if err := s.Index.Untrack(ctx, c.ID); err != nil {
		log.Warn().Err(err).Msg("untrack failed")
	}
	err = s.notify(ctx, models.Notice{
		ComplaintID:  c.ID,
		Code:         c.Code,
		CategoryName: c.CategoryName,
		Breach:       true,
	})
	return escalations, true, err
}

// redeliver republishes notices a previous sweep recorded but failed to
// publish. It returns the delivered and failed counts.
func (s *Sweeper) redeliver(ctx context.Context) (int, int, []error) {
	notices, err := s.Store.PendingNotices(ctx)
	if err != nil {
		return 0, 0, []error{err}
	}
	var (
		delivered, failed int
		errs              []error
	)
	for _, n := range notices {
		if err := s.notify(ctx, n); err != nil {
			failed++
			errs = append(errs, fmt.Errorf("notice for complaint %d: %w", n.ComplaintID, err))
			continue
		}
		delivered++
	}
	if delivered > 0 {
		s.Logger.Info().Int("count", delivered).Msg("undelivered sla events republished")
	}
	return delivered, failed, errs
}

// notify publishes the notice's event and marks it delivered. A failure
// leaves the notice pending for the next sweep.
func (s *Sweeper) notify(ctx context.Context, n models.Notice) error {
	var err error
	if n.Breach {
		err = s.Publisher.Publish(ctx, events.SubjectSLABreach, events.SLAEvent{
			ComplaintID:  n.ComplaintID,
			Code:         n.Code,
			CategoryName: n.CategoryName,
		})
	} else {
		err = s.Publisher.Publish(ctx, events.SubjectEscalated, events.EscalatedEvent{
			ComplaintID: n.ComplaintID,
			Code:        n.Code,
			Level:       n.Level,
			ToOfficerID: n.ToOfficerID,
		})
	}
	if err != nil {
		return err
	}
	return s.Store.MarkNotified(ctx, n)
}

// target returns the department's escalation officer, memoized per sweep.
// A nil officer means the department has none.
func (s *Sweeper) target(ctx context.Context, c models.Complaint, memo map[int64]*models.Officer) (*models.Officer, error) {
	if c.DepartmentID == nil {
		return nil, nil
	}
	dept := *c.DepartmentID
	if o, ok := memo[dept]; ok {
		return o, nil
	}
	o, err := s.Store.TopRatedOfficer(ctx, dept)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			memo[dept] = nil
			return nil, nil
		}
		return nil, err
	}
	memo[dept] = &o
	return &o, nil
}

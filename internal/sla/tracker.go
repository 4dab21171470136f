package sla

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/AmitRK9819/pulsegov/internal/apperr"
	"github.com/AmitRK9819/pulsegov/internal/bus"
	"github.com/AmitRK9819/pulsegov/internal/events"
	"github.com/AmitRK9819/pulsegov/internal/models"
)

type Store interface {
	GetComplaint(ctx context.Context, id int64) (models.Complaint, error)
	GetOfficer(ctx context.Context, id int64) (models.Officer, error)
	GetSLARule(ctx context.Context, categoryID int64) (models.SLARule, error)
	SetSLATracking(ctx context.Context, complaintID int64, deadline time.Time, predicted bool, probability float64) (bool, error)
	ListOpenWithDeadline(ctx context.Context) ([]models.SLACandidate, error)
	TopRatedOfficer(ctx context.Context, departmentID int64) (models.Officer, error)
	RecordEscalation(ctx context.Context, e models.Escalation) (bool, error)
	MarkBreached(ctx context.Context, complaintID int64, notes string) (bool, error)
	PendingNotices(ctx context.Context) ([]models.Notice, error)
	MarkNotified(ctx context.Context, n models.Notice) error
}

// Index keeps the set of actively tracked deadlines.
type Index interface {
	TrackDeadline(ctx context.Context, complaintID int64, deadline time.Time) error
	Untrack(ctx context.Context, complaintID int64) error
}

type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

type Tracker struct {
	Store        Store
	Index        Index
	Publisher    Publisher
	DefaultHours int
	Now          func() time.Time
	Logger       zerolog.Logger
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// HandleRouted is the complaint.routed consumer: it opens SLA tracking once
// per complaint.
func (t *Tracker) HandleRouted(ctx context.Context, msg bus.Message) error {
	ev, err := events.Decode[events.RoutedEvent](msg.Data)
	if err != nil {
		return err
	}
	return t.Open(ctx, ev)
}

func (t *Tracker) Open(ctx context.Context, ev events.RoutedEvent) error {
	log := t.Logger.With().Int64("complaint_id", ev.ComplaintID).Logger()

	c, err := t.Store.GetComplaint(ctx, ev.ComplaintID)
	if err != nil {
		return err
	}
	if c.Status.Terminal() {
		log.Debug().Str("status", string(c.Status)).Msg("complaint closed before tracking")
		return nil
	}
	if c.SLADeadline != nil {
		// Redelivery: the deadline stays as first set.
		if err := t.Index.TrackDeadline(ctx, c.ID, *c.SLADeadline); err != nil {
			return err
		}
		if c.SLABreachPredicted {
			return t.warn(ctx, c)
		}
		return nil
	}

	categoryID := ev.CategoryID
	if c.CategoryID != nil {
		categoryID = *c.CategoryID
	}
	hours := 0
	if categoryID > 0 {
		rule, err := t.Store.GetSLARule(ctx, categoryID)
		switch {
		case err == nil:
			hours = rule.SLAHours
		case apperr.KindOf(err) != apperr.KindNotFound:
			return err
		}
	}
	deadline := Deadline(c.CreatedAt, hours, t.DefaultHours)

	officer, err := t.Store.GetOfficer(ctx, ev.OfficerID)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindNotFound {
			return err
		}
		log.Warn().Int64("officer_id", ev.OfficerID).Msg("routed officer not found, predicting without history")
	}

	pred := PredictBreach(officer.AvgResolutionHours, officer.ActiveLoad, HoursUntil(deadline, t.now()), c.Status)

	set, err := t.Store.SetSLATracking(ctx, c.ID, deadline, pred.WillBreach, pred.Probability)
	if err != nil {
		return err
	}
	if !set {
		log.Debug().Msg("sla deadline already set")
		return nil
	}
	if err := t.Index.TrackDeadline(ctx, c.ID, deadline); err != nil {
		return err
	}
	log.Info().
		Time("sla_deadline", deadline).
		Float64("breach_probability", pred.Probability).
		Bool("breach_predicted", pred.WillBreach).
		Msg("sla tracking started")

	if pred.WillBreach {
		if c.CategoryName == "" {
			c.CategoryName = ev.CategoryName
		}
		return t.warn(ctx, c)
	}
	return nil
}

// HandleResolved is the complaint.resolved consumer: a resolved complaint
// leaves the active deadline index.
func (t *Tracker) HandleResolved(ctx context.Context, msg bus.Message) error {
	ev, err := events.Decode[events.ResolvedEvent](msg.Data)
	if err != nil {
		return err
	}
	if err := t.Index.Untrack(ctx, ev.ComplaintID); err != nil {
		return err
	}
	t.Logger.Debug().Int64("complaint_id", ev.ComplaintID).Msg("sla tracking closed")
	return nil
}

func (t *Tracker) warn(ctx context.Context, c models.Complaint) error {
	return t.Publisher.Publish(ctx, events.SubjectSLAWarning, events.SLAEvent{
		ComplaintID:  c.ID,
		Code:         c.Code,
		CategoryName: c.CategoryName,
	})
}

type StatusReport struct {
	ComplaintID      int64      `json:"complaint_id"`
	Status           string     `json:"status,omitempty"`
	SLADeadline      *time.Time `json:"sla_deadline,omitempty"`
	SLAUtilization   float64    `json:"sla_utilization"`
	BreachPrediction Prediction `json:"breach_prediction"`
}

// Status recomputes utilization and breach prediction for one complaint. An
// unknown complaint or one without a deadline yields the zero report.
func (t *Tracker) Status(ctx context.Context, complaintID int64) (StatusReport, error) {
	report := StatusReport{ComplaintID: complaintID}
	c, err := t.Store.GetComplaint(ctx, complaintID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return report, nil
		}
		return report, err
	}
	report.Status = string(c.Status)
	report.SLADeadline = c.SLADeadline
	if c.SLADeadline == nil {
		return report, nil
	}

	now := t.now()
	report.SLAUtilization = Utilization(c.CreatedAt, c.SLADeadline, c.ResolvedAt, now)

	var officer models.Officer
	if c.AssignedOfficerID != nil {
		officer, err = t.Store.GetOfficer(ctx, *c.AssignedOfficerID)
		if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
			return report, err
		}
	}
	report.BreachPrediction = PredictBreach(officer.AvgResolutionHours, officer.ActiveLoad, HoursUntil(*c.SLADeadline, now), c.Status)
	return report, nil
}

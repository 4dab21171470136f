// Package sla tracks complaint deadlines, predicts breaches and escalates
// complaints as their SLA window is used up.
package sla

import (
	"math"
	"time"

	"github.com/AmitRK9819/pulsegov/internal/models"
)

const (
	DefaultSLAHours = 48

	maxBreachProbability = 0.95
	breachThreshold      = 0.6
	unknownAvgHours      = 48.0
)

type Prediction struct {
	WillBreach  bool    `json:"will_breach"`
	Probability float64 `json:"probability"`
	Risk        int     `json:"-"`
}

// Deadline is created_at plus the category's SLA hours, or defaultHours when
// the category has no rule.
func Deadline(createdAt time.Time, slaHours, defaultHours int) time.Time {
	if slaHours <= 0 {
		slaHours = defaultHours
	}
	if slaHours <= 0 {
		slaHours = DefaultSLAHours
	}
	return createdAt.Add(time.Duration(slaHours) * time.Hour)
}

// PredictBreach scores breach risk from the officer's track record and load,
// the hours left and the complaint status. Within each factor only the
// highest matching branch counts.
func PredictBreach(avgResolutionHours float64, activeLoad int, remainingHours float64, status models.Status) Prediction {
	avg := avgResolutionHours
	if avg <= 0 {
		avg = unknownAvgHours
	}

	risk := 0
	switch {
	case avg > remainingHours:
		risk += 40
	case avg > 0.8*remainingHours:
		risk += 20
	}
	switch {
	case activeLoad > 10:
		risk += 30
	case activeLoad > 5:
		risk += 15
	}
	switch {
	case remainingHours < 12:
		risk += 20
	case remainingHours < 24:
		risk += 10
	}
	if status == models.StatusPending || status == models.StatusAssigned {
		risk += 10
	}

	p := math.Min(float64(risk)/100, maxBreachProbability)
	return Prediction{WillBreach: p > breachThreshold, Probability: p, Risk: risk}
}

// Utilization is the share of the SLA window used, in percent, capped at 100.
// It is measured up to resolvedAt once set, so resolved complaints freeze.
// A complaint without a deadline reports 0; an empty window reports 100.
func Utilization(createdAt time.Time, deadline, resolvedAt *time.Time, now time.Time) float64 {
	if deadline == nil {
		return 0
	}
	total := deadline.Sub(createdAt)
	if total <= 0 {
		return 100
	}
	end := now
	if resolvedAt != nil {
		end = *resolvedAt
	}
	elapsed := end.Sub(createdAt)
	if elapsed <= 0 {
		return 0
	}
	return math.Min(float64(elapsed)/float64(total)*100, 100)
}

// HoursUntil is the signed number of hours from now to t.
func HoursUntil(t, now time.Time) float64 {
	return t.Sub(now).Hours()
}

package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AmitRK9819/pulsegov/internal/models"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestDeadlineDefaultsTo48Hours(t *testing.T) {
	assert.Equal(t, t0.Add(48*time.Hour), Deadline(t0, 0, 48))
	assert.Equal(t, t0.Add(48*time.Hour), Deadline(t0, 0, 0))
	assert.Equal(t, t0.Add(24*time.Hour), Deadline(t0, 24, 48))
}

func TestPredictBreachScenario(t *testing.T) {
	p := PredictBreach(60, 12, 48, models.StatusAssigned)
	assert.Equal(t, 80, p.Risk)
	assert.InDelta(t, 0.80, p.Probability, 1e-9)
	assert.True(t, p.WillBreach)
}

func TestPredictBreachBranchesAreExclusive(t *testing.T) {
	// Each factor counts only its highest branch.
	p := PredictBreach(45, 6, 20, models.StatusInProgress)
	assert.Equal(t, 40+15+10, p.Risk)

	p = PredictBreach(45, 6, 50, models.StatusInProgress)
	assert.Equal(t, 20+15, p.Risk)
	assert.False(t, p.WillBreach)
}

func TestPredictBreachCapsProbability(t *testing.T) {
	p := PredictBreach(100, 50, 2, models.StatusPending)
	assert.Equal(t, 100, p.Risk)
	assert.Equal(t, 0.95, p.Probability)
}

func TestPredictBreachUnknownAverage(t *testing.T) {
	// An officer without history counts as 48h, which exceeds 40h remaining.
	p := PredictBreach(0, 0, 40, models.StatusInProgress)
	assert.Equal(t, 40, p.Risk)
}

func TestPredictBreachThresholdIsStrict(t *testing.T) {
	p := PredictBreach(60, 6, 48, models.StatusInProgress)
	assert.Equal(t, 55, p.Risk)
	assert.False(t, p.WillBreach)

	p = PredictBreach(60, 12, 30, models.StatusInProgress)
	assert.Equal(t, 70, p.Risk)
	assert.True(t, p.WillBreach)
}

func TestUtilizationIsMonotonicAndCapped(t *testing.T) {
	deadline := t0.Add(10 * time.Hour)
	prev := -1.0
	for h := 0; h <= 15; h++ {
		u := Utilization(t0, &deadline, nil, t0.Add(time.Duration(h)*time.Hour))
		assert.GreaterOrEqual(t, u, prev)
		assert.LessOrEqual(t, u, 100.0)
		prev = u
	}
	assert.InDelta(t, 50.0, Utilization(t0, &deadline, nil, t0.Add(5*time.Hour)), 1e-9)
	assert.Equal(t, 100.0, Utilization(t0, &deadline, nil, t0.Add(12*time.Hour)))
}

func TestUtilizationFreezesAtResolution(t *testing.T) {
	deadline := t0.Add(10 * time.Hour)
	resolved := t0.Add(3 * time.Hour)
	early := Utilization(t0, &deadline, &resolved, t0.Add(4*time.Hour))
	late := Utilization(t0, &deadline, &resolved, t0.Add(400*time.Hour))
	assert.InDelta(t, 30.0, early, 1e-9)
	assert.Equal(t, early, late)
}

func TestUtilizationEdgeCases(t *testing.T) {
	assert.Zero(t, Utilization(t0, nil, nil, t0.Add(time.Hour)))

	empty := t0
	assert.Equal(t, 100.0, Utilization(t0, &empty, nil, t0))

	deadline := t0.Add(time.Hour)
	assert.Zero(t, Utilization(t0, &deadline, nil, t0.Add(-time.Minute)))
}

package bus

import (
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/AmitRK9819/pulsegov/internal/apperr"
)

// Outcome is a handler's verdict for one message.
type Outcome int

const (
	Ack Outcome = iota
	Retry
	Drop
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Retry:
		return "retry"
	default:
		return "drop"
	}
}

// OutcomeOf maps a handler error onto a delivery verdict. Conflicts are
// already-applied work and count as success.
func OutcomeOf(err error) Outcome {
	switch apperr.KindOf(err) {
	case apperr.KindNone, apperr.KindConflict:
		return Ack
	case apperr.KindValidation, apperr.KindNotFound:
		return Drop
	default:
		return Retry
	}
}

// RetryDelay is the redelivery delay after the given delivery attempt,
// growing exponentially from initial and capped at max.
func RetryDelay(attempt int, initial, max time.Duration) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()

	d := initial
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	if d > max {
		d = max
	}
	return d
}

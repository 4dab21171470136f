package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/AmitRK9819/pulsegov/internal/apperr"
)

func newTestConsumer(h Handler, dlq deadLetterer) *Consumer {
	cfg := ConsumerConfig{
		Durable:        "test",
		Subject:        "complaint.classified",
		MaxDeliver:     3,
		BackoffInitial: time.Second,
		BackoffMax:     10 * time.Second,
	}
	cfg.applyDefaults()
	return &Consumer{
		cfg:    cfg,
		handle: h,
		dlq:    dlq,
		tracer: otel.Tracer("test"),
		logger: zerolog.Nop(),
	}
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, Ack, OutcomeOf(nil))
	assert.Equal(t, Ack, OutcomeOf(apperr.Conflict("already routed")))
	assert.Equal(t, Drop, OutcomeOf(apperr.Validation("bad json")))
	assert.Equal(t, Drop, OutcomeOf(apperr.NotFound("complaint 1")))
	assert.Equal(t, Retry, OutcomeOf(apperr.Transient("db", errors.New("down"))))
	assert.Equal(t, Retry, OutcomeOf(errors.New("unclassified")))
}

func TestRetryDelayBounded(t *testing.T) {
	initial, max := time.Second, 10*time.Second
	assert.Equal(t, time.Second, RetryDelay(1, initial, max))
	assert.Equal(t, 2*time.Second, RetryDelay(2, initial, max))
	assert.Equal(t, 4*time.Second, RetryDelay(3, initial, max))
	assert.Equal(t, max, RetryDelay(10, initial, max))
}

func TestProcessAcksSuccess(t *testing.T) {
	var got Message
	c := newTestConsumer(func(ctx context.Context, msg Message) error {
		got = msg
		return nil
	}, &MockDeadLetterer{})
	d := &fakeDelivery{subj: "complaint.classified", payload: []byte(`{}`), delivered: 1}

	c.process(context.Background(), d)

	assert.True(t, d.acked)
	assert.Nil(t, d.nakWith)
	assert.Equal(t, "complaint.classified", got.Subject)
	assert.Equal(t, 1, got.Delivered)
}

func TestProcessDropsValidationFailure(t *testing.T) {
	c := newTestConsumer(func(ctx context.Context, msg Message) error {
		return apperr.Validation("missing complaintId")
	}, &MockDeadLetterer{})
	d := &fakeDelivery{subj: "complaint.classified", delivered: 1}

	c.process(context.Background(), d)

	assert.True(t, d.acked)
	assert.False(t, d.termed)
}

func TestProcessNaksTransientWithBackoff(t *testing.T) {
	c := newTestConsumer(func(ctx context.Context, msg Message) error {
		return apperr.Transient("db.assign", errors.New("timeout"))
	}, &MockDeadLetterer{})
	d := &fakeDelivery{subj: "complaint.classified", delivered: 2}

	c.process(context.Background(), d)

	require.NotNil(t, d.nakWith)
	assert.Equal(t, 2*time.Second, *d.nakWith)
	assert.False(t, d.acked)
}

func TestProcessDeadLettersAfterMaxDeliver(t *testing.T) {
	var dlSubject, dlReason string
	dlq := &MockDeadLetterer{DeadLetterFunc: func(ctx context.Context, subject string, data []byte, reason string) error {
		dlSubject, dlReason = subject, reason
		return nil
	}}
	c := newTestConsumer(func(ctx context.Context, msg Message) error {
		return apperr.Transient("graph.merge", errors.New("unavailable"))
	}, dlq)
	d := &fakeDelivery{subj: "complaint.resolved", payload: []byte(`{"complaintId":1}`), delivered: 3}

	c.process(context.Background(), d)

	assert.True(t, d.termed)
	assert.Nil(t, d.nakWith)
	assert.Equal(t, "complaint.resolved", dlSubject)
	assert.Contains(t, dlReason, "unavailable")
}

func TestProcessRecoversPanic(t *testing.T) {
	c := newTestConsumer(func(ctx context.Context, msg Message) error {
		panic("boom")
	}, &MockDeadLetterer{})
	d := &fakeDelivery{subj: "complaint.routed", delivered: 1}

	c.process(context.Background(), d)

	require.NotNil(t, d.nakWith)
}

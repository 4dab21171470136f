package bus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Message is one delivery handed to a Handler.
type Message struct {
	Subject   string
	Data      []byte
	Delivered int
}

// Handler holds business logic only. The returned error decides the
// delivery verdict through OutcomeOf.
type Handler func(ctx context.Context, msg Message) error

type ConsumerConfig struct {
	Durable        string
	Subject        string
	Concurrency    int
	MaxDeliver     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	HandlerTimeout time.Duration
	FetchWait      time.Duration
}

func (c *ConsumerConfig) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = 5
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = time.Second
	}
	if c.BackoffMax < c.BackoffInitial {
		c.BackoffMax = c.BackoffInitial
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 30 * time.Second
	}
	if c.FetchWait <= 0 {
		c.FetchWait = 2 * time.Second
	}
}

// delivery is the acknowledgement surface of a fetched message.
type delivery interface {
	subject() string
	data() []byte
	header(key string) string
	numDelivered() int
	ack() error
	nak(delay time.Duration) error
	term() error
}

type natsDelivery struct{ msg *nats.Msg }

func (d natsDelivery) subject() string          { return d.msg.Subject }
func (d natsDelivery) data() []byte             { return d.msg.Data }
func (d natsDelivery) header(key string) string { return d.msg.Header.Get(key) }
func (d natsDelivery) ack() error               { return d.msg.Ack() }
func (d natsDelivery) term() error              { return d.msg.Term() }

func (d natsDelivery) nak(delay time.Duration) error {
	return d.msg.NakWithDelay(delay)
}

func (d natsDelivery) numDelivered() int {
	meta, err := d.msg.Metadata()
	if err != nil {
		return 1
	}
	return int(meta.NumDelivered)
}

type deadLetterer interface {
	DeadLetter(ctx context.Context, subject string, data []byte, reason string) error
}

// Consumer runs a durable pull subscription and dispatches each message to
// its handler with bounded concurrency.
type Consumer struct {
	client *Client
	cfg    ConsumerConfig
	handle Handler
	dlq    deadLetterer
	tracer trace.Tracer
	logger zerolog.Logger
}

func NewConsumer(client *Client, cfg ConsumerConfig, handle Handler, logger zerolog.Logger) *Consumer {
	cfg.applyDefaults()
	return &Consumer{
		client: client,
		cfg:    cfg,
		handle: handle,
		dlq:    client,
		tracer: otel.Tracer("github.com/AmitRK9819/pulsegov/internal/bus"),
		logger: logger.With().Str("consumer", cfg.Durable).Str("subject", cfg.Subject).Logger(),
	}
}

// Run fetches and processes messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	ackWait := c.cfg.HandlerTimeout + c.cfg.BackoffMax
	sub, err := c.client.pullSubscribe(c.cfg.Subject, c.cfg.Durable, c.cfg.MaxDeliver, ackWait)
	if err != nil {
		return err
	}
	c.logger.Info().Int("concurrency", c.cfg.Concurrency).Msg("consumer started")

	for {
		if ctx.Err() != nil {
			c.logger.Info().Msg("consumer stopped")
			return nil
		}
		msgs, err := sub.Fetch(c.cfg.Concurrency, nats.MaxWait(c.cfg.FetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				return fmt.Errorf("fetch %s: %w", c.cfg.Subject, err)
			}
			c.logger.Warn().Err(err).Msg("fetch failed")
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.BackoffInitial):
			}
			continue
		}

		g := new(errgroup.Group)
		g.SetLimit(c.cfg.Concurrency)
		for _, m := range msgs {
			d := natsDelivery{msg: m}
			g.Go(func() error {
				c.process(ctx, d)
				return nil
			})
		}
		_ = g.Wait()
	}
}

func (c *Consumer) process(ctx context.Context, d delivery) {
	parent := otel.GetTextMapPropagator().Extract(ctx, headerCarrier{d})
	ctx, span := c.tracer.Start(parent, "consume "+d.subject(),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", d.subject()),
			attribute.String("messaging.consumer.group.name", c.cfg.Durable),
		),
	)
	defer span.End()

	attempt := d.numDelivered()
	msg := Message{Subject: d.subject(), Data: d.data(), Delivered: attempt}
	log := c.logger.With().Int("attempt", attempt).Str("event_id", d.header(HeaderEventID)).Logger()

	err := c.invoke(ctx, msg)
	outcome := OutcomeOf(err)
	span.SetAttributes(attribute.String("pulsegov.outcome", outcome.String()))
	if err != nil {
		span.RecordError(err)
	}

	switch outcome {
	case Ack:
		if err != nil {
			log.Debug().Err(err).Msg("already applied")
		}
		if ackErr := d.ack(); ackErr != nil {
			log.Warn().Err(ackErr).Msg("ack failed")
		}
	case Drop:
		log.Warn().Err(err).Msg("dropping message")
		if ackErr := d.ack(); ackErr != nil {
			log.Warn().Err(ackErr).Msg("ack failed")
		}
	case Retry:
		span.SetStatus(codes.Error, err.Error())
		if attempt >= c.cfg.MaxDeliver {
			log.Error().Err(err).Msg("retries exhausted, dead-lettering")
			if dlErr := c.dlq.DeadLetter(ctx, d.subject(), d.data(), err.Error()); dlErr != nil {
				log.Error().Err(dlErr).Msg("dead letter publish failed")
			}
			if termErr := d.term(); termErr != nil {
				log.Warn().Err(termErr).Msg("term failed")
			}
			return
		}
		delay := RetryDelay(attempt, c.cfg.BackoffInitial, c.cfg.BackoffMax)
		log.Warn().Err(err).Dur("retry_in", delay).Msg("handler failed, retrying")
		if nakErr := d.nak(delay); nakErr != nil {
			log.Warn().Err(nakErr).Msg("nak failed")
		}
	}
}

func (c *Consumer) invoke(ctx context.Context, msg Message) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HandlerTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handle(ctx, msg)
}

type headerCarrier struct{ d delivery }

func (h headerCarrier) Get(key string) string { return h.d.header(http.CanonicalHeaderKey(key)) }
func (h headerCarrier) Set(string, string)    {}
func (h headerCarrier) Keys() []string        { return nil }

var _ propagation.TextMapCarrier = headerCarrier{}

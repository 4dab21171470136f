// Package bus carries pipeline events over a NATS JetStream stream.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AmitRK9819/pulsegov/internal/apperr"
	"github.com/AmitRK9819/pulsegov/internal/events"
)

const (
	HeaderFailureReason = "X-Failure-Reason"
	HeaderEventID       = "X-Event-Id"
)

type Config struct {
	URL            string
	Name           string
	Stream         string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// Client wraps a NATS connection and its JetStream context.
type Client struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	stream string

	mu   sync.Mutex
	subs []*nats.Subscription
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	return &Client{conn: conn, js: js, stream: cfg.Stream}, nil
}

// EnsureStream creates the pipeline stream when it does not exist yet.
func (c *Client) EnsureStream() error {
	_, err := c.js.StreamInfo(c.stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info: %w", err)
	}
	_, err = c.js.AddStream(&nats.StreamConfig{
		Name:      c.stream,
		Subjects:  events.StreamSubjects,
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    14 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("add stream: %w", err)
	}
	return nil
}

// Publish sends a JSON payload and waits for the stream acknowledgement.
func (c *Client) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperr.Validation("marshal %s: %v", subject, err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(HeaderEventID, uuid.NewString())
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(http.Header(msg.Header)))
	return c.publishMsg(ctx, msg)
}

func (c *Client) publishMsg(ctx context.Context, msg *nats.Msg) error {
	if _, err := c.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return apperr.Transient("bus.publish "+msg.Subject, err)
	}
	return nil
}

// DeadLetter republishes data to deadletter.<subject> with the failure reason.
func (c *Client) DeadLetter(ctx context.Context, subject string, data []byte, reason string) error {
	msg := nats.NewMsg(events.DeadLetterPrefix + subject)
	msg.Data = data
	msg.Header.Set(HeaderFailureReason, reason)
	return c.publishMsg(ctx, msg)
}

func (c *Client) pullSubscribe(subject, durable string, maxDeliver int, ackWait time.Duration) (*nats.Subscription, error) {
	sub, err := c.js.PullSubscribe(subject, durable,
		nats.BindStream(c.stream),
		nats.AckExplicit(),
		nats.MaxDeliver(maxDeliver),
		nats.AckWait(ackWait),
	)
	if err != nil {
		return nil, fmt.Errorf("pull subscribe %s: %w", subject, err)
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c.conn == nil || !c.conn.IsConnected() {
		return errors.New("nats not connected")
	}
	if _, err := c.js.StreamInfo(c.stream, nats.Context(ctx)); err != nil {
		return fmt.Errorf("stream %s: %w", c.stream, err)
	}
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil
	if c.conn != nil {
		_ = c.conn.Drain()
	}
}

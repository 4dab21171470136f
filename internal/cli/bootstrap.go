// Package cli holds the pulsegov subcommands and the process wiring they
// share.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/AmitRK9819/pulsegov/internal/bus"
	"github.com/AmitRK9819/pulsegov/internal/cache"
	"github.com/AmitRK9819/pulsegov/internal/config"
	"github.com/AmitRK9819/pulsegov/internal/db"
	"github.com/AmitRK9819/pulsegov/internal/graph"
	"github.com/AmitRK9819/pulsegov/internal/http/handlers"
	"github.com/AmitRK9819/pulsegov/internal/tracing"

	httpapi "github.com/AmitRK9819/pulsegov/internal/http"
)

const (
	connectTries    = 8
	shutdownTimeout = 10 * time.Second
)

// process carries the configuration and logger of one running component and
// the cleanups to run when it exits.
type process struct {
	service string
	cfg     config.Config
	logger  zerolog.Logger
	closers []func()
}

func bootstrap(service string) (*process, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := log.Level(level).With().Str("service", service).Logger()

	return &process{service: service, cfg: cfg, logger: logger}, nil
}

func (p *process) component(name string) zerolog.Logger {
	return p.logger.With().Str("component", name).Logger()
}

func (p *process) onClose(fn func()) {
	p.closers = append(p.closers, fn)
}

// Close runs the registered cleanups in reverse order.
func (p *process) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// connect retries a dependency dial with exponential backoff so components can
// start before their dependencies are ready.
func connect[T any](ctx context.Context, p *process, name string, dial func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second

	return backoff.Retry(ctx, func() (T, error) {
		return dial(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(connectTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.logger.Warn().Err(err).Str("dependency", name).Dur("retry_in", next).Msg("dependency not ready")
		}),
	)
}

func (p *process) tracing(ctx context.Context) error {
	shutdown, err := tracing.Init(ctx, tracing.Config{
		Enabled:     p.cfg.OTelEnabled,
		ServiceName: "pulsegov-" + p.service,
		Environment: p.cfg.Env,
		Endpoint:    p.cfg.OTelEndpoint,
		Insecure:    p.cfg.OTelInsecure,
		SampleRatio: p.cfg.OTelSampleRatio,
	}, p.component("tracing"))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	p.onClose(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			p.logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	})
	return nil
}

func (p *process) openStore(ctx context.Context) (*db.Store, error) {
	store, err := connect(ctx, p, "postgres", func(ctx context.Context) (*db.Store, error) {
		s, err := db.New(ctx, p.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	p.onClose(store.Close)
	return store, nil
}

func (p *process) openBus(ctx context.Context) (*bus.Client, error) {
	client, err := connect(ctx, p, "nats", func(context.Context) (*bus.Client, error) {
		return bus.NewClient(bus.Config{
			URL:    p.cfg.NATSURL,
			Name:   "pulsegov-" + p.service,
			Stream: p.cfg.NATSStream,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	p.onClose(client.Close)
	if err := client.EnsureStream(); err != nil {
		return nil, err
	}
	return client, nil
}

func (p *process) openCache(ctx context.Context) (*cache.Client, error) {
	c, err := connect(ctx, p, "redis", func(ctx context.Context) (*cache.Client, error) {
		return cache.New(ctx, p.cfg.RedisURL)
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	p.onClose(func() { _ = c.Close() })
	return c, nil
}

func (p *process) openGraph(ctx context.Context) (*graph.Client, error) {
	g, err := connect(ctx, p, "neo4j", func(ctx context.Context) (*graph.Client, error) {
		return graph.New(ctx, graph.Config{
			URI:      p.cfg.Neo4jURI,
			User:     p.cfg.Neo4jUser,
			Password: p.cfg.Neo4jPassword,
			Database: p.cfg.Neo4jDatabase,
			Timeout:  p.cfg.StoreTimeout,
		}, p.component("graph"))
	})
	if err != nil {
		return nil, fmt.Errorf("connect neo4j: %w", err)
	}
	p.onClose(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = g.Close(ctx)
	})
	return g, nil
}

func (p *process) consumer(client *bus.Client, durable, subject string, handle bus.Handler) *bus.Consumer {
	return bus.NewConsumer(client, bus.ConsumerConfig{
		Durable:        durable,
		Subject:        subject,
		Concurrency:    p.cfg.ConsumerConcurrency,
		MaxDeliver:     p.cfg.ConsumerMaxDeliver,
		BackoffInitial: p.cfg.ConsumerBackoffInitial,
		BackoffMax:     p.cfg.ConsumerBackoffMax,
		HandlerTimeout: p.cfg.RequestTimeout,
	}, handle, p.component(durable))
}

func (p *process) server(h *handlers.Handler) *http.Server {
	h.Logger = p.component("http")
	return &http.Server{
		Addr:              ":" + p.cfg.Port,
		Handler:           httpapi.Router(p.cfg, p.service, h, p.component("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// serve runs the consumers and the HTTP server until ctx ends or one of them
// fails, then shuts the server down gracefully.
func (p *process) serve(ctx context.Context, srv *http.Server, consumers ...*bus.Consumer) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range consumers {
		g.Go(func() error {
			return c.Run(gctx)
		})
	}
	g.Go(func() error {
		p.logger.Info().Str("port", p.cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	err := g.Wait()
	p.logger.Info().Msg("server stopped")
	return err
}

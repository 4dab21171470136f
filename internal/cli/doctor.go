package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/AmitRK9819/pulsegov/internal/bus"
	"github.com/AmitRK9819/pulsegov/internal/cache"
	"github.com/AmitRK9819/pulsegov/internal/config"
	"github.com/AmitRK9819/pulsegov/internal/db"
	"github.com/AmitRK9819/pulsegov/internal/graph"
)

// CheckResult is the outcome of one dependency probe.
type CheckResult struct {
	Name    string
	OK      bool
	Latency time.Duration
	Details string
}

type probe struct {
	name string
	run  func(ctx context.Context, cfg config.Config) error
}

var probes = []probe{
	{"postgres", probePostgres},
	{"nats", probeNATS},
	{"redis", probeRedis},
	{"neo4j", probeNeo4j},
}

// DoctorCmd returns the doctor command for dependency validation.
func DoctorCmd() *cobra.Command {
	var (
		quiet   bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check connectivity to every pipeline dependency",
		Long: `Probes Postgres, NATS JetStream, Redis and Neo4j once each using the
current configuration.

Examples:
  pulsegov doctor              # Print a report
  pulsegov doctor --quiet      # Exit code only (0=healthy, 1=issues)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			results := runProbes(cmd.Context(), cfg, timeout, probes)
			failed := 0
			for _, r := range results {
				if !r.OK {
					failed++
				}
			}

			if !quiet {
				printResults(results)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d dependencies unreachable", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - exit code only")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Timeout per dependency")

	return cmd
}

func runProbes(ctx context.Context, cfg config.Config, timeout time.Duration, ps []probe) []CheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]CheckResult, 0, len(ps))
	for _, p := range ps {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		err := p.run(pctx, cfg)
		cancel()

		r := CheckResult{Name: p.name, OK: err == nil, Latency: time.Since(start)}
		if err != nil {
			r.Details = err.Error()
		}
		results = append(results, r)
	}
	return results
}

func printResults(results []CheckResult) {
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	fmt.Println()
	fmt.Println("Dependency   Status  Latency")
	fmt.Println("────────────────────────────")
	for _, r := range results {
		status := ok("✓")
		if !r.OK {
			status = bad("✗")
		}
		fmt.Printf("%-12s %s       %s\n", r.Name, status, r.Latency.Round(time.Millisecond))
	}
	fmt.Println()

	for _, r := range results {
		if !r.OK {
			fmt.Printf("%s: %s\n", color.New(color.FgYellow).Sprint(r.Name), r.Details)
		}
	}
}

func probePostgres(ctx context.Context, cfg config.Config) error {
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Ping(ctx)
}

func probeNATS(ctx context.Context, cfg config.Config) error {
	client, err := bus.NewClient(bus.Config{URL: cfg.NATSURL, Name: "pulsegov-doctor", Stream: cfg.NATSStream, MaxReconnects: 1})
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Ping(ctx)
}

func probeRedis(ctx context.Context, cfg config.Config) error {
	c, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	return c.Close()
}

func probeNeo4j(ctx context.Context, cfg config.Config) error {
	g, err := graph.New(ctx, graph.Config{
		URI:      cfg.Neo4jURI,
		User:     cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
		Database: cfg.Neo4jDatabase,
	}, zerolog.Nop())
	if err != nil {
		return err
	}
	return g.Close(ctx)
}

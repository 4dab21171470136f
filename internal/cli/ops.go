package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AmitRK9819/pulsegov/internal/sla"
)

// MigrateCmd returns the migrate command.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := bootstrap("migrate")
			if err != nil {
				return err
			}
			defer p.Close()

			ctx, stop := signalContext()
			defer stop()
			store, err := p.openStore(ctx)
			if err != nil {
				return err
			}
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			p.logger.Info().Msg("schema applied")
			return nil
		},
	}
}

// SweepCmd returns the sweep command.
func SweepCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one SLA escalation sweep and print its report",
		Long: `Runs the same sweep as the sla-tracker schedule, once. The shared
Redis lock still applies, so a sweep in flight elsewhere makes this exit
with an error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := bootstrap("sweep")
			if err != nil {
				return err
			}
			defer p.Close()

			ctx, stop := signalContext()
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			store, err := p.openStore(ctx)
			if err != nil {
				return err
			}
			client, err := p.openBus(ctx)
			if err != nil {
				return err
			}
			index, err := p.openCache(ctx)
			if err != nil {
				return err
			}

			sweeper := &sla.Sweeper{
				Store:     store,
				Index:     index,
				Publisher: client,
				Locker:    index,
				LockTTL:   p.cfg.SLASweepLockTTL,
				Logger:    p.component("sweep"),
			}
			report, err := sweeper.Run(ctx)
			if errors.Is(err, sla.ErrSweepInFlight) {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(report); encErr != nil {
				return encErr
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Abort the sweep after this long")

	return cmd
}

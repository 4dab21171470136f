package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/AmitRK9819/pulsegov/internal/events"
	"github.com/AmitRK9819/pulsegov/internal/http/handlers"
	"github.com/AmitRK9819/pulsegov/internal/sla"
)

// SLATrackerCmd returns the sla-tracker command.
func SLATrackerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sla-tracker",
		Short: "Track SLA deadlines and escalate overdue complaints",
		Long: `Consumes complaint.routed to set deadlines and breach predictions,
consumes complaint.resolved to stop tracking, and runs the periodic
escalation sweep.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := bootstrap("sla-tracker")
			if err != nil {
				return err
			}
			defer p.Close()

			ctx, stop := signalContext()
			defer stop()
			if err := p.tracing(ctx); err != nil {
				return err
			}
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

			tracker := &sla.Tracker{
				Store:        store,
				Index:        index,
				Publisher:    client,
				DefaultHours: p.cfg.SLADefaultHours,
				Logger:       p.component("sla"),
			}
			sweeper := &sla.Sweeper{
				Store:     store,
				Index:     index,
				Publisher: client,
				Locker:    index,
				LockTTL:   p.cfg.SLASweepLockTTL,
				Logger:    p.component("sweep"),
			}
			scheduler, err := sla.NewScheduler(sweeper, p.cfg.SLASweepInterval, p.component("scheduler"))
			if err != nil {
				return err
			}
			scheduler.Start()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				scheduler.Stop(ctx)
			}()

			srv := p.server(&handlers.Handler{
				SLA:       tracker,
				Sweeper:   sweeper,
				Deadlines: index,
				Checks:    map[string]handlers.Pinger{"postgres": store, "nats": client, "redis": index},

				SweepTimeout: p.cfg.SLASweepInterval,
			})
			return p.serve(ctx, srv,
				p.consumer(client, "sla-tracker", events.SubjectRouted, tracker.HandleRouted),
				p.consumer(client, "sla-tracker-resolved", events.SubjectResolved, tracker.HandleResolved),
			)
		},
	}
}

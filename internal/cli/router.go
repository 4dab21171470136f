package cli

import (
	"github.com/spf13/cobra"

	"github.com/AmitRK9819/pulsegov/internal/events"
	"github.com/AmitRK9819/pulsegov/internal/http/handlers"
	"github.com/AmitRK9819/pulsegov/internal/routing"
)

// RouterCmd returns the router command.
func RouterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "router",
		Short: "Assign classified complaints to officers",
		Long: `Consumes complaint.classified, scores the department's least loaded
officers, assigns the best one and publishes complaint.routed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := bootstrap("router")
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

			router := &routing.Router{
				Store:     store,
				Publisher: client,
				PoolSize:  p.cfg.RouterPoolSize,
				Logger:    p.component("routing"),
			}
			srv := p.server(&handlers.Handler{
				Checks: map[string]handlers.Pinger{"postgres": store, "nats": client},
			})
			return p.serve(ctx, srv, p.consumer(client, "router", events.SubjectClassified, router.Handle))
		},
	}
}

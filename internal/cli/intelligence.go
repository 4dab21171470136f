package cli

import (
	"github.com/spf13/cobra"

	"github.com/AmitRK9819/pulsegov/internal/events"
	"github.com/AmitRK9819/pulsegov/internal/http/handlers"
	"github.com/AmitRK9819/pulsegov/internal/intelligence"
)

// IntelligenceCmd returns the intelligence command.
func IntelligenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "intelligence",
		Short: "Maintain the similarity graph and serve resolution suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := bootstrap("intelligence")
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
			g, err := p.openGraph(ctx)
			if err != nil {
				return err
			}
			g.EnsureSchema(ctx)

			engine := &intelligence.Engine{
				Store:  store,
				Graph:  g,
				Logger: p.component("intelligence"),
			}
			srv := p.server(&handlers.Handler{
				Intelligence: engine,
				Checks:       map[string]handlers.Pinger{"postgres": store, "nats": client, "neo4j": g},
			})
			return p.serve(ctx, srv,
				p.consumer(client, "intelligence-routed", events.SubjectRouted, engine.HandleRouted),
				p.consumer(client, "intelligence-resolved", events.SubjectResolved, engine.HandleResolved),
			)
		},
	}
}

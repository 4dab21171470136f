package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AmitRK9819/pulsegov/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pulsegov",
		Short: "PulseGov complaint pipeline",
		Long: `PulseGov routes classified civic complaints to officers, tracks their
SLA deadlines with escalation, and suggests resolutions from similar
resolved cases. Each pipeline component runs as its own subcommand.`,
		SilenceUsage: true,
	}

	// Pipeline components
	rootCmd.AddCommand(cli.RouterCmd())
	rootCmd.AddCommand(cli.SLATrackerCmd())
	rootCmd.AddCommand(cli.IntelligenceCmd())

	// Operations
	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.SweepCmd())
	rootCmd.AddCommand(cli.DoctorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

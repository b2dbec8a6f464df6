package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "report-service",
		Short: "Civic report API with the reminder and escalation sweeps",
		Long: `report-service accepts citizen reports, clusters duplicates filed nearby,
routes them to the responsible department and escalates reports left unresolved.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the reminder and escalation sweeps without the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			once, _ := cmd.Flags().GetBool("once")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if once {
				return a.runner.RunOnce(ctx)
			}
			a.runner.Run(ctx)
			return nil
		},
	}
	cmd.Flags().Bool("once", false, "run a single iteration and exit")
	return cmd
}

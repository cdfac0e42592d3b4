package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newDrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Process ready entries until the queue is empty, then exit",
		Long: `Runs the worker pool until no pending entry is ready to claim. Entries
re-pended for a later attempt are counted as retried and left in the queue.
SIGINT or SIGTERM stops claiming; entries already in flight finish first.
The command exits 1 when any entry failed permanently.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := appInstance.Dispatcher().Drain(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "completed=%d retried=%d failed=%d unrecorded=%d\n",
				res.Completed, res.Retried, res.Failed, res.Unrecorded)
			if err != nil {
				return err
			}
			if res.Failed > 0 {
				return &exitError{code: ExitFailure, err: fmt.Errorf("%d entries failed", res.Failed)}
			}
			return nil
		},
	}
}

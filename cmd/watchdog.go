package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/watchdog"
)

type watchdogReport struct {
	Reclaimed int64                    `json:"reclaimed"`
	Checked   int                      `json:"checked"`
	Outcomes  map[watchdog.Outcome]int `json:"outcomes"`
}

func newWatchdogCmd() *cobra.Command {
	var opts watchdog.Options
	cmd := &cobra.Command{
		Use:   "watchdog",
		Short: "Verify archived snapshots once",
		Long: `Returns stale claims to the queue, then re-fetches archived URLs that have not
been verified within watchdog.stale_after_hours and compares their content
hash with the stored snapshot. Changes and failures are recorded as alerts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			w := appInstance.Watchdog()
			reclaimed, err := w.Sweep(cmd.Context())
			if err != nil {
				appInstance.Logger().Warn("stale claim sweep failed", zap.Error(err))
			}
			report, err := w.RunOnce(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("watchdog: %w", err)
			}
			return printJSON(cmd, watchdogReport{
				Reclaimed: reclaimed,
				Checked:   report.Checked,
				Outcomes:  report.Outcomes,
			})
		},
	}
	cmd.Flags().BoolVar(&opts.CheckAll, "check-all", false, "verify every archived URL regardless of age")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum URLs to verify (default watchdog.limit)")
	return cmd
}

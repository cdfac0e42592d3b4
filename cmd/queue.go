package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/policy/simple"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

func newQueueCmd() *cobra.Command {
	var (
		category   string
		priority   int
		mode       string
		maxRetries int
	)
	cmd := &cobra.Command{
		Use:   "queue <url>...",
		Short: "Add document URLs to the work queue",
		Long: `Validates each URL and inserts it as a pending queue entry. A URL that is
already pending is not inserted twice. The IDs of the entries are printed one
per line, in argument order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			policy := simple.New(appInstance.Config().Queue.BlockedHosts...)
			fetchMode, err := policy.AllowFetchMode(mode)
			if err != nil {
				return err
			}
			if maxRetries < 0 {
				maxRetries = appInstance.Config().Queue.MaxRetries
			}

			entries := make([]scraper.NewEntry, 0, len(args))
			for _, raw := range args {
				u, err := policy.AllowURL(raw)
				if err != nil {
					return err
				}
				entries = append(entries, scraper.NewEntry{
					URL:        u,
					Category:   category,
					Priority:   priority,
					FetchMode:  fetchMode,
					MaxRetries: maxRetries,
				})
			}

			ids, err := appInstance.Dispatcher().Enqueue(cmd.Context(), entries)
			if err != nil {
				return err
			}
			appInstance.Logger().Info("urls queued", zap.Int("count", len(ids)), zap.String("category", category))
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "site category used to pick a parser and login flow")
	cmd.Flags().IntVar(&priority, "priority", 0, "higher priorities are claimed first")
	cmd.Flags().StringVar(&mode, "mode", "", "fetch mode: plain, headless or auto (default auto)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", -1, "retry budget (default queue.max_retries)")
	return cmd
}

func newRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <id>",
		Short: "Return a completed or failed entry to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := appInstance.Queue().Requeue(cmd.Context(), id); err != nil {
				return fmt.Errorf("requeue %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d\n", id)
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print queue counts by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := appInstance.Queue().Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("queue stats: %w", err)
			}
			statuses := make([]string, 0, len(stats))
			for s := range stats {
				statuses = append(statuses, string(s))
			}
			sort.Strings(statuses)
			for _, s := range statuses {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", s, stats[scraper.QueueStatus(s)])
			}
			return nil
		},
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, scraper.Validation("parse id", fmt.Errorf("%q is not a positive integer id", raw))
	}
	return id, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

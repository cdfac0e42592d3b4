package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

const defaultResolver = "cli"

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Work the human review queue of ambiguous identity matches",
	}
	cmd.AddCommand(newReviewListCmd(), newReviewGetCmd(), newReviewResolveCmd())
	return cmd
}

func newReviewListCmd() *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List review items, highest priority first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			items, err := appInstance.Reviews().ListReviews(cmd.Context(), scraper.MatchStatus(status), limit)
			if err != nil {
				return fmt.Errorf("list reviews: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPRIORITY\tNAME\tCANDIDATES\tLOCATION\tCREATED")
			for _, it := range items {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
					it.ID, it.Priority, it.UnconfirmedName, candidateList(it),
					it.LocationContext, it.CreatedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", string(scraper.MatchPending), "pending, resolved or abandoned")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum items to list")
	return cmd
}

func candidateList(it scraper.MatchQueueItem) string {
	parts := make([]string, 0, len(it.CandidateCanonicalIDs))
	for i, id := range it.CandidateCanonicalIDs {
		if i < len(it.CandidateScores) {
			parts = append(parts, fmt.Sprintf("%d:%.2f", id, it.CandidateScores[i]))
			continue
		}
		parts = append(parts, fmt.Sprint(id))
	}
	return strings.Join(parts, ",")
}

func newReviewGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a review item with its unconfirmed person and candidates",
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
			detail, err := appInstance.Reviews().GetReview(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get review %d: %w", id, err)
			}
			return printJSON(cmd, detail)
		},
	}
}

func newReviewResolveCmd() *cobra.Command {
	var (
		as          string
		canonicalID int64
		by          string
	)
	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Record an operator's verdict on a pending review item",
		Long: `Resolves a pending item. linked_existing requires --canonical-id and records
the unconfirmed name as a variant of that person. created_new promotes the
unconfirmed person to a new canonical person. marked_duplicate and not_a_person
close the item without writing a person.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			resolution, ok := scraper.ParseResolution(as)
			if !ok {
				return scraper.Validation("resolve", fmt.Errorf("unknown resolution %q", as))
			}
			if strings.TrimSpace(by) == "" {
				by = defaultResolver
			}

			decision, err := appInstance.Resolver().ResolveReview(
				cmd.Context(), appInstance.Reviews(), id, resolution, canonicalID, by, appInstance.Clock().Now())
			if err != nil {
				return fmt.Errorf("resolve review %d: %w", id, err)
			}
			appInstance.Logger().Info("review resolved",
				zap.Int64("item_id", id),
				zap.String("resolution", string(resolution)),
				zap.String("resolved_by", by))
			fmt.Fprintf(cmd.OutOrStdout(), "resolved %d as %s", id, decision.Resolution)
			if decision.CanonicalID > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), " (canonical %d)", decision.CanonicalID)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "linked_existing, created_new, marked_duplicate or not_a_person")
	cmd.Flags().Int64Var(&canonicalID, "canonical-id", 0, "canonical person to link to")
	cmd.Flags().StringVar(&by, "by", defaultResolver, "operator name recorded with the resolution")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

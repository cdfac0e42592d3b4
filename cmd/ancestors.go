package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/ancestry"
)

type climbReport struct {
	RootID  string           `json:"rootId"`
	Visits  int              `json:"visits"`
	Pending int              `json:"pending"`
	Done    bool             `json:"done"`
	Matches []ancestry.Match `json:"matches"`
}

func newAncestorsCmd() *cobra.Command {
	var restart bool
	cmd := &cobra.Command{
		Use:   "ancestors <fsId>",
		Short: "Climb a family tree looking for known slaveholders",
		Long: `Walks the pedigree upward from a FamilySearch person, breadth first, and
reports every ancestor that matches a known slaveholder. Progress is
checkpointed, so an interrupted climb resumes where it stopped unless
--restart is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			climber, err := appInstance.Climber()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			frontier, err := climber.Climb(ctx, args[0], restart)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					return fmt.Errorf("climb %s: %w", args[0], err)
				}
				appInstance.Logger().Info("climb interrupted; checkpoint saved", zap.String("root", args[0]))
			}
			return printJSON(cmd, climbReport{
				RootID:  frontier.RootID,
				Visits:  frontier.Visits,
				Pending: len(frontier.Queue),
				Done:    frontier.Done,
				Matches: frontier.Matches,
			})
		},
	}
	cmd.Flags().BoolVar(&restart, "restart", false, "discard any checkpoint and start over")
	return cmd
}

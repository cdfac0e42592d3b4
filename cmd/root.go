// Package cmd defines the scraper command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/app"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/config"
	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/logging"
	pgstore "github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/storage/postgres"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUnreachable = 2
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// appFactory builds the services a command runs against. Tests swap in one
// backed by memory stores.
type appFactory func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error)

// exitError carries a non-default exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

// newRootCmd returns the command tree and a function that closes whatever
// application the tree built. Cobra skips post-run hooks when a command
// fails, so shutdown is left to the caller.
func newRootCmd(build appFactory) (*cobra.Command, func(context.Context)) {
	var (
		cfgFile string
		built   *app.App
	)
	cmd := &cobra.Command{
		Use:   "scraper",
		Short: "Extracts enslaved people and slaveholders from historical documents.",
		Long: `scraper works through a durable queue of document URLs. Each URL is fetched,
run through OCR when needed, parsed into person mentions, classified by role and
resolved against canonical identities. Ambiguous matches go to a human review queue.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := build(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			built = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	cmd.AddCommand(
		newRunCmd(),
		newQueueCmd(),
		newRequeueCmd(),
		newStatsCmd(),
		newDrainCmd(),
		newWatchdogCmd(),
		newReviewCmd(),
		newAncestorsCmd(),
	)
	closeApp := func(ctx context.Context) {
		if built != nil {
			built.Close(ctx)
			built = nil
		}
	}
	return cmd, closeApp
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return execute(context.Background(), app.Build, os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, build appFactory, args []string, stdout, stderr io.Writer) int {
	root, closeApp := newRootCmd(build)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	closeApp(context.WithoutCancel(ctx))
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, pgstore.ErrUnreachable) {
		return ExitUnreachable
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitFailure
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the worker pool",
		Long: `Starts worker.max_concurrent workers that claim and process queue entries,
the scheduled archive watchdog (which also returns stale claims to the queue)
and, unless metrics.port is 0, the ops listener. SIGINT or SIGTERM stops
claiming; entries already in flight finish first.`,
		Args: cobra.NoArgs,
		RunE: runWorkers,
	}
}

func runWorkers(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return appInstance.Dispatcher().Run(gctx)
	})
	g.Go(func() error {
		return appInstance.Watchdog().Start(gctx)
	})
	if port := appInstance.Config().Metrics.Port; port > 0 {
		g.Go(func() error {
			return appInstance.OpsServer().ListenAndServe(gctx, fmt.Sprintf(":%d", port))
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run workers: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}


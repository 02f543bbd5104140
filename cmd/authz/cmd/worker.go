package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the role cache invalidation workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Cache.Driver == "memory" {
			return errors.New("worker needs CACHE_DRIVER=redis; the memory queue only lives inside serve")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		d := a.startWorkers(ctx)

		<-ctx.Done()
		log.Info().Msg("stopping workers")
		d.Wait()
		return nil
	},
}

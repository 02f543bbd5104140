package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API. Unless --no-worker is given, the role cache
invalidation workers run in the same process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		noWorker, _ := cmd.Flags().GetBool("no-worker")
		if noWorker && cfg.Cache.Driver == "memory" {
			log.Warn().Msg("--no-worker ignored: the in-process queue needs an in-process worker")
			noWorker = false
		}

		workerCtx, cancelWorkers := context.WithCancel(ctx)
		if !noWorker {
			d := a.startWorkers(workerCtx)
			defer d.Wait()
		}
		// Runs before d.Wait so workers always see cancellation.
		defer cancelWorkers()

		e := a.router()
		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           e,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("http server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			log.Info().Msg("shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("no-worker", false, "Do not run invalidation workers in this process")
}

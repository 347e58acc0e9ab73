package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/intelfeed/internal/scheduler"
	"github.com/matheuskafuri/intelfeed/internal/server"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the refresh scheduler and the read-only HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return withApp(ctx, func(a *app) error {
			sched := newScheduler(a)
			sched.Start(ctx)
			defer sched.Stop()

			addr := cfg.Server.Addr
			if flagAddr != "" {
				addr = flagAddr
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           server.New(a.svc, a.ping, version, a.log),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("serving", slog.String("addr", addr), slog.String("store", cfg.Store.Backend))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("http server: %w", err)
			case <-ctx.Done():
			}

			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides server.addr)")
}

func newScheduler(a *app) *scheduler.Scheduler {
	return scheduler.New(a.svc,
		scheduler.WithInterval(a.cfg.RefreshDuration()),
		scheduler.WithTopicDelay(a.cfg.TopicDelayDuration()),
		scheduler.WithLogger(a.log),
	)
}

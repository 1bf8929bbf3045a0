package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/FranksOps/serprank/internal/metrics"
	"github.com/FranksOps/serprank/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve GET /rankings, running the pipeline on every request.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		a, err := build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		metricsSrv := metrics.Start(cfg.Metrics.Addr, logger)
		defer metricsSrv.Stop(context.Background())

		// A run paces each request by 10-20s by default, so writes get no
		// short deadline.
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           server.New(a.pipeline, logger),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("Starting server", "addr", cfg.Server.Addr, "metrics_addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.String("addr", ":8080", "Listen address for the rankings endpoint.")
	flags.String("metrics-addr", ":9090", "Listen address for Prometheus metrics.")
	mustBind(v, "server.addr", flags.Lookup("addr"))
	mustBind(v, "metrics.addr", flags.Lookup("metrics-addr"))
	rootCmd.AddCommand(serveCmd)
}

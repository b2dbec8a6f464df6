package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"civic-reporting-system/pkg/config"
	"civic-reporting-system/pkg/middleware"
	"civic-reporting-system/services/report-service/handler"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the report API and, when enabled, the background sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			return a.serve(ctx)
		},
	}
}

func (a *app) router() *gin.Engine {
	if a.cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	httpMetrics := middleware.NewHTTPMetrics(a.registry)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Trace(), middleware.Logger(a.logger), httpMetrics.Middleware())

	handler.NewReportHandler(a.service, a.logger).Register(r, middleware.Auth([]byte(a.cfg.JWT.Secret)))
	r.GET("/health", handler.Health("report-service", a.ping))
	r.GET("/metrics", httpMetrics.Handler())
	return r
}

func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// runCtx also stops the sweeps when the listener fails.
	runCtx, stopSweeps := context.WithCancel(ctx)
	defer stopSweeps()

	sweepsDone := make(chan struct{})
	if a.cfg.Scheduler.Enabled {
		go func() {
			defer close(sweepsDone)
			a.runner.Run(runCtx)
		}()
	} else {
		close(sweepsDone)
		a.logger.Info("background sweeps disabled")
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("report service listening", zap.Int("port", a.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", zap.Error(err))
	}

	stopSweeps()
	<-sweepsDone
	a.logger.Info("report service stopped")
	return runErr
}

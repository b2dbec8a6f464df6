package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"civic-reporting-system/pkg/config"
	"civic-reporting-system/pkg/logger"
	"civic-reporting-system/pkg/middleware"
	"civic-reporting-system/pkg/queue"
	"civic-reporting-system/services/notification-service/hub"
)

const queueName = "notifications"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	base, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer base.Sync()
	logr := logger.Named(base, "notification-service")

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, ch, err := queue.ConnectRabbitMQ(cfg.RabbitMQ.URL)
	if err != nil {
		logr.Fatal("rabbitmq unavailable", zap.Error(err))
	}
	defer conn.Close()
	defer ch.Close()

	q, err := queue.Bind(ch, cfg.RabbitMQ.Exchange, queueName, "report.*")
	if err != nil {
		logr.Fatal("failed to bind queue", zap.Error(err))
	}
	logr.Info("connected to RabbitMQ", zap.String("queue", q.Name))

	h := hub.New(logr)
	go h.Run(ctx)

	go func() {
		err := queue.Consume(ctx, ch, q.Name, "notification-service", h.Handle, func(key string, err error) {
			logr.Warn("failed to forward notification", zap.String("routing_key", key), zap.Error(err))
		})
		if err != nil {
			logr.Error("consumer stopped", zap.Error(err))
			stop()
		}
	}()

	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewHTTPMetrics(registry)
	secret := []byte(cfg.JWT.Secret)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Trace())

	stream := h.Subscribe(secret)
	r.GET("/notifications/subscribe", stream)
	r.GET("/subscribe", stream)

	api := r.Group("/", middleware.Logger(logr), httpMetrics.Middleware())
	api.GET("/health", h.Health)
	api.GET("/metrics", httpMetrics.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.NotificationPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("notification service listening", zap.Int("port", cfg.NotificationPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown", zap.Error(err))
	}
	logr.Info("notification service stopped")
}

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"civic-reporting-system/pkg/config"
	"civic-reporting-system/pkg/database"
	"civic-reporting-system/pkg/directory"
	"civic-reporting-system/pkg/logger"
	"civic-reporting-system/pkg/queue"
	"civic-reporting-system/services/dispatcher-service/dispatch"
)

const queueName = "dispatcher"

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
	logr := logger.Named(base, "dispatcher-service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dir := openDirectory(ctx, cfg, logr)

	var email dispatch.EmailSender = dispatch.NewLogSender(logr)
	if cfg.SMTP.Host != "" {
		email = dispatch.NewSMTPSender(cfg.SMTP)
	} else {
		logr.Warn("SMTP_HOST not set, emails will only be logged")
	}

	var whatsapp dispatch.WhatsAppSender = dispatch.NewLogSender(logr)
	if cfg.Twilio.AccountSID != "" && cfg.Twilio.AuthToken != "" && cfg.Twilio.WhatsAppNumber != "" {
		whatsapp = dispatch.NewTwilioSender(cfg.Twilio)
	} else {
		logr.Warn("twilio credentials not set, whatsapp messages will only be logged")
	}

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

	d := dispatch.NewDispatcher(dir, email, whatsapp, logr)

	logr.Info("waiting for report notifications",
		zap.String("exchange", cfg.RabbitMQ.Exchange),
		zap.String("queue", q.Name),
	)
	err = queue.Consume(ctx, ch, q.Name, "dispatcher-service", d.Handle, func(key string, err error) {
		logr.Warn("delivery failed", zap.String("routing_key", key), zap.Error(err))
	})
	if err != nil {
		logr.Error("consumer stopped", zap.Error(err))
		return
	}
	logr.Info("dispatcher stopped")
}

// openDirectory prefers PostgreSQL overrides when POSTGRES_DSN is set.
func openDirectory(ctx context.Context, cfg *config.Config, logr *zap.Logger) directory.Directory {
	if cfg.Postgres.DSN == "" {
		return directory.NewStatic()
	}

	db, err := database.ConnectPostgres(cfg.Postgres.DSN)
	if err != nil {
		logr.Warn("postgres unavailable, using built-in department contacts", zap.Error(err))
		return directory.NewStatic()
	}

	dir := directory.NewGormDirectory(db, logr)
	if err := dir.Migrate(ctx); err != nil {
		logr.Warn("departments table migration failed", zap.Error(err))
	}
	logr.Info("department directory backed by postgres")
	return dir
}

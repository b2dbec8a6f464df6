package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"civic-reporting-system/pkg/clock"
	"civic-reporting-system/pkg/config"
	"civic-reporting-system/pkg/database"
	"civic-reporting-system/pkg/lock"
	"civic-reporting-system/pkg/logger"
	"civic-reporting-system/pkg/queue"
	"civic-reporting-system/services/report-service/handler"
	"civic-reporting-system/services/report-service/notify"
	"civic-reporting-system/services/report-service/repository"
	"civic-reporting-system/services/report-service/service"
	"civic-reporting-system/services/report-service/worker"
)

// app is the explicitly wired process. It only exists once the store handle
// has been constructed.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	store    repository.Store
	ping     handler.Pinger
	service  *service.ReportService
	runner   *worker.Runner
	closers  []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	base, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	log := logger.Named(base, "report-service")

	a := &app{cfg: cfg, logger: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.closers = append(a.closers, func() { _ = base.Sync() })

	if err := a.openStore(ctx); err != nil {
		a.close()
		return nil, err
	}

	metrics := service.NewMetrics(a.registry)
	clk := clock.Real()
	a.service = service.NewReportService(a.store, a.openNotifier(), clk, log, metrics)

	thresholds := cfg.Scheduler.Thresholds()
	a.runner = worker.NewRunner(cfg.Scheduler.SweepInterval, a.openLocker(ctx), log, metrics,
		worker.NewReminderSweeper(a.store, a.service, clk, thresholds, log, metrics),
		worker.NewEscalationSweeper(a.store, a.service, clk, thresholds, log, metrics),
	)

	log.Info("report service wired",
		zap.String("store", cfg.StoreDriver),
		zap.Duration("sweep_interval", cfg.Scheduler.SweepInterval),
		zap.Duration("cool_off_threshold", thresholds.CoolOff),
		zap.Duration("escalate_threshold", thresholds.Escalate),
		zap.Bool("debug_thresholds", cfg.Scheduler.Debug),
	)
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.StoreDriver {
	case config.StoreMemory:
		a.store = repository.NewMemoryStore()
		a.logger.Warn("using in-memory report store")
		return nil
	case config.StoreMongo, "":
		db, err := database.ConnectMongo(ctx, a.cfg.Mongo.URI, a.cfg.Mongo.Database)
		if err != nil {
			return fmt.Errorf("report store unavailable: %w", err)
		}
		a.store = repository.NewMongoStore(db)
		a.ping = func(ctx context.Context) error { return db.Client().Ping(ctx, nil) }
		a.closers = append(a.closers, func() { _ = db.Client().Disconnect(context.Background()) })
		a.logger.Info("connected to MongoDB", zap.String("database", a.cfg.Mongo.Database))
		return nil
	default:
		return fmt.Errorf("unknown store driver %q", a.cfg.StoreDriver)
	}
}

// openNotifier falls back to log-only delivery when the broker is down;
// notifications never block report processing.
func (a *app) openNotifier() service.Notifier {
	conn, ch, err := queue.ConnectRabbitMQ(a.cfg.RabbitMQ.URL)
	if err != nil {
		a.logger.Warn("rabbitmq unavailable, notifications will only be logged", zap.Error(err))
		return notify.NewLogNotifier(a.logger)
	}
	a.closers = append(a.closers, func() {
		_ = ch.Close()
		_ = conn.Close()
	})

	if err := queue.DeclareExchange(ch, a.cfg.RabbitMQ.Exchange); err != nil {
		a.logger.Warn("exchange declare failed, notifications will only be logged", zap.Error(err))
		return notify.NewLogNotifier(a.logger)
	}

	go a.watchBroker(conn)
	a.logger.Info("connected to RabbitMQ", zap.String("exchange", a.cfg.RabbitMQ.Exchange))
	return notify.NewQueueNotifier(queue.NewPublisher(ch, a.cfg.RabbitMQ.Exchange), clock.Real())
}

func (a *app) watchBroker(conn *amqp.Connection) {
	if err, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1)); ok && err != nil {
		a.logger.Error("rabbitmq connection closed", zap.String("reason", err.Reason))
	}
}

func (a *app) openLocker(ctx context.Context) lock.Locker {
	if a.cfg.Redis.Addr == "" {
		return lock.Noop{}
	}
	client, err := lock.NewRedisClient(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
	if err != nil {
		a.logger.Warn("redis unavailable, sweeps run without a lease", zap.Error(err))
		return lock.Noop{}
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return lock.NewRedisLocker(client)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

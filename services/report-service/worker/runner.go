package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"civic-reporting-system/pkg/lock"
)

type sweepMetrics interface {
	SweepAction(sweep, action string)
	SweepRun(sweep string, seconds float64, err error)
}

type nopMetrics struct{}

func (nopMetrics) SweepAction(string, string)      {}
func (nopMetrics) SweepRun(string, float64, error) {}

func metricsOrNop(m sweepMetrics) sweepMetrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

// Runner drives the sweeps on a fixed interval. Each sweep runs under its own
// lease so that only one replica acts per tick.
type Runner struct {
	sweeps   []Sweep
	locker   lock.Locker
	interval time.Duration
	leaseTTL time.Duration
	logger   *zap.Logger
	metrics  sweepMetrics

	newTicker func(d time.Duration) (<-chan time.Time, func())
	mu        sync.Mutex
}

func NewRunner(interval time.Duration, locker lock.Locker, logger *zap.Logger, metrics sweepMetrics, sweeps ...Sweep) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.Noop{}
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Runner{
		sweeps:   sweeps,
		locker:   locker,
		interval: interval,
		leaseTTL: interval,
		logger:   logger,
		metrics:  metricsOrNop(metrics),
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Run sweeps immediately and then on every tick until ctx is done. An
// iteration already in progress when ctx is cancelled runs to completion.
func (r *Runner) Run(ctx context.Context) {
	ticks, stop := r.newTicker(r.interval)
	defer stop()

	r.logger.Info("sweep runner started", zap.Duration("interval", r.interval), zap.Int("sweeps", len(r.sweeps)))
	r.iterate(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("sweep runner stopped")
			return
		case <-ticks:
			r.iterate(ctx)
		}
	}
}

func (r *Runner) iterate(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := r.RunOnce(context.WithoutCancel(ctx)); err != nil {
		r.logger.Warn("sweep iteration incomplete", zap.Error(err))
	}
}

// RunOnce runs every sweep once, in order. A failing sweep does not stop the
// ones after it; the joined error is returned.
func (r *Runner) RunOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, s := range r.sweeps {
		if err := r.runSweep(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) runSweep(ctx context.Context, s Sweep) error {
	release, ok, err := r.locker.Acquire(ctx, "sweep:"+s.Name(), r.leaseTTL)
	if err != nil {
		r.logger.Warn("sweep lease unavailable", zap.String("sweep", s.Name()), zap.Error(err))
		return err
	}
	if !ok {
		r.logger.Debug("sweep held by another replica", zap.String("sweep", s.Name()))
		return nil
	}
	defer func() {
		if err := release(ctx); err != nil {
			r.logger.Warn("sweep lease release failed", zap.String("sweep", s.Name()), zap.Error(err))
		}
	}()

	start := time.Now()
	res, err := s.Run(ctx)
	r.metrics.SweepRun(s.Name(), time.Since(start).Seconds(), err)
	if err != nil {
		r.logger.Error("sweep abandoned until next tick", zap.String("sweep", s.Name()), zap.Error(err))
		return err
	}

	r.logger.Info("sweep finished",
		zap.String("sweep", s.Name()),
		zap.Int("scanned", res.Scanned),
		zap.Int("actioned", res.Actioned),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fashion_shop/config"
	"fashion_shop/service"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"
)

const (
	batchSize  = 100
	jobTimeout = 2 * time.Minute
)

type Reconciler interface {
	Reconcile(ctx context.Context, staleAfter time.Duration, limit int) (service.ReconcileReport, error)
}

type Expirer interface {
	ExpirePendingOrders(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// Scheduler runs the background payment jobs: provider reconciliation on a
// fixed interval (gocron) and expiry of abandoned orders on a cron
// schedule (robfig/cron).
type Scheduler struct {
	reconciler Reconciler
	expirer    Expirer
	cfg        config.JobSettings
	log        *slog.Logger

	interval gocron.Scheduler
	cron     *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

func New(reconciler Reconciler, expirer Expirer, cfg config.JobSettings, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.ReconcileInterval <= 0 {
		return nil, errors.New("reconcile interval must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		reconciler: reconciler,
		expirer:    expirer,
		cfg:        cfg,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}

	interval, err := gocron.NewScheduler(
		gocron.WithLocation(time.FixedZone("ICT", 7*3600)),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create reconcile scheduler: %w", err)
	}
	_, err = interval.NewJob(
		gocron.DurationJob(cfg.ReconcileInterval),
		gocron.NewTask(s.RunReconcile, ctx),
		gocron.WithName("payos-reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("register reconcile job: %w", err)
	}
	s.interval = interval

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := s.cron.AddFunc(cfg.ExpireSchedule, func() { s.RunExpire(ctx) }); err != nil {
		cancel()
		_ = interval.Shutdown()
		return nil, fmt.Errorf("register expire job %q: %w", cfg.ExpireSchedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.interval.Start()
	s.cron.Start()
	s.log.Info("background jobs started",
		"reconcile_interval", s.cfg.ReconcileInterval,
		"expire_schedule", s.cfg.ExpireSchedule)
}

// Shutdown stops both schedulers and waits for running jobs until ctx ends.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.cancel()
	cronDone := s.cron.Stop()
	err := s.interval.Shutdown()

	select {
	case <-cronDone.Done():
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}

// RunReconcile is one reconciliation pass over stale processing payments.
func (s *Scheduler) RunReconcile(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	report, err := s.reconciler.Reconcile(ctx, s.cfg.ReconcileStaleAfter, batchSize)
	if err != nil {
		s.log.Error("[CRON] payos reconcile failed", "error", err)
		return
	}
	if report.Checked > 0 {
		s.log.Info("[CRON] payos reconcile done",
			"checked", report.Checked, "updated", report.Updated, "failed", report.Failed)
	}
}

// RunExpire cancels PayOS orders that never got paid within the TTL.
func (s *Scheduler) RunExpire(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	n, err := s.expirer.ExpirePendingOrders(ctx, s.cfg.PendingOrderTTL, batchSize)
	if err != nil {
		s.log.Error("[CRON] expire pending orders failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("[CRON] expired pending orders", "count", n)
	}
}

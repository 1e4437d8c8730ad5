package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/settlekit/internal/clock"
	invoicedomain "github.com/smallbiznis/settlekit/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/settlekit/internal/observability/metrics"
	sellertierdomain "github.com/smallbiznis/settlekit/internal/sellertier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobTierRecompute        = "tier_recompute"
	JobInvoiceDeliveryRetry = "invoice_delivery_retry"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Tiers    sellertierdomain.Service
	Invoices invoicedomain.Service
	Locker   Locker
	Config   Config `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	tiers    sellertierdomain.Service
	invoices invoicedomain.Service
	locker   Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Tiers == nil || p.Invoices == nil {
		return nil, ErrInvalidConfig
	}
	locker := p.Locker
	if locker == nil {
		locker = localLocker{}
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		tiers:    p.Tiers,
		invoices: p.Invoices,
		locker:   locker,
	}, nil
}

// runJob bounds fn by timeout and records run metrics. A deadline is a soft
// failure: it is counted and logged but not returned.
func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// withLock runs fn only if this instance wins the job's lock. Losing the
// lock is a skip, not an error.
func (s *Scheduler) withLock(ctx context.Context, job string, ttl time.Duration, fn func(ctx context.Context) error) error {
	key := lockKeyPrefix + job
	token, ok, err := s.locker.TryLock(ctx, key, ttl)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		obsmetrics.Scheduler().IncJobSkipped(job, obsmetrics.SchedulerSkipReasonLockHeld)
		s.logger(ctx).Info("scheduler.job.skipped",
			zap.String("job", job),
			zap.String("reason", obsmetrics.SchedulerSkipReasonLockHeld),
		)
		return nil
	}
	defer func() {
		// The job context may already be done; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.logger(ctx).Warn("scheduler lock release failed", zap.String("job", job), zap.Error(err))
		}
	}()
	return fn(ctx)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobTierRecompute, func(ctx context.Context) error {
			return s.runJob(ctx, JobTierRecompute, 0, s.cfg.TierRecomputeTimeout, s.TierRecomputeJob)
		}},
		{JobInvoiceDeliveryRetry, func(ctx context.Context) error {
			return s.runJob(ctx, JobInvoiceDeliveryRetry, s.cfg.DeliveryBatchSize, s.cfg.DeliveryRetryTimeout, s.InvoiceDeliveryRetryJob)
		}},
	}

	for _, job := range jobs {
		if parent.Err() != nil {
			return errors.Join(err, parent.Err())
		}
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now()
	schedMetrics := obsmetrics.Scheduler()

	for {
		if runLag := s.clock.Now().Sub(nextRun); runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

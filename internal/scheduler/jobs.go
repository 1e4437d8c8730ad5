package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	obsmetrics "github.com/smallbiznis/settlekit/internal/observability/metrics"
	"go.uber.org/zap"
)

// lockSlack keeps the lock alive a little past the job deadline.
const lockSlack = time.Minute

// TierRecomputeJob recalculates every seller's tier under the cluster lock.
// Failed sellers are reported and retried on the next run.
func (s *Scheduler) TierRecomputeJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobTierRecompute, 0)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	return s.withLock(ctx, JobTierRecompute, s.cfg.TierRecomputeTimeout+lockSlack, func(ctx context.Context) error {
		report, err := s.tiers.RecomputeAll(ctx)
		run.AddProcessed(report.Recalculated)

		schedMetrics := obsmetrics.Scheduler()
		schedMetrics.AddBatchProcessed(JobTierRecompute, "sellers", report.Recalculated)
		schedMetrics.AddTierTransitions(report.Upgraded, report.Downgraded)

		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.tier_recompute.failed", JobTierRecompute, err)
			return err
		}

		var jobErr error
		for _, failure := range report.Failures {
			cause := failure.Err
			if cause == nil {
				cause = errors.New(failure.Message)
			}
			jobErr = errors.Join(jobErr, fmt.Errorf("seller %s: %w", failure.SellerID, cause))
		}
		run.AddErrors(report.Errors)
		if report.Errors > 0 {
			s.logger(ctx).Warn("scheduler.tier_recompute.partial",
				zap.Int("recalculated", report.Recalculated),
				zap.Int("errors", report.Errors),
			)
		}
		return jobErr
	})
}

// InvoiceDeliveryRetryJob resends invoices whose last delivery attempt failed.
func (s *Scheduler) InvoiceDeliveryRetryJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobInvoiceDeliveryRetry, s.cfg.DeliveryBatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	return s.withLock(ctx, JobInvoiceDeliveryRetry, s.cfg.DeliveryRetryTimeout+lockSlack, func(ctx context.Context) error {
		report, err := s.invoices.RetryFailedDeliveries(ctx, s.cfg.DeliveryBatchSize)
		run.AddProcessed(report.Attempted)
		run.AddErrors(report.Failed)
		obsmetrics.Scheduler().AddBatchProcessed(JobInvoiceDeliveryRetry, "invoices", report.Attempted)

		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.invoice_delivery_retry.failed", JobInvoiceDeliveryRetry, err)
			return err
		}
		if report.Exhausted > 0 {
			s.logger(ctx).Warn("invoices exhausted delivery attempts", zap.Int("count", report.Exhausted))
		}
		return nil
	})
}

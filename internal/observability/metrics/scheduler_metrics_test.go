package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/settlekit/pkg/errs"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "wrapped_deadline", err: fmt.Errorf("recompute: %w", context.DeadlineExceeded), want: SchedulerJobReasonDeadlineExceeded},
		{name: "validation", err: errs.Validation("tiers", errors.New("gap")), want: SchedulerJobReasonValidation},
		{name: "configuration", err: errs.Configuration("no tiers", nil), want: SchedulerJobReasonConfiguration},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySchedulerJobReason(tc.err))
		})
	}
}

func TestIsSchedulerErrorRetryable(t *testing.T) {
	assert.True(t, IsSchedulerErrorRetryable(context.DeadlineExceeded))
	assert.True(t, IsSchedulerErrorRetryable(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsSchedulerErrorRetryable(errs.Validation("tiers", errors.New("gap"))))
	assert.False(t, IsSchedulerErrorRetryable(nil))
}

func TestAddBatchProcessedAndTransitions(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "settlekit", Environment: "test"})

	m.AddBatchProcessed("tier_recompute", "sellers", 3)
	m.AddBatchProcessed("tier_recompute", "sellers", 0)
	m.AddTierTransitions(2, 0)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.batchProcessed.WithLabelValues("tier_recompute", "sellers")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.tierTransitions.WithLabelValues("upgrade")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.tierTransitions.WithLabelValues("downgrade")))
}

func TestNilSchedulerMetricsIsSafe(t *testing.T) {
	var m *SchedulerMetrics
	m.IncJobRun("x")
	m.IncJobError("x", errors.New("boom"))
	m.AddTierTransitions(1, 1)
}

package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
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
		{name: "canceled wrapped", err: fmt.Errorf("sync: %w", context.Canceled), want: SchedulerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "other pg error", err: &pgconn.PgError{Code: "42P01"}, want: SchedulerJobReasonDB},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySchedulerJobReason(tc.err))
		})
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "feeledger", Environment: "test"})

	m.AddBatchProcessed("class_fee_sync", "classes", 3)
	m.AddBatchProcessed("class_fee_sync", "classes", 0)

	got := testutil.ToFloat64(m.batchProcessed.WithLabelValues("class_fee_sync", "classes"))
	assert.Equal(t, float64(3), got)
}

func TestFeeMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newFeeMetrics(registry, Config{ServiceName: "feeledger", Environment: "test"})

	m.ObserveCalculation("student_fee_details", OutcomeSuccess, 0)
	m.ObserveCalculation("student_fee_details", OutcomeSuccess, 0)
	m.AddOrphanedPayments(2)
	m.AddOrphanedPayments(-1)
	m.IncSummaryCache(CacheHit)
	m.IncClassSyncStudent(OutcomeFailure)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.calculations.WithLabelValues("student_fee_details", OutcomeSuccess)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.orphanedPayments))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.summaryCache.WithLabelValues(CacheHit)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.classSyncStudents.WithLabelValues(OutcomeFailure)))

	var nilMetrics *FeeMetrics
	nilMetrics.ObserveCalculation("x", OutcomeFailure, 0)
}

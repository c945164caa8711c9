package service

import (
	"context"
	"errors"
	"time"

	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/observability/logger"
	"github.com/smallbiznis/feeledger/internal/observability/metrics"
	"go.uber.org/zap"
)

// Operation names used in metrics and logs.
const (
	opDetails     = "details"
	opSummary     = "summary"
	opStructure   = "class_structure"
	opChildren    = "children"
	opConsistency = "consistency"
	opSync        = "class_sync"
)

// classify maps err to the user facing message and metric outcome.
// fallback is the message for store failures.
func classify(err error, fallback string) (string, string) {
	switch {
	case errors.Is(err, feedomain.ErrStudentNotFound):
		return feedomain.MessageStudentNotFound, metrics.OutcomeNotFound
	case errors.Is(err, feedomain.ErrClassNotFound):
		return feedomain.MessageClassNotFound, metrics.OutcomeNotFound
	case errors.Is(err, feedomain.ErrParentNotFound):
		return feedomain.MessageParentNotFound, metrics.OutcomeNotFound
	case errors.Is(err, feedomain.ErrInvalidTenant), errors.Is(err, feedomain.ErrInvalidID):
		return feedomain.MessageInvalidRequest, metrics.OutcomeFailure
	default:
		return fallback, metrics.OutcomeFailure
	}
}

func fail[T any](ctx context.Context, s *Service, operation, fallback string, err error, started time.Time) feedomain.Result[T] {
	message, outcome := classify(err, fallback)
	s.feeMetrics.ObserveCalculation(operation, outcome, s.clock.Now().Sub(started))

	log := logger.WithContext(ctx, s.log).With(zap.String("operation", operation))
	if outcome == metrics.OutcomeNotFound {
		log.Info("fee lookup missed", zap.Error(err))
	} else {
		log.Warn("fee operation failed", zap.Error(err))
	}
	return feedomain.Fail[T](message, err)
}

func succeed[T any](s *Service, operation string, data T, started time.Time) feedomain.Result[T] {
	s.feeMetrics.ObserveCalculation(operation, metrics.OutcomeSuccess, s.clock.Now().Sub(started))
	return feedomain.Succeed(data)
}

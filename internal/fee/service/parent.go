package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const childrenConcurrency = 4

// GetChildrenFeeDetails computes the fee details of every child of a parent.
// A child that fails carries its error message; the others are still
// returned. Totals cover the children that succeeded.
func (s *Service) GetChildrenFeeDetails(ctx context.Context, tenantID, parentID snowflake.ID) feedomain.Result[feedomain.ParentFeeOverview] {
	started := s.clock.Now()
	ctx, span := tracing.Start(ctx, tracerName, "fee.GetChildrenFeeDetails",
		attribute.String("tenant_id", tenantID.String()),
		attribute.String("parent_id", parentID.String()),
	)

	overview, err := s.childrenFeeDetails(ctx, tenantID, parentID)
	tracing.End(span, err)
	if err != nil {
		return fail[feedomain.ParentFeeOverview](ctx, s, opChildren, feedomain.MessageLoadFailed, err, started)
	}
	return succeed(s, opChildren, *overview, started)
}

func (s *Service) childrenFeeDetails(ctx context.Context, tenantID, parentID snowflake.ID) (*feedomain.ParentFeeOverview, error) {
	if tenantID == 0 {
		return nil, feedomain.ErrInvalidTenant
	}
	if parentID == 0 {
		return nil, feedomain.ErrInvalidID
	}

	children, err := s.repo.ListChildren(ctx, tenantID, parentID)
	if err != nil {
		return nil, feedomain.NewFetchError("students", err)
	}
	if len(children) == 0 {
		return nil, feedomain.ErrParentNotFound
	}

	out := make([]feedomain.ChildFeeDetails, len(children))
	opts := feedomain.DefaultDetailOptions()

	var g errgroup.Group
	g.SetLimit(childrenConcurrency)
	for i, child := range children {
		g.Go(func() error {
			entry := feedomain.ChildFeeDetails{StudentID: child.ID.String(), Name: child.Name}
			gen := s.cache.Generation(ctx, tenantID, child.ID)
			l, err := s.loadLedgerFor(ctx, tenantID, child)
			if err != nil {
				message, _ := classify(err, feedomain.MessageLoadFailed)
				entry.Error = &message
			} else {
				details := buildDetails(l, opts, s.clock.Now())
				entry.Details = &details
				s.cache.Set(ctx, tenantID, child.ID, gen, buildSummary(l))
			}
			out[i] = entry
			return nil
		})
	}
	_ = g.Wait()

	overview := &feedomain.ParentFeeOverview{
		ParentID:         parentID.String(),
		Children:         out,
		TotalDue:         decimal.Zero,
		TotalPaid:        decimal.Zero,
		TotalOutstanding: decimal.Zero,
	}
	for _, child := range out {
		if child.Details == nil {
			continue
		}
		overview.TotalDue = overview.TotalDue.Add(child.Details.Fees.TotalDue)
		overview.TotalPaid = overview.TotalPaid.Add(child.Details.Fees.TotalPaid)
		overview.TotalOutstanding = overview.TotalOutstanding.Add(child.Details.Fees.TotalOutstanding)
	}
	overview.Status = OverallStatus(overview.TotalPaid, overview.TotalOutstanding)
	return overview, nil
}

package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/feeledger/internal/audit/domain"
	"github.com/smallbiznis/feeledger/internal/clock"
	obscontext "github.com/smallbiznis/feeledger/internal/observability/context"
	"github.com/smallbiznis/feeledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Record stores entry with the caller and request id found in ctx.
func (s *Service) Record(ctx context.Context, tenantID snowflake.ID, entry auditdomain.Entry) error {
	if tenantID == 0 {
		return auditdomain.ErrInvalidTenant
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	row := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		TenantID:   tenantID,
		Action:     strings.TrimSpace(entry.Action),
		TargetType: strings.TrimSpace(entry.TargetType),
		TargetID:   entry.TargetID,
		Metadata:   metadataFor(ctx, entry.Metadata),
		CreatedAt:  s.clock.Now().UTC(),
	}
	if entry.StudentID != 0 {
		studentID := entry.StudentID
		row.StudentID = &studentID
	}
	row.ActorType, row.ActorID = actorFrom(ctx)

	if err := s.repo.Insert(ctx, &row); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", row.Action),
			zap.String("target_id", row.TargetID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, tenantID snowflake.ID, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	filter, err := buildFilter(tenantID, req)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	items, pageInfo := pagination.Page(items, filter.Limit, func(item *auditdomain.AuditLog) pagination.Cursor {
		return pagination.Cursor{ID: item.ID, CreatedAt: item.CreatedAt.UTC()}
	})

	resp := auditdomain.ListAuditLogResponse{
		PageInfo:  pageInfo,
		AuditLogs: make([]auditdomain.AuditLog, 0, len(items)),
	}
	for _, item := range items {
		resp.AuditLogs = append(resp.AuditLogs, *item)
	}
	return resp, nil
}

func buildFilter(tenantID snowflake.ID, req auditdomain.ListAuditLogRequest) (auditdomain.ListFilter, error) {
	if tenantID == 0 {
		return auditdomain.ListFilter{}, auditdomain.ErrInvalidTenant
	}
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListFilter{}, auditdomain.ErrInvalidTimeRange
	}

	filter := auditdomain.ListFilter{
		TenantID:   tenantID,
		Action:     req.Action,
		TargetType: req.TargetType,
		ActorType:  req.ActorType,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Limit:      clampPageSize(req.PageSize),
	}

	var err error
	if filter.StudentID, err = optionalID(req.StudentID, auditdomain.ErrInvalidStudentID); err != nil {
		return auditdomain.ListFilter{}, err
	}
	if filter.TargetID, err = optionalID(req.TargetID, auditdomain.ErrInvalidTargetID); err != nil {
		return auditdomain.ListFilter{}, err
	}
	if filter.Cursor, err = decodePageToken(req.PageToken); err != nil {
		return auditdomain.ListFilter{}, err
	}
	return filter, nil
}

func clampPageSize(size int) int {
	switch {
	case size <= 0:
		return defaultPageSize
	case size > maxPageSize:
		return maxPageSize
	default:
		return size
	}
}

func optionalID(value string, invalid error) (snowflake.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	id, err := snowflake.ParseString(value)
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}

func decodePageToken(token string) (*pagination.Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	cursor, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, auditdomain.ErrInvalidPageToken
	}
	return cursor, nil
}

func metadataFor(ctx context.Context, in map[string]any) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(in)+1)
	for key, value := range in {
		if key != "" {
			out[key] = value
		}
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		out["request_id"] = requestID
	}
	return out
}

// actorFrom reads the caller recorded by the HTTP layer. Work without one is
// attributed to the system.
func actorFrom(ctx context.Context) (string, *string) {
	role, id := obscontext.ActorFromContext(ctx)
	role = strings.TrimSpace(role)
	if role == "" {
		return auditdomain.ActorSystem, nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return role, nil
	}
	return role, &id
}

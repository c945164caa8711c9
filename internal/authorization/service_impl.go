package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/feeledger/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, tenantID string, object string, action string) error {
	role := strings.ToLower(strings.TrimSpace(actor.Role))
	if !knownRole(role) {
		return ErrInvalidActor
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return ErrInvalidTenant
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	roleName := "role:" + role
	domain := fmt.Sprintf("tenant:%s", tenantID)
	subject := roleName
	if id := strings.TrimSpace(actor.ID); id != "" {
		subject = "actor:" + id
		if err := s.ensureGrouping(subject, roleName, domain); err != nil {
			return err
		}
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		logger.WithContext(ctx, s.log).Info("authorization denied",
			zap.String("role", role),
			zap.String("tenant_id", tenantID),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping binds subject to exactly one role inside domain.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func knownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleAccountant, RoleParent, RoleStudent, RoleSystem:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Admin
		{"role:admin", ObjectFee, ActionFeeView},
		{"role:admin", ObjectFee, ActionFeeAudit},
		{"role:admin", ObjectPayment, ActionPaymentRecord},
		{"role:admin", ObjectDiscount, ActionDiscountManage},
		{"role:admin", ObjectFeeStructure, ActionFeeStructureManage},

		// Accountant
		{"role:accountant", ObjectFee, ActionFeeView},
		{"role:accountant", ObjectFee, ActionFeeAudit},
		{"role:accountant", ObjectPayment, ActionPaymentRecord},
		{"role:accountant", ObjectDiscount, ActionDiscountManage},

		// Parents and students only read
		{"role:parent", ObjectFee, ActionFeeView},
		{"role:student", ObjectFee, ActionFeeView},

		// System (scheduler and integrations)
		{"role:system", ObjectFee, ActionFeeView},
		{"role:system", ObjectFee, ActionFeeAudit},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}

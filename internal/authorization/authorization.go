package authorization

import (
	"context"
	"errors"
)

// Service decides whether an actor holding role may perform action on object
// inside a tenant.
type Service interface {
	Authorize(ctx context.Context, actor Actor, tenantID string, object string, action string) error
}

// Actor is the caller as asserted by the upstream gateway.
type Actor struct {
	Role string
	ID   string
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

const (
	RoleAdmin      = "admin"
	RoleAccountant = "accountant"
	RoleParent     = "parent"
	RoleStudent    = "student"
	RoleSystem     = "system"
)

const (
	ObjectFee          = "fee"
	ObjectPayment      = "payment"
	ObjectDiscount     = "discount"
	ObjectFeeStructure = "fee_structure"
)

const (
	ActionFeeView            = "fee.view"
	ActionFeeAudit           = "fee.audit"
	ActionPaymentRecord      = "payment.record"
	ActionDiscountManage     = "discount.manage"
	ActionFeeStructureManage = "fee_structure.manage"
)

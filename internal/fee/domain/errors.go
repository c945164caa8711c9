package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTenant        = errors.New("invalid_tenant")
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidComponent     = errors.New("invalid_component")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidDiscountType  = errors.New("invalid_discount_type")
	ErrInvalidDiscountValue = errors.New("invalid_discount_value")
	ErrInvalidPaymentDate   = errors.New("invalid_payment_date")
	ErrInvalidPaymentMode   = errors.New("invalid_payment_mode")
	ErrMalformedRecord      = errors.New("malformed_record")
	ErrLegacyFeeRow         = errors.New("legacy_fee_row")

	ErrDuplicateReceiptNumber = errors.New("duplicate_receipt_number")

	ErrStudentNotFound      = errors.New("student_not_found")
	ErrClassNotFound        = errors.New("class_not_found")
	ErrParentNotFound       = errors.New("parent_not_found")
	ErrFeeComponentNotFound = errors.New("fee_component_not_found")
	ErrDiscountNotFound     = errors.New("discount_not_found")
	ErrPaymentNotFound      = errors.New("payment_not_found")

	ErrFetchFailed = errors.New("fetch_failed")
)

// FetchError reports a failed read from the record store.
type FetchError struct {
	Resource string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

// NewFetchError wraps err as a FetchError for resource. A nil err stays nil.
func NewFetchError(resource string, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Resource: resource, Err: err}
}

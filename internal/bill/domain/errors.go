package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSociety        = errors.New("invalid_society")
	ErrInvalidUnit           = errors.New("invalid_unit")
	ErrInvalidID             = errors.New("invalid_id")
	ErrInvalidForMonth       = errors.New("invalid_for_month")
	ErrInvalidStatus         = errors.New("invalid_status")
	ErrInvalidPaymentMethod  = errors.New("invalid_payment_method")
	ErrInvalidTransactionRef = errors.New("invalid_transaction_ref")
	ErrInvalidAmountPaid     = errors.New("invalid_amount_paid")
	ErrInvalidPageToken      = errors.New("invalid_page_token")
	ErrNotFound              = errors.New("bill_not_found")
	ErrUnitNotFound          = errors.New("unit_not_found")

	ErrDuplicateBill       = errors.New("duplicate_bill")
	ErrNoApplicableRule    = errors.New("no_applicable_rule")
	ErrAlreadyPaid         = errors.New("already_paid")
	ErrInsufficientPayment = errors.New("insufficient_payment")
)

// DuplicateBillError carries the bill that already covers the unit and month.
type DuplicateBillError struct {
	UnitID         snowflake.ID
	ForMonth       string
	ExistingBillID snowflake.ID
}

func (e *DuplicateBillError) Error() string {
	return fmt.Sprintf("%s: unit %s already billed for %s", ErrDuplicateBill, e.UnitID, e.ForMonth)
}

func (e *DuplicateBillError) Unwrap() error { return ErrDuplicateBill }

// InsufficientPaymentError reports the authoritative total at the time of payment.
type InsufficientPaymentError struct {
	Required decimal.Decimal
	Paid     decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("%s: required %s, paid %s", ErrInsufficientPayment, e.Required.StringFixed(2), e.Paid.StringFixed(2))
}

func (e *InsufficientPaymentError) Unwrap() error { return ErrInsufficientPayment }

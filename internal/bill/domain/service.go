package domain

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societybill/internal/maintenancerule/resolver"
	"github.com/smallbiznis/societybill/pkg/db/pagination"
)

type GenerateBillRequest struct {
	SocietyID snowflake.ID
	UnitID    snowflake.ID
	ForMonth  string
}

type GetBillRequest struct {
	SocietyID snowflake.ID
	ID        snowflake.ID
}

// ListBillRequest filters a society's bills. UnitIDs, when non-nil, restricts the
// result to those units; an empty non-nil slice matches nothing.
type ListBillRequest struct {
	SocietyID snowflake.ID
	UnitID    snowflake.ID
	UnitIDs   []snowflake.ID
	ForMonth  string
	Status    string
	PageToken string
	PageSize  int
}

type ListBillResponse struct {
	pagination.PageInfo
	Bills []Bill `json:"bills"`
}

type RecordPaymentRequest struct {
	SocietyID      snowflake.ID
	BillID         snowflake.ID
	Method         string
	TransactionRef string
	AmountPaid     decimal.Decimal
}

type ResolveRuleRequest struct {
	SocietyID snowflake.ID
	UnitID    snowflake.ID
}

// GenerationReport summarises a batch run for one society and month.
type GenerationReport struct {
	SocietyID snowflake.ID      `json:"society_id"`
	ForMonth  string            `json:"for_month"`
	Created   []snowflake.ID    `json:"created_bill_ids"`
	Duplicate int               `json:"duplicate"`
	NoRule    []snowflake.ID    `json:"units_without_rule"`
	Failed    map[string]string `json:"failed,omitempty"`
}

type Service interface {
	GenerateBill(context.Context, GenerateBillRequest) (Bill, error)
	GenerateForSociety(ctx context.Context, societyID snowflake.ID, forMonth string) (GenerationReport, error)
	GetBill(context.Context, GetBillRequest) (Bill, error)
	ListBills(context.Context, ListBillRequest) (ListBillResponse, error)
	RecordPayment(context.Context, RecordPaymentRequest) (Bill, error)
	ResolveApplicableRule(context.Context, ResolveRuleRequest) (resolver.Resolution, error)
}

func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusPending:
		return StatusPending, nil
	case StatusOverdue:
		return StatusOverdue, nil
	case StatusPaid:
		return StatusPaid, nil
	default:
		return "", ErrInvalidStatus
	}
}

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(value))) {
	case PaymentMethodCash:
		return PaymentMethodCash, nil
	case PaymentMethodCheque:
		return PaymentMethodCheque, nil
	case PaymentMethodUPI:
		return PaymentMethodUPI, nil
	case PaymentMethodBankTransfer:
		return PaymentMethodBankTransfer, nil
	case PaymentMethodCard:
		return PaymentMethodCard, nil
	case PaymentMethodOther:
		return PaymentMethodOther, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}

package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societybill/pkg/db/pagination"
)

type CreateRuleRequest struct {
	SocietyID      snowflake.ID
	Scope          string
	ScopeRef       string
	AmountType     string
	Amount         *decimal.Decimal
	BHKAmounts     map[string]decimal.Decimal
	BillingDay     int
	DueDays        int
	PenaltyEnabled bool
	PenaltyType    string
	PenaltyValue   decimal.Decimal
	IsActive       *bool
}

// UpdateRuleRequest applies only the non-nil fields.
type UpdateRuleRequest struct {
	SocietyID      snowflake.ID
	ID             snowflake.ID
	Scope          *string
	ScopeRef       *string
	AmountType     *string
	Amount         *decimal.Decimal
	BHKAmounts     map[string]decimal.Decimal
	BillingDay     *int
	DueDays        *int
	PenaltyEnabled *bool
	PenaltyType    *string
	PenaltyValue   *decimal.Decimal
}

type ListRuleRequest struct {
	SocietyID snowflake.ID
	Scope     string
	IsActive  *bool
	PageToken string
	PageSize  int
}

type ListRuleResponse struct {
	pagination.PageInfo
	Rules []Rule `json:"rules"`
}

type Service interface {
	Create(context.Context, CreateRuleRequest) (Rule, error)
	Update(context.Context, UpdateRuleRequest) (Rule, error)
	Activate(ctx context.Context, societyID, ruleID snowflake.ID) (Rule, error)
	Deactivate(ctx context.Context, societyID, ruleID snowflake.ID) (Rule, error)
	Get(ctx context.Context, societyID, ruleID snowflake.ID) (Rule, error)
	List(context.Context, ListRuleRequest) (ListRuleResponse, error)
	ListActive(ctx context.Context, societyID snowflake.ID) ([]Rule, error)
	ReloadActive(ctx context.Context, societyID snowflake.ID) ([]Rule, error)
}

var (
	ErrInvalidSociety      = errors.New("invalid_society")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidScope        = errors.New("invalid_scope")
	ErrInvalidScopeRef     = errors.New("invalid_scope_ref")
	ErrInvalidAmountType   = errors.New("invalid_amount_type")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidBHKAmounts   = errors.New("invalid_bhk_amounts")
	ErrInvalidBillingDay   = errors.New("invalid_billing_day")
	ErrInvalidDueDays      = errors.New("invalid_due_days")
	ErrInvalidPenaltyType  = errors.New("invalid_penalty_type")
	ErrInvalidPenaltyValue = errors.New("invalid_penalty_value")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrNotFound            = errors.New("rule_not_found")
)

package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ruledomain "github.com/smallbiznis/societybill/internal/maintenancerule/domain"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusOverdue Status = "overdue"
	StatusPaid    Status = "paid"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodUPI          PaymentMethod = "upi"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodOther        PaymentMethod = "other"
)

// Bill is one unit's maintenance charge for one month. Penalty terms are copied
// from the rule at generation so later rule edits never reprice an issued bill.
type Bill struct {
	ID              snowflake.ID           `gorm:"primaryKey" json:"id"`
	SocietyID       snowflake.ID           `gorm:"not null;index" json:"society_id"`
	UnitID          snowflake.ID           `gorm:"not null;uniqueIndex:ux_maintenance_bills_unit_month,priority:1" json:"unit_id"`
	RuleID          snowflake.ID           `gorm:"not null;index" json:"rule_id"`
	ForMonth        string                 `gorm:"type:varchar(7);not null;uniqueIndex:ux_maintenance_bills_unit_month,priority:2" json:"for_month"`
	Amount          decimal.Decimal        `gorm:"type:decimal(12,2);not null" json:"amount"`
	DueDate         time.Time              `gorm:"type:date;not null;index" json:"due_date"`
	LateFeeApplied  decimal.Decimal        `gorm:"type:decimal(12,2);not null;default:0" json:"late_fee_applied"`
	TotalAmount     decimal.Decimal        `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Status          Status                 `gorm:"type:varchar(16);not null" json:"status"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	PaymentMethod   *PaymentMethod         `gorm:"type:varchar(32)" json:"payment_method,omitempty"`
	TransactionRef  *string                `gorm:"type:varchar(128)" json:"transaction_ref,omitempty"`
	AmountPaid      decimal.NullDecimal    `gorm:"type:decimal(12,2)" json:"amount_paid"`
	PenaltyEnabled  bool                   `gorm:"not null;default:false" json:"penalty_enabled"`
	PenaltyType     ruledomain.PenaltyType `gorm:"type:varchar(16);not null;default:''" json:"penalty_type,omitempty"`
	PenaltyValue    decimal.Decimal        `gorm:"type:decimal(12,2);not null;default:0" json:"penalty_value"`
	LastEvaluatedAt *time.Time             `json:"last_evaluated_at,omitempty"`
	CreatedAt       time.Time              `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time              `gorm:"not null" json:"updated_at"`
}

func (Bill) TableName() string { return "maintenance_bills" }

func (b Bill) IsPaid() bool { return b.Status == StatusPaid }

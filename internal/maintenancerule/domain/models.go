package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Scope string

const (
	ScopeGeneral  Scope = "general"
	ScopeBuilding Scope = "building_specific"
	ScopeBHK      Scope = "bhk_specific"
)

type AmountType string

const (
	AmountTypeFlat    AmountType = "flat"
	AmountTypeBHKWise AmountType = "bhk_wise"
)

type PenaltyType string

const (
	PenaltyTypePercentage PenaltyType = "percentage"
	PenaltyTypeFixed      PenaltyType = "fixed"
	PenaltyTypeDaily      PenaltyType = "daily"
)

// BHKAmounts maps a normalized bhk key to its monthly charge.
type BHKAmounts map[string]decimal.Decimal

// Rule is a maintenance charge definition for a society.
type Rule struct {
	ID             snowflake.ID                     `gorm:"primaryKey" json:"id"`
	SocietyID      snowflake.ID                     `gorm:"not null;index:idx_maintenance_rules_society_active,priority:1" json:"society_id"`
	Scope          Scope                            `gorm:"type:varchar(32);not null" json:"scope"`
	ScopeRef       *string                          `gorm:"type:varchar(64)" json:"scope_ref,omitempty"`
	AmountType     AmountType                       `gorm:"type:varchar(16);not null" json:"amount_type"`
	Amount         decimal.NullDecimal              `gorm:"type:decimal(12,2)" json:"amount"`
	BHKAmounts     datatypes.JSONType[BHKAmounts]   `gorm:"column:bhk_amounts" json:"bhk_amounts"`
	BillingDay     int                              `gorm:"not null" json:"billing_day"`
	DueDays        int                              `gorm:"not null;default:0" json:"due_days"`
	PenaltyEnabled bool                             `gorm:"not null;default:false" json:"penalty_enabled"`
	PenaltyType    PenaltyType                      `gorm:"type:varchar(16);not null;default:''" json:"penalty_type,omitempty"`
	PenaltyValue   decimal.Decimal                  `gorm:"type:decimal(12,2);not null;default:0" json:"penalty_value"`
	IsActive       bool                             `gorm:"not null;index:idx_maintenance_rules_society_active,priority:2" json:"is_active"`
	CreatedAt      time.Time                        `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time                        `gorm:"not null" json:"updated_at"`
}

func (Rule) TableName() string { return "maintenance_rules" }

// BHKTable returns the bhk amounts, never nil.
func (r Rule) BHKTable() BHKAmounts {
	table := r.BHKAmounts.Data()
	if table == nil {
		return BHKAmounts{}
	}
	return table
}

// Target returns the typed scope of the rule.
func (r Rule) Target() ScopeTarget {
	ref := ""
	if r.ScopeRef != nil {
		ref = *r.ScopeRef
	}
	switch r.Scope {
	case ScopeBuilding:
		return BuildingScope{BuildingID: ref}
	case ScopeBHK:
		return BHKScope{BHKType: ref}
	default:
		return GeneralScope{}
	}
}

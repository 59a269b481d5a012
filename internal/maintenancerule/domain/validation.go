package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	MinBillingDay = 1
	MaxBillingDay = 28
)

func ParseScope(value string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(value))) {
	case ScopeGeneral:
		return ScopeGeneral, nil
	case ScopeBuilding:
		return ScopeBuilding, nil
	case ScopeBHK:
		return ScopeBHK, nil
	default:
		return "", ErrInvalidScope
	}
}

func ParseAmountType(value string) (AmountType, error) {
	switch AmountType(strings.ToLower(strings.TrimSpace(value))) {
	case AmountTypeFlat:
		return AmountTypeFlat, nil
	case AmountTypeBHKWise:
		return AmountTypeBHKWise, nil
	default:
		return "", ErrInvalidAmountType
	}
}

func ParsePenaltyType(value string) (PenaltyType, error) {
	switch PenaltyType(strings.ToLower(strings.TrimSpace(value))) {
	case PenaltyTypePercentage:
		return PenaltyTypePercentage, nil
	case PenaltyTypeFixed:
		return PenaltyTypeFixed, nil
	case PenaltyTypeDaily:
		return PenaltyTypeDaily, nil
	default:
		return "", ErrInvalidPenaltyType
	}
}

// NormalizeBHKAmounts lower-cases and trims keys and rounds values. Blank keys and
// duplicate keys after normalization are rejected.
func NormalizeBHKAmounts(in map[string]decimal.Decimal) (BHKAmounts, error) {
	out := make(BHKAmounts, len(in))
	for key, value := range in {
		normalized := strings.ToLower(strings.TrimSpace(key))
		if normalized == "" {
			return nil, ErrInvalidBHKAmounts
		}
		if _, exists := out[normalized]; exists {
			return nil, ErrInvalidBHKAmounts
		}
		if value.IsNegative() {
			return nil, ErrInvalidBHKAmounts
		}
		out[normalized] = value.Round(2)
	}
	return out, nil
}

// Validate normalizes rule in place and checks every structural invariant.
func Validate(rule *Rule) error {
	if rule.SocietyID == 0 {
		return ErrInvalidSociety
	}

	scope, err := ParseScope(string(rule.Scope))
	if err != nil {
		return err
	}
	rule.Scope = scope

	ref := ""
	if rule.ScopeRef != nil {
		ref = strings.TrimSpace(*rule.ScopeRef)
	}
	switch scope {
	case ScopeGeneral:
		if ref != "" {
			return ErrInvalidScopeRef
		}
		rule.ScopeRef = nil
	case ScopeBuilding:
		if ref == "" {
			return ErrInvalidScopeRef
		}
		rule.ScopeRef = &ref
	case ScopeBHK:
		ref = strings.ToLower(ref)
		if ref == "" {
			return ErrInvalidScopeRef
		}
		rule.ScopeRef = &ref
	}

	amountType, err := ParseAmountType(string(rule.AmountType))
	if err != nil {
		return err
	}
	rule.AmountType = amountType

	table := rule.BHKAmounts.Data()
	switch amountType {
	case AmountTypeFlat:
		if !rule.Amount.Valid || !rule.Amount.Decimal.IsPositive() {
			return ErrInvalidAmount
		}
		if len(table) > 0 {
			return ErrInvalidBHKAmounts
		}
		rule.Amount.Decimal = rule.Amount.Decimal.Round(2)
		rule.BHKAmounts = datatypes.NewJSONType[BHKAmounts](nil)
	case AmountTypeBHKWise:
		if rule.Amount.Valid {
			return ErrInvalidAmount
		}
		normalized, err := NormalizeBHKAmounts(table)
		if err != nil {
			return err
		}
		if len(normalized) == 0 {
			return ErrInvalidBHKAmounts
		}
		rule.BHKAmounts = datatypes.NewJSONType(normalized)
	}

	if rule.BillingDay < MinBillingDay || rule.BillingDay > MaxBillingDay {
		return ErrInvalidBillingDay
	}
	if rule.DueDays < 0 {
		return ErrInvalidDueDays
	}

	if rule.PenaltyValue.IsNegative() {
		return ErrInvalidPenaltyValue
	}
	rule.PenaltyValue = rule.PenaltyValue.Round(2)
	switch {
	case rule.PenaltyEnabled:
		penaltyType, err := ParsePenaltyType(string(rule.PenaltyType))
		if err != nil {
			return err
		}
		rule.PenaltyType = penaltyType
	case strings.TrimSpace(string(rule.PenaltyType)) != "":
		penaltyType, err := ParsePenaltyType(string(rule.PenaltyType))
		if err != nil {
			return err
		}
		rule.PenaltyType = penaltyType
	}

	return nil
}

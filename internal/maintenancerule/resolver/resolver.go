// Package resolver selects the maintenance rule that applies to a unit and
// computes the unit's base monthly charge from it.
package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societybill/internal/maintenancerule/domain"
	unitdomain "github.com/smallbiznis/societybill/internal/unit/domain"
)

// ErrNotApplicable means the rule carries no positive charge for the unit.
var ErrNotApplicable = errors.New("rule_not_applicable")

const WarningConfigurationInconsistency = "configuration_inconsistency"

// Warning flags a resolution that succeeded but exposed a configuration problem.
type Warning struct {
	Code        string         `json:"code"`
	Tier        domain.Scope   `json:"tier"`
	WinnerID    snowflake.ID   `json:"winner_rule_id"`
	ShadowedIDs []snowflake.ID `json:"shadowed_rule_ids"`
	Message     string         `json:"message"`
}

// Resolution is the outcome of Resolve. Rule is nil when nothing applies.
type Resolution struct {
	Rule     *domain.Rule
	Charge   decimal.Decimal
	Warnings []Warning
}

func (r Resolution) Found() bool { return r.Rule != nil }

// precedence lists tiers from most to least specific.
var precedence = []domain.Scope{domain.ScopeBuilding, domain.ScopeBHK, domain.ScopeGeneral}

// Resolve picks the single rule for unit from rules. Inactive rules and rules of
// other societies are ignored. Within a tier the newest rule wins; a bhk_wise rule
// without a positive entry for the unit's bhk type is skipped.
func Resolve(unit unitdomain.Unit, rules []domain.Rule) Resolution {
	candidates := lo.Filter(rules, func(rule domain.Rule, _ int) bool {
		return rule.IsActive && rule.SocietyID == unit.SocietyID && matches(rule.Target(), unit)
	})

	for _, tier := range precedence {
		inTier := lo.Filter(candidates, func(rule domain.Rule, _ int) bool {
			return rule.Scope == tier
		})
		if len(inTier) == 0 {
			continue
		}
		sortNewestFirst(inTier)

		for i := range inTier {
			charge, err := BaseCharge(inTier[i], unit.BHKType)
			if err != nil {
				continue
			}
			winner := inTier[i]
			res := Resolution{Rule: &winner, Charge: charge}
			if len(inTier) > 1 {
				res.Warnings = append(res.Warnings, inconsistency(tier, winner, inTier))
			}
			return res
		}
	}

	return Resolution{}
}

// BaseCharge computes the monthly charge of rule for a unit of bhkType.
func BaseCharge(rule domain.Rule, bhkType string) (decimal.Decimal, error) {
	switch rule.AmountType {
	case domain.AmountTypeFlat:
		if !rule.Amount.Valid || !rule.Amount.Decimal.IsPositive() {
			return decimal.Zero, ErrNotApplicable
		}
		return rule.Amount.Decimal.Round(2), nil
	case domain.AmountTypeBHKWise:
		amount, ok := rule.BHKTable()[unitdomain.NormalizeBHK(bhkType)]
		if !ok || !amount.IsPositive() {
			return decimal.Zero, ErrNotApplicable
		}
		return amount.Round(2), nil
	default:
		return decimal.Zero, ErrNotApplicable
	}
}

func matches(target domain.ScopeTarget, unit unitdomain.Unit) bool {
	switch t := target.(type) {
	case domain.BuildingScope:
		return t.BuildingID != "" && strings.TrimSpace(t.BuildingID) == strings.TrimSpace(unit.BuildingID)
	case domain.BHKScope:
		return t.BHKType != "" && unitdomain.NormalizeBHK(t.BHKType) == unit.NormalizedBHK()
	case domain.GeneralScope:
		return true
	default:
		return false
	}
}

func sortNewestFirst(rules []domain.Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.After(rules[j].CreatedAt)
		}
		return rules[i].ID > rules[j].ID
	})
}

func inconsistency(tier domain.Scope, winner domain.Rule, tierRules []domain.Rule) Warning {
	shadowed := lo.FilterMap(tierRules, func(rule domain.Rule, _ int) (snowflake.ID, bool) {
		return rule.ID, rule.ID != winner.ID
	})
	return Warning{
		Code:        WarningConfigurationInconsistency,
		Tier:        tier,
		WinnerID:    winner.ID,
		ShadowedIDs: shadowed,
		Message: fmt.Sprintf("%d active %s rules match this unit; using the most recent (%s)",
			len(tierRules), tier, winner.ID),
	}
}

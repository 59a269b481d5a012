package server

import (
	"time"

	"github.com/shopspring/decimal"
	billdomain "github.com/smallbiznis/societybill/internal/bill/domain"
	ruledomain "github.com/smallbiznis/societybill/internal/maintenancerule/domain"
	"github.com/smallbiznis/societybill/internal/maintenancerule/resolver"
)

const dateOnlyLayout = "2006-01-02"

type ruleView struct {
	ID             string            `json:"id"`
	SocietyID      string            `json:"society_id"`
	Scope          string            `json:"scope"`
	ScopeRef       *string           `json:"scope_ref,omitempty"`
	AmountType     string            `json:"amount_type"`
	Amount         *string           `json:"amount,omitempty"`
	BHKAmounts     map[string]string `json:"bhk_amounts,omitempty"`
	BillingDay     int               `json:"billing_day"`
	DueDays        int               `json:"due_days"`
	PenaltyEnabled bool              `json:"penalty_enabled"`
	PenaltyType    string            `json:"penalty_type,omitempty"`
	PenaltyValue   string            `json:"penalty_value"`
	IsActive       bool              `json:"is_active"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func newRuleView(rule ruledomain.Rule) ruleView {
	view := ruleView{
		ID:             rule.ID.String(),
		SocietyID:      rule.SocietyID.String(),
		Scope:          string(rule.Scope),
		ScopeRef:       rule.ScopeRef,
		AmountType:     string(rule.AmountType),
		BillingDay:     rule.BillingDay,
		DueDays:        rule.DueDays,
		PenaltyEnabled: rule.PenaltyEnabled,
		PenaltyType:    string(rule.PenaltyType),
		PenaltyValue:   money(rule.PenaltyValue),
		IsActive:       rule.IsActive,
		CreatedAt:      rule.CreatedAt,
		UpdatedAt:      rule.UpdatedAt,
	}
	if rule.Amount.Valid {
		amount := money(rule.Amount.Decimal)
		view.Amount = &amount
	}
	if table := rule.BHKTable(); len(table) > 0 {
		view.BHKAmounts = make(map[string]string, len(table))
		for bhk, amount := range table {
			view.BHKAmounts[bhk] = money(amount)
		}
	}
	return view
}

type billView struct {
	ID              string     `json:"id"`
	SocietyID       string     `json:"society_id"`
	UnitID          string     `json:"unit_id"`
	RuleID          string     `json:"rule_id"`
	ForMonth        string     `json:"for_month"`
	Amount          string     `json:"amount"`
	DueDate         string     `json:"due_date"`
	LateFeeApplied  string     `json:"late_fee_applied"`
	TotalAmount     string     `json:"total_amount"`
	Status          string     `json:"status"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	PaymentMethod   *string    `json:"payment_method,omitempty"`
	TransactionRef  *string    `json:"transaction_ref,omitempty"`
	AmountPaid      *string    `json:"amount_paid,omitempty"`
	PenaltyEnabled  bool       `json:"penalty_enabled"`
	PenaltyType     string     `json:"penalty_type,omitempty"`
	PenaltyValue    string     `json:"penalty_value"`
	LastEvaluatedAt *time.Time `json:"last_evaluated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func newBillView(bill billdomain.Bill) billView {
	view := billView{
		ID:              bill.ID.String(),
		SocietyID:       bill.SocietyID.String(),
		UnitID:          bill.UnitID.String(),
		RuleID:          bill.RuleID.String(),
		ForMonth:        bill.ForMonth,
		Amount:          money(bill.Amount),
		DueDate:         bill.DueDate.Format(dateOnlyLayout),
		LateFeeApplied:  money(bill.LateFeeApplied),
		TotalAmount:     money(bill.TotalAmount),
		Status:          string(bill.Status),
		PaidAt:          bill.PaidAt,
		TransactionRef:  bill.TransactionRef,
		PenaltyEnabled:  bill.PenaltyEnabled,
		PenaltyType:     string(bill.PenaltyType),
		PenaltyValue:    money(bill.PenaltyValue),
		LastEvaluatedAt: bill.LastEvaluatedAt,
		CreatedAt:       bill.CreatedAt,
		UpdatedAt:       bill.UpdatedAt,
	}
	if bill.PaymentMethod != nil {
		method := string(*bill.PaymentMethod)
		view.PaymentMethod = &method
	}
	if bill.AmountPaid.Valid {
		paid := money(bill.AmountPaid.Decimal)
		view.AmountPaid = &paid
	}
	return view
}

func newBillViews(bills []billdomain.Bill) []billView {
	views := make([]billView, 0, len(bills))
	for _, bill := range bills {
		views = append(views, newBillView(bill))
	}
	return views
}

type warningView struct {
	Code        string   `json:"code"`
	Tier        string   `json:"tier"`
	WinnerID    string   `json:"winner_rule_id"`
	ShadowedIDs []string `json:"shadowed_rule_ids"`
	Message     string   `json:"message"`
}

type resolutionView struct {
	Rule     *ruleView     `json:"rule"`
	Charge   *string       `json:"charge"`
	Warnings []warningView `json:"warnings"`
}

func newResolutionView(res resolver.Resolution) resolutionView {
	view := resolutionView{Warnings: []warningView{}}
	if res.Found() {
		rule := newRuleView(*res.Rule)
		charge := money(res.Charge)
		view.Rule = &rule
		view.Charge = &charge
	}
	for _, warning := range res.Warnings {
		shadowed := make([]string, 0, len(warning.ShadowedIDs))
		for _, id := range warning.ShadowedIDs {
			shadowed = append(shadowed, id.String())
		}
		view.Warnings = append(view.Warnings, warningView{
			Code:        warning.Code,
			Tier:        string(warning.Tier),
			WinnerID:    warning.WinnerID.String(),
			ShadowedIDs: shadowed,
			Message:     warning.Message,
		})
	}
	return view
}

type generationReportView struct {
	SocietyID      string            `json:"society_id"`
	ForMonth       string            `json:"for_month"`
	CreatedBillIDs []string          `json:"created_bill_ids"`
	Duplicate      int               `json:"duplicate"`
	NoRuleUnitIDs  []string          `json:"units_without_rule"`
	Failed         map[string]string `json:"failed,omitempty"`
}

func newGenerationReportView(report billdomain.GenerationReport) generationReportView {
	view := generationReportView{
		SocietyID:      report.SocietyID.String(),
		ForMonth:       report.ForMonth,
		CreatedBillIDs: make([]string, 0, len(report.Created)),
		Duplicate:      report.Duplicate,
		NoRuleUnitIDs:  make([]string, 0, len(report.NoRule)),
		Failed:         report.Failed,
	}
	for _, id := range report.Created {
		view.CreatedBillIDs = append(view.CreatedBillIDs, id.String())
	}
	for _, id := range report.NoRule {
		view.NoRuleUnitIDs = append(view.NoRuleUnitIDs, id.String())
	}
	return view
}

func money(value decimal.Decimal) string {
	return value.StringFixed(2)
}

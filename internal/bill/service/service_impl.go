package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societybill/internal/bill/domain"
	"github.com/smallbiznis/societybill/internal/bill/penalty"
	"github.com/smallbiznis/societybill/internal/clock"
	"github.com/smallbiznis/societybill/internal/config"
	ruledomain "github.com/smallbiznis/societybill/internal/maintenancerule/domain"
	"github.com/smallbiznis/societybill/internal/maintenancerule/resolver"
	obslogger "github.com/smallbiznis/societybill/internal/observability/logger"
	"github.com/smallbiznis/societybill/internal/observability/metrics"
	unitdomain "github.com/smallbiznis/societybill/internal/unit/domain"
	"github.com/smallbiznis/societybill/pkg/db"
	"github.com/smallbiznis/societybill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Rules   ruledomain.Service
	Units   unitdomain.Directory
	Config  *config.BillingConfigHolder `optional:"true"`
	Metrics *metrics.Metrics            `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	rules   ruledomain.Service
	units   unitdomain.Directory
	config  *config.BillingConfigHolder
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("bill.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		rules:   p.Rules,
		units:   p.Units,
		config:  p.Config,
		metrics: p.Metrics,
	}
}

func (s *Service) GenerateBill(ctx context.Context, req domain.GenerateBillRequest) (domain.Bill, error) {
	if req.SocietyID == 0 {
		return domain.Bill{}, domain.ErrInvalidSociety
	}
	if req.UnitID == 0 {
		return domain.Bill{}, domain.ErrInvalidUnit
	}
	forMonth := strings.TrimSpace(req.ForMonth)
	if _, _, err := domain.ParseForMonth(forMonth); err != nil {
		return domain.Bill{}, err
	}

	unit, err := s.findUnit(ctx, req.SocietyID, req.UnitID)
	if err != nil {
		return domain.Bill{}, err
	}

	existing, err := s.repo.FindByUnitMonth(ctx, s.db, unit.ID, forMonth)
	if err != nil {
		return domain.Bill{}, err
	}
	if existing != nil {
		s.metrics.RecordGenerationRejected(ctx, "duplicate")
		return domain.Bill{}, &domain.DuplicateBillError{UnitID: unit.ID, ForMonth: forMonth, ExistingBillID: existing.ID}
	}

	res, err := s.resolve(ctx, *unit, true)
	if err != nil {
		return domain.Bill{}, err
	}
	if !res.Found() {
		s.metrics.RecordGenerationRejected(ctx, "no_rule")
		return domain.Bill{}, domain.ErrNoApplicableRule
	}
	rule := res.Rule

	dueDate, err := domain.DueDate(forMonth, rule.BillingDay, rule.DueDays)
	if err != nil {
		return domain.Bill{}, err
	}

	now := s.clock.Now()
	bill := domain.Bill{
		ID:             s.genID.Generate(),
		SocietyID:      unit.SocietyID,
		UnitID:         unit.ID,
		RuleID:         rule.ID,
		ForMonth:       forMonth,
		Amount:         res.Charge,
		DueDate:        dueDate,
		LateFeeApplied: decimal.Zero,
		TotalAmount:    res.Charge,
		Status:         domain.StatusPending,
		PenaltyEnabled: rule.PenaltyEnabled,
		PenaltyType:    rule.PenaltyType,
		PenaltyValue:   rule.PenaltyValue,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &bill); err != nil {
		if db.IsDuplicateKeyErr(err) {
			s.metrics.RecordGenerationRejected(ctx, "duplicate")
			return domain.Bill{}, s.duplicateOf(ctx, unit.ID, forMonth)
		}
		return domain.Bill{}, err
	}

	s.metrics.RecordBillGenerated(ctx, string(rule.AmountType))
	obslogger.WithContext(ctx, s.log).Info("maintenance bill generated",
		zap.String("society_id", bill.SocietyID.String()),
		zap.String("unit_id", bill.UnitID.String()),
		zap.String("bill_id", bill.ID.String()),
		zap.String("rule_id", bill.RuleID.String()),
		zap.String("for_month", bill.ForMonth),
		zap.String("amount", bill.Amount.StringFixed(2)),
	)
	return bill, nil
}

// GenerateForSociety bills every unit of the society for forMonth. Per-unit failures
// are reported and never stop the run.
func (s *Service) GenerateForSociety(ctx context.Context, societyID snowflake.ID, forMonth string) (domain.GenerationReport, error) {
	if societyID == 0 {
		return domain.GenerationReport{}, domain.ErrInvalidSociety
	}
	forMonth = strings.TrimSpace(forMonth)
	if _, _, err := domain.ParseForMonth(forMonth); err != nil {
		return domain.GenerationReport{}, err
	}

	units, err := s.units.ListBySociety(ctx, societyID)
	if err != nil {
		return domain.GenerationReport{}, err
	}

	report := domain.GenerationReport{
		SocietyID: societyID,
		ForMonth:  forMonth,
		Created:   []snowflake.ID{},
		NoRule:    []snowflake.ID{},
		Failed:    map[string]string{},
	}
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		bill, err := s.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: societyID, UnitID: unit.ID, ForMonth: forMonth})
		switch {
		case err == nil:
			report.Created = append(report.Created, bill.ID)
		case errors.Is(err, domain.ErrDuplicateBill):
			report.Duplicate++
		case errors.Is(err, domain.ErrNoApplicableRule):
			report.NoRule = append(report.NoRule, unit.ID)
		default:
			report.Failed[unit.ID.String()] = err.Error()
		}
	}

	s.log.Info("society billing run finished",
		zap.String("society_id", societyID.String()),
		zap.String("for_month", forMonth),
		zap.Int("units", len(units)),
		zap.Int("created", len(report.Created)),
		zap.Int("duplicate", report.Duplicate),
		zap.Int("no_rule", len(report.NoRule)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (s *Service) GetBill(ctx context.Context, req domain.GetBillRequest) (domain.Bill, error) {
	if req.SocietyID == 0 {
		return domain.Bill{}, domain.ErrInvalidSociety
	}
	if req.ID == 0 {
		return domain.Bill{}, domain.ErrInvalidID
	}

	bill, err := s.repo.FindByID(ctx, s.db, req.SocietyID, req.ID)
	if err != nil {
		return domain.Bill{}, err
	}
	if bill == nil {
		return domain.Bill{}, domain.ErrNotFound
	}
	return s.evaluate(ctx, *bill, s.today()), nil
}

func (s *Service) ListBills(ctx context.Context, req domain.ListBillRequest) (domain.ListBillResponse, error) {
	if req.SocietyID == 0 {
		return domain.ListBillResponse{}, domain.ErrInvalidSociety
	}

	today := s.today()
	filter := domain.ListBillFilter{Today: today}

	if req.UnitIDs != nil {
		filter.RestrictIDs = true
		filter.UnitIDs = req.UnitIDs
	}
	if req.UnitID != 0 {
		if filter.RestrictIDs && !lo.Contains(req.UnitIDs, req.UnitID) {
			return domain.ListBillResponse{Bills: []domain.Bill{}}, nil
		}
		filter.RestrictIDs = true
		filter.UnitIDs = []snowflake.ID{req.UnitID}
	}
	if forMonth := strings.TrimSpace(req.ForMonth); forMonth != "" {
		if _, _, err := domain.ParseForMonth(forMonth); err != nil {
			return domain.ListBillResponse{}, err
		}
		filter.ForMonth = forMonth
	}
	if strings.TrimSpace(req.Status) != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			return domain.ListBillResponse{}, err
		}
		filter.Status = status
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListBillResponse{}, domain.ErrInvalidPageToken
	}
	if cursor != nil {
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListBillResponse{}, domain.ErrInvalidPageToken
		}
		if _, _, err := domain.ParseForMonth(cursor.Key); err != nil {
			return domain.ListBillResponse{}, domain.ErrInvalidPageToken
		}
		filter.AfterID = afterID
		filter.AfterMonth = cursor.Key
	}

	pageSize := pagination.NormalizePageSize(req.PageSize, s.config.Get().DefaultPageSize)
	filter.Limit = pageSize + 1

	rows, err := s.repo.List(ctx, s.db, req.SocietyID, filter)
	if err != nil {
		return domain.ListBillResponse{}, err
	}
	kept, info, err := pagination.Trim(rows, pageSize, func(bill *domain.Bill) pagination.Cursor {
		return pagination.Cursor{ID: bill.ID.String(), Key: bill.ForMonth}
	})
	if err != nil {
		return domain.ListBillResponse{}, err
	}

	bills := make([]domain.Bill, 0, len(kept))
	for _, bill := range kept {
		bills = append(bills, s.evaluate(ctx, *bill, today))
	}
	return domain.ListBillResponse{PageInfo: info, Bills: bills}, nil
}

func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (domain.Bill, error) {
	if req.SocietyID == 0 {
		return domain.Bill{}, domain.ErrInvalidSociety
	}
	if req.BillID == 0 {
		return domain.Bill{}, domain.ErrInvalidID
	}
	method, err := domain.ParsePaymentMethod(req.Method)
	if err != nil {
		return domain.Bill{}, err
	}
	ref := strings.TrimSpace(req.TransactionRef)
	if method != domain.PaymentMethodCash && ref == "" {
		return domain.Bill{}, domain.ErrInvalidTransactionRef
	}
	amountPaid := req.AmountPaid.Round(2)
	if !amountPaid.IsPositive() {
		return domain.Bill{}, domain.ErrInvalidAmountPaid
	}

	var paid domain.Bill
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bill, err := s.repo.FindByIDForUpdate(ctx, tx, req.SocietyID, req.BillID)
		if err != nil {
			return err
		}
		if bill == nil {
			return domain.ErrNotFound
		}
		if bill.IsPaid() {
			return domain.ErrAlreadyPaid
		}

		evaluated := penalty.Evaluate(*bill, s.today())
		if amountPaid.LessThan(evaluated.TotalAmount) {
			return &domain.InsufficientPaymentError{Required: evaluated.TotalAmount, Paid: amountPaid}
		}

		now := s.clock.Now()
		evaluated.Status = domain.StatusPaid
		evaluated.PaidAt = &now
		evaluated.PaymentMethod = &method
		evaluated.TransactionRef = nil
		if ref != "" {
			evaluated.TransactionRef = &ref
		}
		evaluated.AmountPaid = decimal.NewNullDecimal(amountPaid)
		evaluated.LastEvaluatedAt = &now
		evaluated.UpdatedAt = now

		rows, err := s.repo.MarkPaid(ctx, tx, &evaluated)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrAlreadyPaid
		}
		paid = evaluated
		return nil
	})
	if err != nil {
		return domain.Bill{}, err
	}

	s.metrics.RecordPayment(ctx, string(method))
	obslogger.WithContext(ctx, s.log).Info("maintenance bill paid",
		zap.String("society_id", paid.SocietyID.String()),
		zap.String("bill_id", paid.ID.String()),
		zap.String("payment_method", string(method)),
		zap.String("late_fee", paid.LateFeeApplied.StringFixed(2)),
		zap.String("total_amount", paid.TotalAmount.StringFixed(2)),
		zap.String("amount_paid", amountPaid.StringFixed(2)),
	)
	return paid, nil
}

// ResolveApplicableRule reports which rule would bill the unit today. A nil rule is a
// valid answer, not an error.
func (s *Service) ResolveApplicableRule(ctx context.Context, req domain.ResolveRuleRequest) (resolver.Resolution, error) {
	if req.SocietyID == 0 {
		return resolver.Resolution{}, domain.ErrInvalidSociety
	}
	if req.UnitID == 0 {
		return resolver.Resolution{}, domain.ErrInvalidUnit
	}
	unit, err := s.findUnit(ctx, req.SocietyID, req.UnitID)
	if err != nil {
		return resolver.Resolution{}, err
	}
	return s.resolve(ctx, *unit, false)
}

// resolve picks the unit's rule. Generation passes fresh so it never bills from a
// cached rule set another replica has since changed.
func (s *Service) resolve(ctx context.Context, unit unitdomain.Unit, fresh bool) (resolver.Resolution, error) {
	load := s.rules.ListActive
	if fresh {
		load = s.rules.ReloadActive
	}
	rules, err := load(ctx, unit.SocietyID)
	if err != nil {
		return resolver.Resolution{}, err
	}

	res := resolver.Resolve(unit, rules)
	for _, warning := range res.Warnings {
		s.metrics.RecordRuleConflict(ctx, string(warning.Tier))
		obslogger.WithContext(ctx, s.log).Warn("maintenance rule configuration inconsistency",
			zap.String("society_id", unit.SocietyID.String()),
			zap.String("unit_id", unit.ID.String()),
			zap.String("tier", string(warning.Tier)),
			zap.String("winner_rule_id", warning.WinnerID.String()),
			zap.Int("shadowed", len(warning.ShadowedIDs)),
		)
	}
	return res, nil
}

// evaluate applies the penalty engine and, when enabled, writes the derived fields back.
func (s *Service) evaluate(ctx context.Context, bill domain.Bill, today time.Time) domain.Bill {
	if bill.IsPaid() {
		return bill
	}

	evaluated := penalty.Evaluate(bill, today)
	s.metrics.RecordPenaltyEvaluation(ctx, string(evaluated.Status))

	if !s.config.Get().PersistEvaluations || !penalty.Changed(bill, evaluated) {
		return evaluated
	}
	now := s.clock.Now()
	evaluated.LastEvaluatedAt = &now
	if err := s.repo.SaveEvaluation(ctx, s.db, &evaluated); err != nil {
		s.log.Warn("failed to persist bill evaluation",
			zap.String("bill_id", bill.ID.String()),
			zap.Error(err),
		)
	}
	return evaluated
}

func (s *Service) findUnit(ctx context.Context, societyID, unitID snowflake.ID) (*unitdomain.Unit, error) {
	unit, err := s.units.FindByID(ctx, societyID, unitID)
	if err != nil {
		if errors.Is(err, unitdomain.ErrNotFound) {
			return nil, domain.ErrUnitNotFound
		}
		return nil, err
	}
	return unit, nil
}

func (s *Service) duplicateOf(ctx context.Context, unitID snowflake.ID, forMonth string) error {
	dup := &domain.DuplicateBillError{UnitID: unitID, ForMonth: forMonth}
	existing, err := s.repo.FindByUnitMonth(ctx, s.db, unitID, forMonth)
	if err == nil && existing != nil {
		dup.ExistingBillID = existing.ID
	}
	return dup
}

func (s *Service) today() time.Time {
	return domain.DateOf(s.clock.Now(), s.config.Get().Location())
}

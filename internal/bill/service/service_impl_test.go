package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societybill/internal/bill/domain"
	"github.com/smallbiznis/societybill/internal/bill/repository"
	"github.com/smallbiznis/societybill/internal/clock"
	"github.com/smallbiznis/societybill/internal/config"
	ruledomain "github.com/smallbiznis/societybill/internal/maintenancerule/domain"
	rulerepository "github.com/smallbiznis/societybill/internal/maintenancerule/repository"
	ruleservice "github.com/smallbiznis/societybill/internal/maintenancerule/service"
	unitdomain "github.com/smallbiznis/societybill/internal/unit/domain"
	unitrepository "github.com/smallbiznis/societybill/internal/unit/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const society = snowflake.ID(7)

type fixture struct {
	db    *gorm.DB
	clock *clock.FakeClock
	node  *snowflake.Node
	repo  domain.Repository
	rules ruledomain.Service
	units unitdomain.Directory
	cfg   config.BillingConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&unitdomain.Unit{}, &ruledomain.Rule{}, &domain.Bill{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))

	cfg := config.DefaultBillingConfig()
	cfg.DefaultPageSize = 2

	f := &fixture{
		db:    db,
		clock: clk,
		node:  node,
		repo:  repository.Provide(),
		cfg:   cfg,
	}
	f.rules = ruleservice.New(ruleservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Repo:   rulerepository.Provide(),
		Config: config.NewStaticBillingConfigHolder(cfg),
	})
	f.units = unitrepository.Provide(unitrepository.Params{DB: db, GenID: node})
	return f
}

func (f *fixture) service() *Service {
	return f.serviceWithRepo(f.repo)
}

func (f *fixture) serviceWithRepo(repo domain.Repository) *Service {
	return New(Params{
		DB:     f.db,
		Log:    zap.NewNop(),
		GenID:  f.node,
		Clock:  f.clock,
		Repo:   repo,
		Rules:  f.rules,
		Units:  f.units,
		Config: config.NewStaticBillingConfigHolder(f.cfg),
	}).(*Service)
}

func (f *fixture) unit(t *testing.T, building, bhk string) unitdomain.Unit {
	t.Helper()
	unit := unitdomain.Unit{SocietyID: society, BuildingID: building, BHKType: bhk}
	require.NoError(t, f.units.Insert(context.Background(), &unit))
	return unit
}

func (f *fixture) flatRule(t *testing.T, amount int64, penaltyType string, penaltyValue int64) ruledomain.Rule {
	t.Helper()
	value := decimal.NewFromInt(amount)
	rule, err := f.rules.Create(context.Background(), ruledomain.CreateRuleRequest{
		SocietyID:      society,
		Scope:          "general",
		AmountType:     "flat",
		Amount:         &value,
		BillingDay:     5,
		DueDays:        3,
		PenaltyEnabled: penaltyType != "",
		PenaltyType:    penaltyType,
		PenaltyValue:   decimal.NewFromInt(penaltyValue),
	})
	require.NoError(t, err)
	return rule
}

func (f *fixture) at(year int, month time.Month, day int) {
	f.clock.Set(time.Date(year, month, day, 10, 0, 0, 0, time.UTC))
}

func TestGenerateBillScenarioA(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()

	unit := f.unit(t, "A", "2BHK")
	rule := f.flatRule(t, 3000, "fixed", 200)

	bill, err := svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-01"})
	require.NoError(t, err)
	assert.Equal(t, rule.ID, bill.RuleID)
	assert.Equal(t, "3000.00", bill.Amount.StringFixed(2))
	assert.Equal(t, "2025-01-08", bill.DueDate.Format(time.DateOnly))
	assert.Equal(t, domain.StatusPending, bill.Status)

	f.at(2025, time.January, 7)
	got, err := svc.GetBill(ctx, domain.GetBillRequest{SocietyID: society, ID: bill.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, "3000.00", got.TotalAmount.StringFixed(2))

	f.at(2025, time.January, 9)
	got, err = svc.GetBill(ctx, domain.GetBillRequest{SocietyID: society, ID: bill.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, got.Status)
	assert.Equal(t, "200.00", got.LateFeeApplied.StringFixed(2))
	assert.Equal(t, "3200.00", got.TotalAmount.StringFixed(2))
}

func TestGenerateBillDailyPenaltyScenarioB(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()

	unit := f.unit(t, "A", "2BHK")
	f.flatRule(t, 3000, "daily", 50)

	bill, err := svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-01"})
	require.NoError(t, err)

	f.at(2025, time.January, 12)
	got, err := svc.GetBill(ctx, domain.GetBillRequest{SocietyID: society, ID: bill.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, got.Status)
	assert.Equal(t, "200.00", got.LateFeeApplied.StringFixed(2))
	assert.Equal(t, "3200.00", got.TotalAmount.StringFixed(2))
}

func TestGenerateBillDueDateCrossesMonthEnd(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()

	unit := f.unit(t, "A", "1BHK")
	value := decimal.NewFromInt(1500)
	_, err := f.rules.Create(ctx, ruledomain.CreateRuleRequest{
		SocietyID:  society,
		Scope:      "general",
		AmountType: "flat",
		Amount:     &value,
		BillingDay: 28,
		DueDays:    5,
	})
	require.NoError(t, err)

	bill, err := svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-02"})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-05", bill.DueDate.Format(time.DateOnly))
}

func TestGenerateBillRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()

	unit := f.unit(t, "A", "2BHK")
	f.flatRule(t, 3000, "", 0)

	first, err := svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-01"})
	require.NoError(t, err)

	_, err = svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-01"})
	require.ErrorIs(t, err, domain.ErrDuplicateBill)
	var dup *domain.DuplicateBillError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, first.ID, dup.ExistingBillID)
}

// staleLookupRepo hides existing bills from the pre-insert lookup so the unique
// index is the only thing that can catch the duplicate.
type staleLookupRepo struct {
	domain.Repository
	mu     sync.Mutex
	hidden bool
}

func (r *staleLookupRepo) FindByUnitMonth(ctx context.Context, db *gorm.DB, unitID snowflake.ID, forMonth string) (*domain.Bill, error) {
	r.mu.Lock()
	hide := !r.hidden
	r.hidden = true
	r.mu.Unlock()
	if hide {
		return nil, nil
	}
	return r.Repository.FindByUnitMonth(ctx, db, unitID, forMonth)
}

func TestGenerateBillUniqueIndexCatchesRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unit := f.unit(t, "A", "2BHK")
	f.flatRule(t, 3000, "", 0)

	first, err := f.service().GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-01"})
	require.NoError(t, err)

	racing := f.serviceWithRepo(&staleLookupRepo{Repository: f.repo})
	_, err = racing.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-01"})
	require.ErrorIs(t, err, domain.ErrDuplicateBill)
	var dup *domain.DuplicateBillError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, first.ID, dup.ExistingBillID)

	var count int64
	require.NoError(t, f.db.Model(&domain.Bill{}).Where("unit_id = ?", unit.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGenerateBillBHKFallthroughScenarioC(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()

	unit := f.unit(t, "A", "3BHK")
	buildingRule, err := f.rules.Create(ctx, ruledomain.CreateRuleRequest{
		SocietyID:  society,
		Scope:      "building_specific",
		ScopeRef:   "A",
		AmountType: "bhk_wise",
		BHKAmounts: map[string]decimal.Decimal{"2bhk": decimal.NewFromInt(4000)},
		BillingDay: 5,
	})
	require.NoError(t, err)

	_, err = svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-01"})
	require.ErrorIs(t, err, domain.ErrNoApplicableRule)

	generalRule := f.flatRule(t, 3500, "", 0)

	bill, err := svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-01"})
	require.NoError(t, err)
	assert.NotEqual(t, buildingRule.ID, bill.RuleID)
	assert.Equal(t, generalRule.ID, bill.RuleID)
	assert.Equal(t, "3500.00", bill.Amount.StringFixed(2))
}

func TestLateFeeUsesTermsCopiedAtGeneration(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()

	unit := f.unit(t, "A", "2BHK")
	rule := f.flatRule(t, 3000, "fixed", 200)
	bill, err := svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-01"})
	require.NoError(t, err)

	raised := decimal.NewFromInt(900)
	_, err = f.rules.Update(ctx, ruledomain.UpdateRuleRequest{SocietyID: society, ID: rule.ID, PenaltyValue: &raised})
	require.NoError(t, err)

	f.at(2025, time.January, 20)
	got, err := svc.GetBill(ctx, domain.GetBillRequest{SocietyID: society, ID: bill.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, got.Status)
	assert.Equal(t, "200.00", got.LateFeeApplied.StringFixed(2))
	assert.Equal(t, "3200.00", got.TotalAmount.StringFixed(2))
}

func TestGenerateBillSeesRulesWrittenByAnotherReplica(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()

	unit := f.unit(t, "A", "2BHK")
	res, err := svc.ResolveApplicableRule(ctx, domain.ResolveRuleRequest{SocietyID: society, UnitID: unit.ID})
	require.NoError(t, err)
	require.False(t, res.Found())

	replica := ruleservice.New(ruleservice.Params{
		DB:     f.db,
		Log:    zap.NewNop(),
		GenID:  f.node,
		Clock:  f.clock,
		Repo:   rulerepository.Provide(),
		Config: config.NewStaticBillingConfigHolder(f.cfg),
	})
	amount := decimal.NewFromInt(2800)
	rule, err := replica.Create(ctx, ruledomain.CreateRuleRequest{
		SocietyID:  society,
		Scope:      "general",
		AmountType: "flat",
		Amount:     &amount,
		BillingDay: 5,
	})
	require.NoError(t, err)

	bill, err := svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-01"})
	require.NoError(t, err)
	assert.Equal(t, rule.ID, bill.RuleID)
	assert.Equal(t, "2800.00", bill.Amount.StringFixed(2))
}

func TestGenerateBillValidation(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()

	_, err := svc.GenerateBill(ctx, domain.GenerateBillRequest{UnitID: 1, ForMonth: "2025-01"})
	assert.ErrorIs(t, err, domain.ErrInvalidSociety)

	_, err = svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: 1, ForMonth: "2025-13"})
	assert.ErrorIs(t, err, domain.ErrInvalidForMonth)

	_, err = svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: 999, ForMonth: "2025-01"})
	assert.ErrorIs(t, err, domain.ErrUnitNotFound)
}

func TestGenerateForSocietyReportsEveryUnit(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()

	a := f.unit(t, "A", "2BHK")
	b := f.unit(t, "B", "3BHK")
	_, err := f.rules.Create(ctx, ruledomain.CreateRuleRequest{
		SocietyID:  society,
		Scope:      "general",
		AmountType: "bhk_wise",
		BHKAmounts: map[string]decimal.Decimal{"2bhk": decimal.NewFromInt(4000)},
		BillingDay: 5,
	})
	require.NoError(t, err)

	report, err := svc.GenerateForSociety(ctx, society, "2025-01")
	require.NoError(t, err)
	assert.Len(t, report.Created, 1)
	assert.Equal(t, []snowflake.ID{b.ID}, report.NoRule)
	assert.Empty(t, report.Failed)

	report, err = svc.GenerateForSociety(ctx, society, "2025-01")
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Equal(t, 1, report.Duplicate)

	bills, err := svc.ListBills(ctx, domain.ListBillRequest{SocietyID: society, UnitID: a.ID})
	require.NoError(t, err)
	require.Len(t, bills.Bills, 1)
}

func TestRecordPaymentRequiresPenaltyScenarioD(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()

	unit := f.unit(t, "A", "2BHK")
	f.flatRule(t, 3000, "fixed", 200)
	bill, err := svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-01"})
	require.NoError(t, err)

	f.at(2025, time.January, 10)
	_, err = svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		SocietyID:  society,
		BillID:     bill.ID,
		Method:     "cash",
		AmountPaid: decimal.NewFromInt(3000),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientPayment)
	var insufficient *domain.InsufficientPaymentError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "3200.00", insufficient.Required.StringFixed(2))

	paid, err := svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		SocietyID:      society,
		BillID:         bill.ID,
		Method:         "upi",
		TransactionRef: "UPI-123",
		AmountPaid:     decimal.NewFromInt(3200),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	assert.Equal(t, "200.00", paid.LateFeeApplied.StringFixed(2))
	require.NotNil(t, paid.PaidAt)

	// Paid bills stay frozen however late they are read.
	f.at(2025, time.March, 1)
	got, err := svc.GetBill(ctx, domain.GetBillRequest{SocietyID: society, ID: bill.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)
	assert.Equal(t, "3200.00", got.TotalAmount.StringFixed(2))
	assert.Equal(t, "3200.00", got.AmountPaid.Decimal.StringFixed(2))

	_, err = svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		SocietyID:  society,
		BillID:     bill.ID,
		Method:     "cash",
		AmountPaid: decimal.NewFromInt(3200),
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
}

func TestRecordPaymentValidation(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, domain.RecordPaymentRequest{SocietyID: society, BillID: 1, Method: "barter", AmountPaid: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

	_, err = svc.RecordPayment(ctx, domain.RecordPaymentRequest{SocietyID: society, BillID: 1, Method: "upi", AmountPaid: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidTransactionRef)

	_, err = svc.RecordPayment(ctx, domain.RecordPaymentRequest{SocietyID: society, BillID: 1, Method: "cash", AmountPaid: decimal.Zero})
	assert.ErrorIs(t, err, domain.ErrInvalidAmountPaid)

	_, err = svc.RecordPayment(ctx, domain.RecordPaymentRequest{SocietyID: society, BillID: 1, Method: "cash", AmountPaid: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordPaymentConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()

	unit := f.unit(t, "A", "2BHK")
	f.flatRule(t, 3000, "", 0)
	bill, err := svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-01"})
	require.NoError(t, err)

	const attempts = 5
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RecordPayment(ctx, domain.RecordPaymentRequest{
				SocietyID:  society,
				BillID:     bill.ID,
				Method:     "cash",
				AmountPaid: decimal.NewFromInt(3000),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
	}
	assert.Equal(t, 1, succeeded)
}

// paidElsewhereRepo simulates a payment that commits between the read and the
// conditional update.
type paidElsewhereRepo struct {
	domain.Repository
}

func (r *paidElsewhereRepo) MarkPaid(ctx context.Context, db *gorm.DB, bill *domain.Bill) (int64, error) {
	return 0, nil
}

func TestRecordPaymentLosesConditionalUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unit := f.unit(t, "A", "2BHK")
	f.flatRule(t, 3000, "", 0)
	bill, err := f.service().GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-01"})
	require.NoError(t, err)

	svc := f.serviceWithRepo(&paidElsewhereRepo{Repository: f.repo})
	_, err = svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		SocietyID:  society,
		BillID:     bill.ID,
		Method:     "cash",
		AmountPaid: decimal.NewFromInt(3000),
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
}

func TestListBillsFiltersDerivedStatus(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()

	f.flatRule(t, 1000, "fixed", 100)
	units := []unitdomain.Unit{f.unit(t, "A", "1BHK"), f.unit(t, "A", "2BHK"), f.unit(t, "B", "2BHK")}
	for _, unit := range units {
		_, err := svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-01"})
		require.NoError(t, err)
	}
	_, err := svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: units[0].ID, ForMonth: "2025-02"})
	require.NoError(t, err)

	// January bills are due 2025-01-08, February bills 2025-02-08.
	f.at(2025, time.January, 20)

	overdue, err := svc.ListBills(ctx, domain.ListBillRequest{SocietyID: society, Status: "overdue", PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, overdue.Bills, 3)
	for _, bill := range overdue.Bills {
		assert.Equal(t, domain.StatusOverdue, bill.Status)
		assert.Equal(t, "1100.00", bill.TotalAmount.StringFixed(2))
	}

	pending, err := svc.ListBills(ctx, domain.ListBillRequest{SocietyID: society, Status: "pending", PageSize: 10})
	require.NoError(t, err)
	require.Len(t, pending.Bills, 1)
	assert.Equal(t, "2025-02", pending.Bills[0].ForMonth)

	_, err = svc.ListBills(ctx, domain.ListBillRequest{SocietyID: society, Status: "late"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	none, err := svc.ListBills(ctx, domain.ListBillRequest{SocietyID: society, UnitIDs: []snowflake.ID{}})
	require.NoError(t, err)
	assert.Empty(t, none.Bills)
}

func TestListBillsPaginates(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()

	f.flatRule(t, 1000, "", 0)
	for i := 0; i < 3; i++ {
		f.unit(t, "A", "2BHK")
	}
	_, err := svc.GenerateForSociety(ctx, society, "2025-01")
	require.NoError(t, err)

	seen := map[snowflake.ID]struct{}{}
	page, err := svc.ListBills(ctx, domain.ListBillRequest{SocietyID: society})
	require.NoError(t, err)
	require.Len(t, page.Bills, 2)
	require.True(t, page.HasMore)
	for _, bill := range page.Bills {
		seen[bill.ID] = struct{}{}
	}

	page, err = svc.ListBills(ctx, domain.ListBillRequest{SocietyID: society, PageToken: page.NextPageToken})
	require.NoError(t, err)
	require.Len(t, page.Bills, 1)
	assert.False(t, page.HasMore)
	for _, bill := range page.Bills {
		seen[bill.ID] = struct{}{}
	}
	assert.Len(t, seen, 3)

	_, err = svc.ListBills(ctx, domain.ListBillRequest{SocietyID: society, PageToken: "%%%"})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestGetBillPersistsEvaluationWhenEnabled(t *testing.T) {
	f := newFixture(t)
	f.cfg.PersistEvaluations = true
	svc := f.service()
	ctx := context.Background()

	unit := f.unit(t, "A", "2BHK")
	f.flatRule(t, 3000, "fixed", 200)
	bill, err := svc.GenerateBill(ctx, domain.GenerateBillRequest{SocietyID: society, UnitID: unit.ID, ForMonth: "2025-01"})
	require.NoError(t, err)

	f.at(2025, time.January, 9)
	_, err = svc.GetBill(ctx, domain.GetBillRequest{SocietyID: society, ID: bill.ID})
	require.NoError(t, err)

	stored, err := f.repo.FindByID(ctx, f.db, society, bill.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, domain.StatusOverdue, stored.Status)
	assert.Equal(t, "3200.00", stored.TotalAmount.StringFixed(2))
	assert.NotNil(t, stored.LastEvaluatedAt)
}

func TestResolveApplicableRuleReportsMissingRule(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	ctx := context.Background()

	unit := f.unit(t, "A", "2BHK")
	res, err := svc.ResolveApplicableRule(ctx, domain.ResolveRuleRequest{SocietyID: society, UnitID: unit.ID})
	require.NoError(t, err)
	assert.False(t, res.Found())

	rule := f.flatRule(t, 2500, "", 0)
	res, err = svc.ResolveApplicableRule(ctx, domain.ResolveRuleRequest{SocietyID: society, UnitID: unit.ID})
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.Equal(t, rule.ID, res.Rule.ID)
	assert.Equal(t, "2500.00", res.Charge.StringFixed(2))
}

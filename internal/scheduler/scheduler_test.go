package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societybill/internal/authorization"
	billdomain "github.com/smallbiznis/societybill/internal/bill/domain"
	billrepository "github.com/smallbiznis/societybill/internal/bill/repository"
	billservice "github.com/smallbiznis/societybill/internal/bill/service"
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

const (
	billedSociety   = snowflake.ID(11)
	unruledSociety  = snowflake.ID(12)
	generationMonth = "2025-03"
)

type harness struct {
	db     *gorm.DB
	locker *LocalLocker
	sched  *Scheduler
	rules  ruledomain.Service
	units  unitdomain.Directory
}

func newHarness(t *testing.T, billing config.BillingConfig) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&unitdomain.Unit{}, &ruledomain.Rule{}, &billdomain.Bill{}))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 3, 2, 2, 0, 0, 0, time.UTC))
	holder := config.NewStaticBillingConfigHolder(billing)

	units := unitrepository.Provide(unitrepository.Params{DB: db, GenID: node})
	rules := ruleservice.New(ruleservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Repo:   rulerepository.Provide(),
		Config: holder,
	})
	bills := billservice.New(billservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Repo:   billrepository.Provide(),
		Rules:  rules,
		Units:  units,
		Config: holder,
	})

	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)
	locker := NewLocalLocker()

	sched, err := New(Params{
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Bills:    bills,
		Units:    units,
		AuthzSvc: authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		Locker:   locker,
		Billing:  holder,
	})
	require.NoError(t, err)

	return &harness{db: db, locker: locker, sched: sched, rules: rules, units: units}
}

func (h *harness) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	for _, bhk := range []string{"1BHK", "2BHK"} {
		require.NoError(t, h.units.Insert(ctx, &unitdomain.Unit{SocietyID: billedSociety, BuildingID: "A", BHKType: bhk}))
	}
	require.NoError(t, h.units.Insert(ctx, &unitdomain.Unit{SocietyID: unruledSociety, BuildingID: "B", BHKType: "3BHK"}))

	amount := decimal.NewFromInt(2500)
	_, err := h.rules.Create(ctx, ruledomain.CreateRuleRequest{
		SocietyID:  billedSociety,
		Scope:      "general",
		AmountType: "flat",
		Amount:     &amount,
		BillingDay: 1,
		DueDays:    10,
	})
	require.NoError(t, err)
}

func (h *harness) billCount(t *testing.T, societyID snowflake.ID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&billdomain.Bill{}).Where("society_id = ?", societyID).Count(&count).Error)
	return count
}

func TestRunMonthlyGenerationIsIdempotent(t *testing.T) {
	h := newHarness(t, config.DefaultBillingConfig())
	h.seed(t)

	require.NoError(t, h.sched.RunMonthlyGeneration(context.Background()))
	assert.EqualValues(t, 2, h.billCount(t, billedSociety))
	assert.EqualValues(t, 0, h.billCount(t, unruledSociety))

	require.NoError(t, h.sched.RunMonthlyGeneration(context.Background()))
	assert.EqualValues(t, 2, h.billCount(t, billedSociety))

	var bill billdomain.Bill
	require.NoError(t, h.db.Where("society_id = ?", billedSociety).First(&bill).Error)
	assert.Equal(t, generationMonth, bill.ForMonth)
	assert.Equal(t, "2025-03-11", bill.DueDate.Format(time.DateOnly))
}

func TestGenerateMonthSkipsSocietyWhenLockHeld(t *testing.T) {
	h := newHarness(t, config.DefaultBillingConfig())
	h.seed(t)

	key := DefaultConfig().LockPrefix + ":" + billedSociety.String() + ":" + generationMonth
	token, ok, err := h.locker.TryLock(context.Background(), key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, h.sched.GenerateMonth(context.Background(), generationMonth))
	assert.EqualValues(t, 0, h.billCount(t, billedSociety))

	require.NoError(t, h.locker.Release(context.Background(), key, token))
	require.NoError(t, h.sched.GenerateMonth(context.Background(), generationMonth))
	assert.EqualValues(t, 2, h.billCount(t, billedSociety))
}

func TestGenerateMonthRejectsMalformedMonth(t *testing.T) {
	h := newHarness(t, config.DefaultBillingConfig())

	err := h.sched.GenerateMonth(context.Background(), "2025-3")
	assert.ErrorIs(t, err, billdomain.ErrInvalidForMonth)
}

func TestGenerateMonthStopsOnCanceledContext(t *testing.T) {
	h := newHarness(t, config.DefaultBillingConfig())
	h.seed(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.sched.GenerateMonth(ctx, generationMonth)
	require.Error(t, err)
	assert.EqualValues(t, 0, h.billCount(t, billedSociety))
}

func TestStartAndStop(t *testing.T) {
	h := newHarness(t, config.DefaultBillingConfig())

	require.NoError(t, h.sched.Start())
	require.NoError(t, h.sched.Start())
	require.NoError(t, h.sched.Stop(context.Background()))
	require.NoError(t, h.sched.Stop(context.Background()))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	billing := config.DefaultBillingConfig()
	billing.GenerationSchedule = "every day"
	h := newHarness(t, billing)

	assert.Error(t, h.sched.Start())
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societybill/internal/clock"
	"github.com/smallbiznis/societybill/internal/config"
	"github.com/smallbiznis/societybill/internal/maintenancerule/domain"
	"github.com/smallbiznis/societybill/internal/maintenancerule/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	return newService(t, openDB(t), clk, 1), clk
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&domain.Rule{}))
	return db
}

func newService(t *testing.T, db *gorm.DB, clk *clock.FakeClock, nodeID int64) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(nodeID)
	require.NoError(t, err)

	cfg := config.DefaultBillingConfig()
	cfg.DefaultPageSize = 2
	return New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Repo:   repository.Provide(),
		Config: config.NewStaticBillingConfigHolder(cfg),
	})
}

func flatRequest(society snowflake.ID, amount int64) domain.CreateRuleRequest {
	value := decimal.NewFromInt(amount)
	return domain.CreateRuleRequest{
		SocietyID:      society,
		Scope:          "general",
		AmountType:     "flat",
		Amount:         &value,
		BillingDay:     5,
		DueDays:        3,
		PenaltyEnabled: true,
		PenaltyType:    "fixed",
		PenaltyValue:   decimal.NewFromInt(200),
	}
}

func TestCreateAndGetRule(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, flatRequest(1, 3000))
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	got, err := svc.Get(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AmountTypeFlat, got.AmountType)
	assert.True(t, got.Amount.Valid)
	assert.Equal(t, "3000.00", got.Amount.Decimal.StringFixed(2))
	assert.Equal(t, domain.PenaltyTypeFixed, got.PenaltyType)

	_, err = svc.Get(ctx, 2, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateBHKWiseRoundTripsTable(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateRuleRequest{
		SocietyID:  1,
		Scope:      "building_specific",
		ScopeRef:   "tower-a",
		AmountType: "bhk_wise",
		BHKAmounts: map[string]decimal.Decimal{"2BHK": decimal.NewFromInt(4000), "3bhk": decimal.RequireFromString("5200.5")},
		BillingDay: 10,
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, 1, created.ID)
	require.NoError(t, err)
	table := got.BHKTable()
	require.Len(t, table, 2)
	assert.Equal(t, "4000.00", table["2bhk"].StringFixed(2))
	assert.Equal(t, "5200.50", table["3bhk"].StringFixed(2))
	assert.False(t, got.Amount.Valid)
	assert.Equal(t, domain.BuildingScope{BuildingID: "tower-a"}, got.Target())
}

func TestCreateRejectsInvalidRule(t *testing.T) {
	svc, _ := setupService(t)

	req := flatRequest(1, 3000)
	req.BillingDay = 31
	_, err := svc.Create(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidBillingDay)
}

func TestUpdateRevalidates(t *testing.T) {
	svc, clk := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, flatRequest(1, 3000))
	require.NoError(t, err)

	clk.Advance(time.Hour)
	amount := decimal.NewFromInt(3500)
	due := 7
	updated, err := svc.Update(ctx, domain.UpdateRuleRequest{SocietyID: 1, ID: created.ID, Amount: &amount, DueDays: &due})
	require.NoError(t, err)
	assert.Equal(t, "3500.00", updated.Amount.Decimal.StringFixed(2))
	assert.Equal(t, 7, updated.DueDays)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	amountType := "bhk_wise"
	_, err = svc.Update(ctx, domain.UpdateRuleRequest{SocietyID: 1, ID: created.ID, AmountType: &amountType})
	assert.ErrorIs(t, err, domain.ErrInvalidBHKAmounts)

	got, err := svc.Get(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AmountTypeFlat, got.AmountType)
}

func TestDeactivateRemovesFromActiveSet(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, flatRequest(1, 3000))
	require.NoError(t, err)
	_, err = svc.Create(ctx, flatRequest(1, 3100))
	require.NoError(t, err)

	active, err := svc.ListActive(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = svc.Deactivate(ctx, 1, first.ID)
	require.NoError(t, err)

	active, err = svc.ListActive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.NotEqual(t, first.ID, active[0].ID)

	// still readable
	got, err := svc.Get(ctx, 1, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = svc.Activate(ctx, 1, first.ID)
	require.NoError(t, err)
	active, err = svc.ListActive(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestListPaginates(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, flatRequest(1, int64(3000+i)))
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, domain.ListRuleRequest{SocietyID: 1})
	require.NoError(t, err)
	require.Len(t, first.Rules, 2)
	assert.True(t, first.HasMore)

	second, err := svc.List(ctx, domain.ListRuleRequest{SocietyID: 1, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Rules, 1)
	assert.False(t, second.HasMore)
	assert.Less(t, int64(second.Rules[0].ID), int64(first.Rules[1].ID))

	_, err = svc.List(ctx, domain.ListRuleRequest{SocietyID: 1, PageToken: "???"})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestReloadActiveSeesWritesFromOtherInstances(t *testing.T) {
	db := openDB(t)
	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	svc := newService(t, db, clk, 1)
	other := newService(t, db, clk, 2)
	ctx := context.Background()

	_, err := svc.Create(ctx, flatRequest(1, 3000))
	require.NoError(t, err)
	active, err := svc.ListActive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 1)

	clk.Advance(time.Minute)
	_, err = other.Create(ctx, flatRequest(1, 3100))
	require.NoError(t, err)

	active, err = svc.ListActive(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, active, 1, "cached set is local to the instance")

	active, err = svc.ReloadActive(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	active, err = svc.ListActive(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

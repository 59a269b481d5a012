package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societybill/internal/maintenancerule/domain"
	"github.com/smallbiznis/societybill/pkg/db/option"
	"github.com/smallbiznis/societybill/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).Create(rule).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).
		Model(&domain.Rule{}).
		Where("society_id = ? AND id = ?", rule.SocietyID, rule.ID).
		Updates(map[string]any{
			"scope":           rule.Scope,
			"scope_ref":       rule.ScopeRef,
			"amount_type":     rule.AmountType,
			"amount":          rule.Amount,
			"bhk_amounts":     rule.BHKAmounts,
			"billing_day":     rule.BillingDay,
			"due_days":        rule.DueDays,
			"penalty_enabled": rule.PenaltyEnabled,
			"penalty_type":    rule.PenaltyType,
			"penalty_value":   rule.PenaltyValue,
			"is_active":       rule.IsActive,
			"updated_at":      rule.UpdatedAt,
		}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, societyID, id snowflake.ID) (*domain.Rule, error) {
	var rules []domain.Rule
	err := db.WithContext(ctx).
		Where("society_id = ? AND id = ?", societyID, id).
		Limit(1).
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return &rules[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, societyID snowflake.ID, filter domain.ListRuleFilter, page pagination.Pagination) ([]*domain.Rule, error) {
	var rules []*domain.Rule
	stmt := db.WithContext(ctx).
		Model(&domain.Rule{}).
		Where("society_id = ?", societyID)
	if filter.Scope != "" {
		stmt = stmt.Where("scope = ?", filter.Scope)
	}
	if filter.IsActive != nil {
		stmt = stmt.Where("is_active = ?", *filter.IsActive)
	}
	if filter.AfterID != 0 {
		stmt = stmt.Where("id < ?", filter.AfterID)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	stmt = option.WithSortBy("id", true).Apply(stmt)
	if err := stmt.Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// ListActive returns the society's active rules, newest first.
func (r *repo) ListActive(ctx context.Context, db *gorm.DB, societyID snowflake.ID) ([]domain.Rule, error) {
	var rules []domain.Rule
	err := db.WithContext(ctx).
		Where("society_id = ? AND is_active = ?", societyID, true).
		Order("created_at desc, id desc").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

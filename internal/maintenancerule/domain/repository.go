package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societybill/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListRuleFilter struct {
	Scope    Scope
	IsActive *bool
	AfterID  snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rule *Rule) error
	Update(ctx context.Context, db *gorm.DB, rule *Rule) error
	FindByID(ctx context.Context, db *gorm.DB, societyID, id snowflake.ID) (*Rule, error)
	List(ctx context.Context, db *gorm.DB, societyID snowflake.ID, filter ListRuleFilter, page pagination.Pagination) ([]*Rule, error)
	ListActive(ctx context.Context, db *gorm.DB, societyID snowflake.ID) ([]Rule, error)
}

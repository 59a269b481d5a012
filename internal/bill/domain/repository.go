package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListBillFilter is the storage-level filter. Status is expressed through due-date
// predicates relative to Today so derived statuses paginate correctly.
type ListBillFilter struct {
	UnitIDs     []snowflake.ID
	RestrictIDs bool
	ForMonth    string
	Status      Status
	Today       time.Time
	AfterMonth  string
	AfterID     snowflake.ID
	Limit       int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, bill *Bill) error
	FindByID(ctx context.Context, db *gorm.DB, societyID, id snowflake.ID) (*Bill, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, societyID, id snowflake.ID) (*Bill, error)
	FindByUnitMonth(ctx context.Context, db *gorm.DB, unitID snowflake.ID, forMonth string) (*Bill, error)
	List(ctx context.Context, db *gorm.DB, societyID snowflake.ID, filter ListBillFilter) ([]*Bill, error)
	MarkPaid(ctx context.Context, db *gorm.DB, bill *Bill) (int64, error)
	SaveEvaluation(ctx context.Context, db *gorm.DB, bill *Bill) error
}

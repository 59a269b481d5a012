package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societybill/internal/bill/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, bill *domain.Bill) error {
	return db.WithContext(ctx).Create(bill).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, societyID, id snowflake.ID) (*domain.Bill, error) {
	return first(db.WithContext(ctx).
		Where("society_id = ? AND id = ?", societyID, id))
}

// FindByIDForUpdate row-locks the bill on dialects that support SELECT ... FOR UPDATE.
func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, societyID, id snowflake.ID) (*domain.Bill, error) {
	stmt := db.WithContext(ctx)
	if db.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return first(stmt.Where("society_id = ? AND id = ?", societyID, id))
}

func (r *repo) FindByUnitMonth(ctx context.Context, db *gorm.DB, unitID snowflake.ID, forMonth string) (*domain.Bill, error) {
	return first(db.WithContext(ctx).
		Where("unit_id = ? AND for_month = ?", unitID, forMonth))
}

func (r *repo) List(ctx context.Context, db *gorm.DB, societyID snowflake.ID, filter domain.ListBillFilter) ([]*domain.Bill, error) {
	var bills []*domain.Bill
	stmt := db.WithContext(ctx).
		Model(&domain.Bill{}).
		Where("society_id = ?", societyID)

	if filter.RestrictIDs {
		if len(filter.UnitIDs) == 0 {
			return []*domain.Bill{}, nil
		}
		stmt = stmt.Where("unit_id IN ?", filter.UnitIDs)
	}
	if filter.ForMonth != "" {
		stmt = stmt.Where("for_month = ?", filter.ForMonth)
	}

	switch filter.Status {
	case domain.StatusPaid:
		stmt = stmt.Where("status = ?", domain.StatusPaid)
	case domain.StatusPending:
		stmt = stmt.Where("status <> ? AND due_date >= ?", domain.StatusPaid, filter.Today)
	case domain.StatusOverdue:
		stmt = stmt.Where("status <> ? AND due_date < ?", domain.StatusPaid, filter.Today)
	}

	if filter.AfterID != 0 {
		stmt = stmt.Where("(for_month < ? OR (for_month = ? AND id < ?))", filter.AfterMonth, filter.AfterMonth, filter.AfterID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	if err := stmt.Order("for_month desc, id desc").Find(&bills).Error; err != nil {
		return nil, err
	}
	return bills, nil
}

// MarkPaid is a compare-and-set on status; it returns the number of rows moved to paid.
func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, bill *domain.Bill) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE maintenance_bills
		 SET status = ?, paid_at = ?, payment_method = ?, transaction_ref = ?, amount_paid = ?,
		     late_fee_applied = ?, total_amount = ?, last_evaluated_at = ?, updated_at = ?
		 WHERE society_id = ? AND id = ? AND status <> ?`,
		domain.StatusPaid,
		bill.PaidAt,
		bill.PaymentMethod,
		bill.TransactionRef,
		bill.AmountPaid,
		bill.LateFeeApplied,
		bill.TotalAmount,
		bill.LastEvaluatedAt,
		bill.UpdatedAt,
		bill.SocietyID,
		bill.ID,
		domain.StatusPaid,
	)
	return result.RowsAffected, result.Error
}

// SaveEvaluation persists derived fields for an unpaid bill. Paid rows are never touched.
func (r *repo) SaveEvaluation(ctx context.Context, db *gorm.DB, bill *domain.Bill) error {
	return db.WithContext(ctx).Exec(
		`UPDATE maintenance_bills
		 SET status = ?, late_fee_applied = ?, total_amount = ?, last_evaluated_at = ?
		 WHERE society_id = ? AND id = ? AND status <> ?`,
		bill.Status,
		bill.LateFeeApplied,
		bill.TotalAmount,
		bill.LastEvaluatedAt,
		bill.SocietyID,
		bill.ID,
		domain.StatusPaid,
	).Error
}

func first(stmt *gorm.DB) (*domain.Bill, error) {
	var bills []domain.Bill
	if err := stmt.Limit(1).Find(&bills).Error; err != nil {
		return nil, err
	}
	if len(bills) == 0 {
		return nil, nil
	}
	return &bills[0], nil
}

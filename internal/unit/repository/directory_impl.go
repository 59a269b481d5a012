package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/societybill/internal/unit/domain"
	"github.com/smallbiznis/societybill/pkg/db/option"
	"github.com/smallbiznis/societybill/pkg/repository"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	GenID     *snowflake.Node
	Directory repository.Repository[domain.Unit] `optional:"true"`
}

type directory struct {
	db    *gorm.DB
	store repository.Repository[domain.Unit]
	genID *snowflake.Node
}

func Provide(p Params) domain.Directory {
	store := p.Directory
	if store == nil {
		store = repository.ProvideStore[domain.Unit](p.DB)
	}
	return &directory{db: p.DB, store: store, genID: p.GenID}
}

func (d *directory) FindByID(ctx context.Context, societyID, unitID snowflake.ID) (*domain.Unit, error) {
	if societyID == 0 {
		return nil, domain.ErrInvalidSociety
	}
	unit, err := d.store.FindOne(ctx, &domain.Unit{ID: unitID, SocietyID: societyID})
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, domain.ErrNotFound
	}
	return unit, nil
}

func (d *directory) ListBySociety(ctx context.Context, societyID snowflake.ID) ([]domain.Unit, error) {
	if societyID == 0 {
		return nil, domain.ErrInvalidSociety
	}
	rows, err := d.store.Find(ctx, &domain.Unit{SocietyID: societyID}, option.WithSortBy("id", false))
	if err != nil {
		return nil, err
	}
	return deref(rows), nil
}

func (d *directory) ListByResident(ctx context.Context, societyID snowflake.ID, residentRef string) ([]domain.Unit, error) {
	residentRef = strings.TrimSpace(residentRef)
	if societyID == 0 {
		return nil, domain.ErrInvalidSociety
	}
	if residentRef == "" {
		return nil, nil
	}
	rows, err := d.store.Find(ctx,
		&domain.Unit{SocietyID: societyID},
		option.ApplyOperator(option.Condition{Field: "resident_ref", Operator: option.EQ, Value: residentRef}),
		option.WithSortBy("id", false),
	)
	if err != nil {
		return nil, err
	}
	return deref(rows), nil
}

func (d *directory) ListSocietyIDs(ctx context.Context) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := d.db.WithContext(ctx).
		Model(&domain.Unit{}).
		Distinct("society_id").
		Order("society_id").
		Pluck("society_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (d *directory) Insert(ctx context.Context, unit *domain.Unit) error {
	if unit.SocietyID == 0 {
		return domain.ErrInvalidSociety
	}
	if strings.TrimSpace(unit.BuildingID) == "" {
		return domain.ErrInvalidBuilding
	}
	if domain.NormalizeBHK(unit.BHKType) == "" {
		return domain.ErrInvalidBHKType
	}
	if unit.ID == 0 {
		unit.ID = d.genID.Generate()
	}
	now := time.Now().UTC()
	if unit.CreatedAt.IsZero() {
		unit.CreatedAt = now
	}
	unit.UpdatedAt = now
	unit.BuildingID = strings.TrimSpace(unit.BuildingID)
	unit.BHKType = domain.NormalizeBHK(unit.BHKType)
	return d.store.Create(ctx, unit)
}

func deref(rows []*domain.Unit) []domain.Unit {
	out := make([]domain.Unit, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			out = append(out, *row)
		}
	}
	return out
}

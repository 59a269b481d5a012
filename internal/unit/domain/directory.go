package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Directory is the read contract billing consumes from the unit registry.
type Directory interface {
	FindByID(ctx context.Context, societyID, unitID snowflake.ID) (*Unit, error)
	ListBySociety(ctx context.Context, societyID snowflake.ID) ([]Unit, error)
	ListByResident(ctx context.Context, societyID snowflake.ID, residentRef string) ([]Unit, error)
	// ListSocietyIDs returns every society that has at least one unit.
	ListSocietyIDs(ctx context.Context) ([]snowflake.ID, error)
	Insert(ctx context.Context, unit *Unit) error
}

var (
	ErrInvalidSociety  = errors.New("invalid_society")
	ErrInvalidBuilding = errors.New("invalid_building")
	ErrInvalidBHKType  = errors.New("invalid_bhk_type")
	ErrNotFound        = errors.New("unit_not_found")
)

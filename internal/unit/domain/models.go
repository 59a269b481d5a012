package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Unit is a residential unit owned by the society directory. Billing only reads it.
type Unit struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	SocietyID   snowflake.ID `gorm:"not null;index" json:"society_id"`
	BuildingID  string       `gorm:"type:varchar(64);not null" json:"building_id"`
	BHKType     string       `gorm:"column:bhk_type;type:varchar(32);not null" json:"bhk_type"`
	ResidentRef *string      `gorm:"type:varchar(64);index" json:"resident_ref,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Unit) TableName() string { return "units" }

// NormalizedBHK is the key used against rule bhk tables and bhk scopes.
func (u Unit) NormalizedBHK() string {
	return NormalizeBHK(u.BHKType)
}

// OccupiedBy reports whether actorID is the unit's resident.
func (u Unit) OccupiedBy(actorID string) bool {
	actorID = strings.TrimSpace(actorID)
	return u.ResidentRef != nil && actorID != "" && strings.TrimSpace(*u.ResidentRef) == actorID
}

func NormalizeBHK(bhk string) string {
	return strings.ToLower(strings.TrimSpace(bhk))
}

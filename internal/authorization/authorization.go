package authorization

import (
	"context"
	"errors"
	"strings"
)

const (
	ObjectMaintenanceRule = "maintenance_rule"
	ObjectMaintenanceBill = "maintenance_bill"
	ObjectUnit            = "unit"
)

const (
	ActionRuleManage      = "rule.manage"
	ActionRuleView        = "rule.view"
	ActionBillGenerate    = "bill.generate"
	ActionBillView        = "bill.view"
	ActionBillPay         = "bill.pay"
	ActionUnitResolveRule = "unit.resolve_rule"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleResident Role = "resident"
	RoleSystem   Role = "system"
)

func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleResident:
		return RoleResident, nil
	case RoleSystem:
		return RoleSystem, nil
	default:
		return "", ErrInvalidActor
	}
}

// Actor is the authenticated caller. Residents are scoped to units they occupy.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsResident() bool { return a.Role == RoleResident }

type Service interface {
	Authorize(ctx context.Context, actor Actor, societyID string, object string, action string) error
}

var (
	ErrInvalidActor   = errors.New("invalid_actor")
	ErrInvalidSociety = errors.New("invalid_society")
	ErrInvalidObject  = errors.New("invalid_object")
	ErrInvalidAction  = errors.New("invalid_action")
	ErrForbidden      = errors.New("forbidden")
)

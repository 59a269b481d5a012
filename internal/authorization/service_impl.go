package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an enforcer persisted through the gorm adapter and seeds role policies.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	return prepare(enforcer, true)
}

// NewMemoryEnforcer builds an enforcer without persistence.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	return prepare(enforcer, false)
}

func prepare(enforcer *casbin.SyncedEnforcer, persisted bool) (*casbin.SyncedEnforcer, error) {
	enforcer.EnableAutoSave(persisted)
	enforcer.EnableAutoBuildRoleLinks(true)
	if persisted {
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, societyID string, object string, action string) error {
	if strings.TrimSpace(actor.ID) == "" {
		return ErrInvalidActor
	}
	if _, err := ParseRole(string(actor.Role)); err != nil {
		return err
	}
	societyID = strings.TrimSpace(societyID)
	if societyID == "" {
		return ErrInvalidSociety
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := fmt.Sprintf("%s:%s", actor.Role, strings.TrimSpace(actor.ID))
	roleName := fmt.Sprintf("role:%s", actor.Role)
	domain := fmt.Sprintf("society:%s", societyID)
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("subject", subject),
			zap.String("domain", domain),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role binding for subject within domain.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Resident: read and pay, ownership is checked by the caller.
		{"role:resident", ObjectMaintenanceBill, ActionBillView},
		{"role:resident", ObjectMaintenanceBill, ActionBillPay},
		{"role:resident", ObjectUnit, ActionUnitResolveRule},

		{"role:admin", ObjectMaintenanceRule, ActionRuleManage},
		{"role:admin", ObjectMaintenanceRule, ActionRuleView},
		{"role:admin", ObjectMaintenanceBill, ActionBillGenerate},
		{"role:admin", ObjectMaintenanceBill, ActionBillView},
		{"role:admin", ObjectMaintenanceBill, ActionBillPay},
		{"role:admin", ObjectUnit, ActionUnitResolveRule},

		// System: scheduled generation jobs.
		{"role:system", ObjectMaintenanceBill, ActionBillGenerate},
		{"role:system", ObjectMaintenanceRule, ActionRuleView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}

package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societybill/internal/clock"
	"github.com/smallbiznis/societybill/internal/config"
	"github.com/smallbiznis/societybill/internal/maintenancerule/domain"
	"github.com/smallbiznis/societybill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const activeRulesTTL = time.Minute

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Repo   domain.Repository
	Config *config.BillingConfigHolder `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	repo   domain.Repository
	config *config.BillingConfigHolder
	active *cache.Cache
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("maintenancerule.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		repo:   p.Repo,
		config: p.Config,
		active: cache.New(activeRulesTTL, 2*activeRulesTTL),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRuleRequest) (domain.Rule, error) {
	now := s.clock.Now()
	rule := domain.Rule{
		ID:             s.genID.Generate(),
		SocietyID:      req.SocietyID,
		Scope:          domain.Scope(req.Scope),
		AmountType:     domain.AmountType(req.AmountType),
		BillingDay:     req.BillingDay,
		DueDays:        req.DueDays,
		PenaltyEnabled: req.PenaltyEnabled,
		PenaltyType:    domain.PenaltyType(req.PenaltyType),
		PenaltyValue:   req.PenaltyValue,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if ref := strings.TrimSpace(req.ScopeRef); ref != "" {
		rule.ScopeRef = &ref
	}
	if req.Amount != nil {
		rule.Amount = decimal.NewNullDecimal(*req.Amount)
	}
	if req.BHKAmounts != nil {
		rule.BHKAmounts = datatypes.NewJSONType(domain.BHKAmounts(req.BHKAmounts))
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := domain.Validate(&rule); err != nil {
		return domain.Rule{}, err
	}
	if err := s.repo.Insert(ctx, s.db, &rule); err != nil {
		return domain.Rule{}, err
	}
	s.invalidate(rule.SocietyID)

	s.log.Info("maintenance rule created",
		zap.String("society_id", rule.SocietyID.String()),
		zap.String("rule_id", rule.ID.String()),
		zap.String("scope", string(rule.Scope)),
		zap.String("amount_type", string(rule.AmountType)),
	)
	return rule, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRuleRequest) (domain.Rule, error) {
	rule, err := s.load(ctx, req.SocietyID, req.ID)
	if err != nil {
		return domain.Rule{}, err
	}

	if req.Scope != nil {
		rule.Scope = domain.Scope(*req.Scope)
		if req.ScopeRef == nil {
			rule.ScopeRef = nil
		}
	}
	if req.ScopeRef != nil {
		ref := strings.TrimSpace(*req.ScopeRef)
		rule.ScopeRef = &ref
		if ref == "" {
			rule.ScopeRef = nil
		}
	}
	if req.AmountType != nil {
		rule.AmountType = domain.AmountType(*req.AmountType)
		switch rule.AmountType {
		case domain.AmountTypeFlat:
			rule.BHKAmounts = datatypes.NewJSONType[domain.BHKAmounts](nil)
		case domain.AmountTypeBHKWise:
			rule.Amount = decimal.NullDecimal{}
		}
	}
	if req.Amount != nil {
		rule.Amount = decimal.NewNullDecimal(*req.Amount)
	}
	if req.BHKAmounts != nil {
		rule.BHKAmounts = datatypes.NewJSONType(domain.BHKAmounts(req.BHKAmounts))
	}
	if req.BillingDay != nil {
		rule.BillingDay = *req.BillingDay
	}
	if req.DueDays != nil {
		rule.DueDays = *req.DueDays
	}
	if req.PenaltyEnabled != nil {
		rule.PenaltyEnabled = *req.PenaltyEnabled
	}
	if req.PenaltyType != nil {
		rule.PenaltyType = domain.PenaltyType(*req.PenaltyType)
	}
	if req.PenaltyValue != nil {
		rule.PenaltyValue = *req.PenaltyValue
	}

	if err := domain.Validate(rule); err != nil {
		return domain.Rule{}, err
	}
	rule.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, rule); err != nil {
		return domain.Rule{}, err
	}
	s.invalidate(rule.SocietyID)
	return *rule, nil
}

func (s *Service) Activate(ctx context.Context, societyID, ruleID snowflake.ID) (domain.Rule, error) {
	return s.setActive(ctx, societyID, ruleID, true)
}

func (s *Service) Deactivate(ctx context.Context, societyID, ruleID snowflake.ID) (domain.Rule, error) {
	return s.setActive(ctx, societyID, ruleID, false)
}

func (s *Service) setActive(ctx context.Context, societyID, ruleID snowflake.ID, active bool) (domain.Rule, error) {
	rule, err := s.load(ctx, societyID, ruleID)
	if err != nil {
		return domain.Rule{}, err
	}
	if rule.IsActive == active {
		return *rule, nil
	}
	rule.IsActive = active
	rule.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, rule); err != nil {
		return domain.Rule{}, err
	}
	s.invalidate(societyID)

	s.log.Info("maintenance rule state changed",
		zap.String("society_id", societyID.String()),
		zap.String("rule_id", ruleID.String()),
		zap.Bool("is_active", active),
	)
	return *rule, nil
}

// Get returns the rule whether or not it is active.
func (s *Service) Get(ctx context.Context, societyID, ruleID snowflake.ID) (domain.Rule, error) {
	rule, err := s.load(ctx, societyID, ruleID)
	if err != nil {
		return domain.Rule{}, err
	}
	return *rule, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRuleRequest) (domain.ListRuleResponse, error) {
	if req.SocietyID == 0 {
		return domain.ListRuleResponse{}, domain.ErrInvalidSociety
	}

	filter := domain.ListRuleFilter{IsActive: req.IsActive}
	if strings.TrimSpace(req.Scope) != "" {
		scope, err := domain.ParseScope(req.Scope)
		if err != nil {
			return domain.ListRuleResponse{}, err
		}
		filter.Scope = scope
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListRuleResponse{}, domain.ErrInvalidPageToken
	}
	if cursor != nil {
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListRuleResponse{}, domain.ErrInvalidPageToken
		}
		filter.AfterID = afterID
	}

	page := pagination.Pagination{PageSize: pagination.NormalizePageSize(req.PageSize, s.config.Get().DefaultPageSize)}
	rows, err := s.repo.List(ctx, s.db, req.SocietyID, filter, page)
	if err != nil {
		return domain.ListRuleResponse{}, err
	}

	kept, info, err := pagination.Trim(rows, page.PageSize, func(rule *domain.Rule) pagination.Cursor {
		return pagination.Cursor{ID: rule.ID.String()}
	})
	if err != nil {
		return domain.ListRuleResponse{}, err
	}

	rules := make([]domain.Rule, 0, len(kept))
	for _, rule := range kept {
		rules = append(rules, *rule)
	}
	return domain.ListRuleResponse{PageInfo: info, Rules: rules}, nil
}

// ListActive serves the resolver. Results are cached per society until the next write.
func (s *Service) ListActive(ctx context.Context, societyID snowflake.ID) ([]domain.Rule, error) {
	if societyID == 0 {
		return nil, domain.ErrInvalidSociety
	}
	if cached, ok := s.active.Get(cacheKey(societyID)); ok {
		return cloneRules(cached.([]domain.Rule)), nil
	}

	return s.ReloadActive(ctx, societyID)
}

// ReloadActive reads the active set from the database and refreshes this process's cache.
// Writes on other replicas only invalidate their own cache, so bill generation uses this.
func (s *Service) ReloadActive(ctx context.Context, societyID snowflake.ID) ([]domain.Rule, error) {
	if societyID == 0 {
		return nil, domain.ErrInvalidSociety
	}
	rules, err := s.repo.ListActive(ctx, s.db, societyID)
	if err != nil {
		return nil, err
	}
	s.active.SetDefault(cacheKey(societyID), rules)
	return cloneRules(rules), nil
}

func (s *Service) load(ctx context.Context, societyID, ruleID snowflake.ID) (*domain.Rule, error) {
	if societyID == 0 {
		return nil, domain.ErrInvalidSociety
	}
	if ruleID == 0 {
		return nil, domain.ErrInvalidID
	}
	rule, err := s.repo.FindByID(ctx, s.db, societyID, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, domain.ErrNotFound
	}
	return rule, nil
}

func (s *Service) invalidate(societyID snowflake.ID) {
	s.active.Delete(cacheKey(societyID))
}

func cacheKey(societyID snowflake.ID) string {
	return "active_rules:" + strconv.FormatInt(societyID.Int64(), 10)
}

func cloneRules(in []domain.Rule) []domain.Rule {
	out := make([]domain.Rule, len(in))
	copy(out, in)
	return out
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	ruledomain "github.com/smallbiznis/societybill/internal/maintenancerule/domain"
)

type createRuleRequest struct {
	Scope          string                     `json:"scope"`
	ScopeRef       string                     `json:"scope_ref"`
	AmountType     string                     `json:"amount_type"`
	Amount         *decimal.Decimal           `json:"amount"`
	BHKAmounts     map[string]decimal.Decimal `json:"bhk_amounts"`
	BillingDay     int                        `json:"billing_day"`
	DueDays        int                        `json:"due_days"`
	PenaltyEnabled bool                       `json:"penalty_enabled"`
	PenaltyType    string                     `json:"penalty_type"`
	PenaltyValue   decimal.Decimal            `json:"penalty_value"`
	IsActive       *bool                      `json:"is_active"`
}

type updateRuleRequest struct {
	Scope          *string                    `json:"scope"`
	ScopeRef       *string                    `json:"scope_ref"`
	AmountType     *string                    `json:"amount_type"`
	Amount         *decimal.Decimal           `json:"amount"`
	BHKAmounts     map[string]decimal.Decimal `json:"bhk_amounts"`
	BillingDay     *int                       `json:"billing_day"`
	DueDays        *int                       `json:"due_days"`
	PenaltyEnabled *bool                      `json:"penalty_enabled"`
	PenaltyType    *string                    `json:"penalty_type"`
	PenaltyValue   *decimal.Decimal           `json:"penalty_value"`
}

func (s *Server) CreateRule(c *gin.Context) {
	societyID, err := pathID(c, "society_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rule, err := s.ruleSvc.Create(c.Request.Context(), ruledomain.CreateRuleRequest{
		SocietyID:      societyID,
		Scope:          req.Scope,
		ScopeRef:       req.ScopeRef,
		AmountType:     req.AmountType,
		Amount:         req.Amount,
		BHKAmounts:     req.BHKAmounts,
		BillingDay:     req.BillingDay,
		DueDays:        req.DueDays,
		PenaltyEnabled: req.PenaltyEnabled,
		PenaltyType:    req.PenaltyType,
		PenaltyValue:   req.PenaltyValue,
		IsActive:       req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": newRuleView(rule)})
}

func (s *Server) ListRules(c *gin.Context) {
	societyID, err := pathID(c, "society_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	isActive, err := parseOptionalBool(c.Query("is_active"))
	if err != nil {
		AbortWithError(c, newValidationError("is_active", "invalid_is_active", "invalid is_active"))
		return
	}
	pageSize, err := parseOptionalInt(c.Query("page_size"))
	if err != nil {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "invalid page_size"))
		return
	}

	resp, err := s.ruleSvc.List(c.Request.Context(), ruledomain.ListRuleRequest{
		SocietyID: societyID,
		Scope:     c.Query("scope"),
		IsActive:  isActive,
		PageToken: c.Query("page_token"),
		PageSize:  pageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	views := make([]ruleView, 0, len(resp.Rules))
	for _, rule := range resp.Rules {
		views = append(views, newRuleView(rule))
	}
	c.JSON(http.StatusOK, gin.H{"data": views, "page_info": resp.PageInfo})
}

func (s *Server) GetRule(c *gin.Context) {
	societyID, ruleID, ok := societyAndID(c)
	if !ok {
		return
	}

	rule, err := s.ruleSvc.Get(c.Request.Context(), societyID, ruleID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newRuleView(rule)})
}

func (s *Server) UpdateRule(c *gin.Context) {
	societyID, ruleID, ok := societyAndID(c)
	if !ok {
		return
	}

	var req updateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rule, err := s.ruleSvc.Update(c.Request.Context(), ruledomain.UpdateRuleRequest{
		SocietyID:      societyID,
		ID:             ruleID,
		Scope:          req.Scope,
		ScopeRef:       req.ScopeRef,
		AmountType:     req.AmountType,
		Amount:         req.Amount,
		BHKAmounts:     req.BHKAmounts,
		BillingDay:     req.BillingDay,
		DueDays:        req.DueDays,
		PenaltyEnabled: req.PenaltyEnabled,
		PenaltyType:    req.PenaltyType,
		PenaltyValue:   req.PenaltyValue,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newRuleView(rule)})
}

func (s *Server) ActivateRule(c *gin.Context) {
	societyID, ruleID, ok := societyAndID(c)
	if !ok {
		return
	}

	rule, err := s.ruleSvc.Activate(c.Request.Context(), societyID, ruleID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newRuleView(rule)})
}

func (s *Server) DeactivateRule(c *gin.Context) {
	societyID, ruleID, ok := societyAndID(c)
	if !ok {
		return
	}

	rule, err := s.ruleSvc.Deactivate(c.Request.Context(), societyID, ruleID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newRuleView(rule)})
}

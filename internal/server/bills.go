package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	billdomain "github.com/smallbiznis/societybill/internal/bill/domain"
)

type generateBillRequest struct {
	UnitID   string `json:"unit_id"`
	ForMonth string `json:"for_month"`
}

type generateMonthRequest struct {
	ForMonth string `json:"for_month"`
}

type recordPaymentRequest struct {
	Method         string           `json:"method"`
	TransactionRef string           `json:"transaction_ref"`
	AmountPaid     *decimal.Decimal `json:"amount_paid"`
}

func (s *Server) GenerateBill(c *gin.Context) {
	societyID, err := pathID(c, "society_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req generateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	unitID, err := parseOptionalSnowflakeID(req.UnitID)
	if err != nil || unitID == 0 {
		AbortWithError(c, newValidationError("unit_id", "invalid_unit", "invalid unit_id"))
		return
	}

	bill, err := s.billSvc.GenerateBill(c.Request.Context(), billdomain.GenerateBillRequest{
		SocietyID: societyID,
		UnitID:    unitID,
		ForMonth:  req.ForMonth,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": newBillView(bill)})
}

func (s *Server) GenerateMonth(c *gin.Context) {
	societyID, err := pathID(c, "society_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req generateMonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.billSvc.GenerateForSociety(c.Request.Context(), societyID, req.ForMonth)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newGenerationReportView(report)})
}

func (s *Server) ListBills(c *gin.Context) {
	societyID, err := pathID(c, "society_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	unitID, err := parseOptionalSnowflakeID(c.Query("unit_id"))
	if err != nil {
		AbortWithError(c, newValidationError("unit_id", "invalid_unit", "invalid unit_id"))
		return
	}
	pageSize, err := parseOptionalInt(c.Query("page_size"))
	if err != nil {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "invalid page_size"))
		return
	}
	owned, err := s.residentUnitIDs(c, societyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.billSvc.ListBills(c.Request.Context(), billdomain.ListBillRequest{
		SocietyID: societyID,
		UnitID:    unitID,
		UnitIDs:   owned,
		ForMonth:  c.Query("for_month"),
		Status:    c.Query("status"),
		PageToken: c.Query("page_token"),
		PageSize:  pageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newBillViews(resp.Bills), "page_info": resp.PageInfo})
}

func (s *Server) GetBill(c *gin.Context) {
	societyID, billID, ok := societyAndID(c)
	if !ok {
		return
	}

	bill, err := s.visibleBill(c, societyID, billID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newBillView(bill)})
}

func (s *Server) RecordPayment(c *gin.Context) {
	societyID, billID, ok := societyAndID(c)
	if !ok {
		return
	}

	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.AmountPaid == nil {
		AbortWithError(c, newValidationError("amount_paid", "invalid_amount_paid", "amount_paid is required"))
		return
	}

	if _, err := s.visibleBill(c, societyID, billID); err != nil {
		AbortWithError(c, err)
		return
	}

	bill, err := s.billSvc.RecordPayment(c.Request.Context(), billdomain.RecordPaymentRequest{
		SocietyID:      societyID,
		BillID:         billID,
		Method:         req.Method,
		TransactionRef: strings.TrimSpace(req.TransactionRef),
		AmountPaid:     *req.AmountPaid,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newBillView(bill)})
}

// visibleBill loads the evaluated bill, hiding bills on units a resident does not occupy.
func (s *Server) visibleBill(c *gin.Context, societyID, billID snowflake.ID) (billdomain.Bill, error) {
	bill, err := s.billSvc.GetBill(c.Request.Context(), billdomain.GetBillRequest{SocietyID: societyID, ID: billID})
	if err != nil {
		return billdomain.Bill{}, err
	}
	owned, err := s.residentUnitIDs(c, societyID)
	if err != nil {
		return billdomain.Bill{}, err
	}
	if owned != nil && !lo.Contains(owned, bill.UnitID) {
		return billdomain.Bill{}, ErrNotFound
	}
	return bill, nil
}

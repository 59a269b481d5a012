package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	billdomain "github.com/smallbiznis/societybill/internal/bill/domain"
	unitdomain "github.com/smallbiznis/societybill/internal/unit/domain"
)

// GetApplicableRule reports the rule that would bill the unit right now. A unit with
// no applicable rule answers 200 with a null rule.
func (s *Server) GetApplicableRule(c *gin.Context) {
	societyID, err := pathID(c, "society_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	unitID, err := pathID(c, "unit_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	unit, err := s.units.FindByID(c.Request.Context(), societyID, unitID)
	if err != nil {
		if errors.Is(err, unitdomain.ErrNotFound) {
			err = billdomain.ErrUnitNotFound
		}
		AbortWithError(c, err)
		return
	}
	if err := ensureUnitAccess(actor, *unit); err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.billSvc.ResolveApplicableRule(c.Request.Context(), billdomain.ResolveRuleRequest{
		SocietyID: societyID,
		UnitID:    unitID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newResolutionView(res)})
}

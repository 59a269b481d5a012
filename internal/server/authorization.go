package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/smallbiznis/societybill/internal/authorization"
	unitdomain "github.com/smallbiznis/societybill/internal/unit/domain"
)

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		societyID := strings.TrimSpace(c.Param("society_id"))
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, societyID, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// residentUnitIDs returns the units the actor occupies, or nil when the actor is not
// a resident and sees the whole society.
func (s *Server) residentUnitIDs(c *gin.Context, societyID snowflake.ID) ([]snowflake.ID, error) {
	actor, ok := actorFromContext(c)
	if !ok {
		return nil, ErrUnauthorized
	}
	if !actor.IsResident() {
		return nil, nil
	}
	units, err := s.units.ListByResident(c.Request.Context(), societyID, actor.ID)
	if err != nil {
		return nil, err
	}
	return lo.Map(units, func(unit unitdomain.Unit, _ int) snowflake.ID {
		return unit.ID
	}), nil
}

// ensureUnitAccess hides units a resident does not occupy behind not found.
func ensureUnitAccess(actor authorization.Actor, unit unitdomain.Unit) error {
	if actor.IsResident() && !unit.OccupiedBy(actor.ID) {
		return ErrNotFound
	}
	return nil
}

package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalInt(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	return strconv.Atoi(trimmed)
}

func parseOptionalSnowflakeID(value string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return 0, ErrInvalidRequest
	}
	return parsed, nil
}

func pathID(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || id <= 0 {
		return 0, newValidationError(name, "invalid_"+name, "invalid identifier")
	}
	return id, nil
}

func societyAndID(c *gin.Context) (snowflake.ID, snowflake.ID, bool) {
	societyID, err := pathID(c, "society_id")
	if err != nil {
		AbortWithError(c, err)
		return 0, 0, false
	}
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return 0, 0, false
	}
	return societyID, id, true
}

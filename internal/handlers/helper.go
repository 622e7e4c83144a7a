package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const maxStringIDLength = 64

// ParseStringIDParam reads a non-empty string path parameter, answering 400
// and returning "" when it is missing or too long.
func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := strings.TrimSpace(c.Param(param))
	if idStr == "" || len(idStr) > maxStringIDLength {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID must be between 1 and 64 characters",
		})
		return ""
	}
	return idStr
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/applyforge/applyforge-backend/internal/apierr"
)

// abortWithError maps a service error onto the HTTP taxonomy:
// 404 not_found, 422 validation, 403 job_locked, 409 conflict, 429 llm_quota;
// anything untyped is a 500.
func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apierr.StatusOf(err), gin.H{
		"error": err.Error(),
		"code":  apierr.CodeOf(err),
	})
}

// paramID parses a numeric path parameter; responds 404 on garbage since a
// non-numeric id can never name a resource.
func paramID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error": "invalid " + name + ": " + raw,
			"code":  "not_found",
		})
		return 0, false
	}
	return uint(id), true
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

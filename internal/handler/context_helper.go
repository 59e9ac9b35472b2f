package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-erp-api/internal/middleware"
	"github.com/noah-isme/student-erp-api/internal/policy"
	appErrors "github.com/noah-isme/student-erp-api/pkg/errors"
	"github.com/noah-isme/student-erp-api/pkg/response"
)

// actorFromContext resolves the caller set by the JWT middleware. It writes a 401 and
// returns false when the route was reached without one.
func actorFromContext(c *gin.Context) (policy.Actor, bool) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return policy.Actor{}, false
	}
	return policy.ActorFromClaims(claims), true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func respondList(c *gin.Context, data interface{}, count int) {
	middleware.SetMeta(c, "count", count)
	response.JSON(c, http.StatusOK, data, middleware.ExtractMeta(c))
}

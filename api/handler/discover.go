package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pardeepdhingra/urllens/discovery"
	"github.com/pardeepdhingra/urllens/models"
)

// Discover returns a handler for POST /api/v1/discover.
//
// Discovery is synchronous: sitemap walks are bounded and cheap compared
// to probing, so there is no job to poll. Individual source failures are
// reported on the result, not as request errors.
func Discover(e *discovery.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.DiscoverRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.DiscoverResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		result, err := e.Discover(c.Request.Context(), req.Domain, discovery.Options{
			MaxURLs:            req.MaxURLs,
			Timeout:            time.Duration(req.Timeout) * time.Second,
			IncludeCommonPaths: *req.IncludeCommonPaths,
		})
		if err != nil {
			respondError(c, models.NewAuditError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}

		c.JSON(http.StatusOK, models.DiscoverResponse{
			Success: true,
			Result:  result,
		})
	}
}

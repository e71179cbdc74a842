package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pardeepdhingra/urllens/auditor"
	"github.com/pardeepdhingra/urllens/models"
	"github.com/pardeepdhingra/urllens/store"
)

// PostAudit returns a handler for POST /api/v1/audit.
//
// The session is created synchronously and validated before the response;
// probing runs in the background. Clients poll GET /api/v1/audit/:id for
// progress and results, or set webhook_url to be notified.
func PostAudit(a *auditor.Auditor) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindAuditRequest(c)
		if !ok {
			return
		}
		if req.Mode == "" {
			req.Mode = models.ModeBatch
		}
		startSession(c, a, req)
	}
}

// PostDomainAudit returns a handler for POST /api/v1/audit/domain:
// POST /api/v1/audit with the mode pinned to domain discovery.
func PostDomainAudit(a *auditor.Auditor) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindAuditRequest(c)
		if !ok {
			return
		}
		req.Mode = models.ModeDomain
		startSession(c, a, req)
	}
}

// GetAudit returns a handler for GET /api/v1/audit/:id.
func GetAudit(st store.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		session, ok := st.Get(id)
		if !ok {
			respondError(c, models.NewAuditError(models.ErrCodeSessionNotFound, "audit session not found: "+id, nil))
			return
		}

		c.JSON(http.StatusOK, models.SessionResponse{
			Success: true,
			Session: session,
		})
	}
}

func bindAuditRequest(c *gin.Context) (*models.AuditRequest, bool) {
	var req models.AuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.AuditResponse{
			Success: false,
			Error: &models.ErrorDetail{
				Code:    models.ErrCodeInvalidInput,
				Message: err.Error(),
			},
		})
		return nil, false
	}
	return &req, true
}

func startSession(c *gin.Context, a *auditor.Auditor, req *models.AuditRequest) {
	session, err := a.Start(req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AuditResponse{
		Success:   true,
		SessionID: session.ID,
		Status:    session.Status,
		TotalURLs: session.TotalURLs,
	})
}

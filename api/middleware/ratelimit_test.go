package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pardeepdhingra/urllens/models"
	"github.com/pardeepdhingra/urllens/ratelimit"
)

// recordingLimiter denies everything and records the identities it saw.
type recordingLimiter struct {
	identities []string
}

func (l *recordingLimiter) Allow(identity string) bool {
	l.identities = append(l.identities, identity)
	return false
}

func limitedRouter(l ratelimit.Limiter, pre gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(RateLimit(l))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestRateLimitAllows(t *testing.T) {
	r := limitedRouter(ratelimit.Nop{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRateLimitRejectsWith429(t *testing.T) {
	r := limitedRouter(&recordingLimiter{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeRateLimited {
		t.Errorf("error = %+v, want code %s", resp.Error, models.ErrCodeRateLimited)
	}
}

func TestRateLimitPrefersAPIKeyIdentity(t *testing.T) {
	rec := &recordingLimiter{}
	setKey := func(c *gin.Context) {
		c.Set("api_key", "key-7")
		c.Next()
	}
	r := limitedRouter(rec, setKey)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if len(rec.identities) != 1 || rec.identities[0] != "key-7" {
		t.Errorf("identities = %v, want [key-7]", rec.identities)
	}
}

func TestRateLimitFallsBackToClientIP(t *testing.T) {
	rec := &recordingLimiter{}
	r := limitedRouter(rec, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "203.0.113.9:4411"
	r.ServeHTTP(w, req)

	if len(rec.identities) != 1 || rec.identities[0] != "203.0.113.9" {
		t.Errorf("identities = %v, want [203.0.113.9]", rec.identities)
	}
}

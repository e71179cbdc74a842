package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pardeepdhingra/urllens/auditor"
	"github.com/pardeepdhingra/urllens/cache"
	"github.com/pardeepdhingra/urllens/config"
	"github.com/pardeepdhingra/urllens/discovery"
	"github.com/pardeepdhingra/urllens/models"
	"github.com/pardeepdhingra/urllens/preview"
	"github.com/pardeepdhingra/urllens/prober"
	"github.com/pardeepdhingra/urllens/ratelimit"
	"github.com/pardeepdhingra/urllens/render"
	"github.com/pardeepdhingra/urllens/store"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Mode = gin.TestMode
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []string{"test-key"}

	p := prober.New(config.ProberConfig{DefaultTimeout: 5 * time.Second}, nil)
	e := discovery.New(p, nil, config.DiscoveryConfig{})
	st := store.NewMemoryStore(0, 0)
	t.Cleanup(st.Close)
	a := auditor.New(p, e, st, nil, config.AuditConfig{})
	t.Cleanup(a.Close)
	cc := cache.New(0)
	t.Cleanup(cc.Close)

	return NewRouter(p, e, a, st, cc, preview.New(), render.Unavailable{}, ratelimit.Nop{}, cfg, time.Now())
}

func TestRouterHealthNeedsNoAuth(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status == "" {
		t.Error("health status is empty")
	}
}

func TestRouterProtectsAPIEndpoints(t *testing.T) {
	r := testRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/probe"},
		{http.MethodPost, "/api/v1/audit"},
		{http.MethodPost, "/api/v1/audit/domain"},
		{http.MethodGet, "/api/v1/audit/some-id"},
		{http.MethodPost, "/api/v1/discover"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(p.method, p.path, nil))
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401 without a key", w.Code)
			}
		})
	}
}

func TestRouterAuthorizedRequestReachesHandler(t *testing.T) {
	r := testRouter(t)

	// Empty body: past auth, the handler should reject it as invalid
	// input rather than the middleware rejecting the key.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/probe", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "test-key")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 from the probe handler", w.Code)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeInvalidInput {
		t.Errorf("error = %+v, want code %s", resp.Error, models.ErrCodeInvalidInput)
	}
}

func TestRouterSessionLookupWithBearerKey(t *testing.T) {
	r := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit/audit-missing", nil)
	req.Header.Set("Authorization", "Bearer test-key")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown session", w.Code)
	}
}

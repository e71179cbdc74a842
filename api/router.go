package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pardeepdhingra/urllens/api/handler"
	"github.com/pardeepdhingra/urllens/api/middleware"
	"github.com/pardeepdhingra/urllens/auditor"
	"github.com/pardeepdhingra/urllens/cache"
	"github.com/pardeepdhingra/urllens/config"
	"github.com/pardeepdhingra/urllens/discovery"
	"github.com/pardeepdhingra/urllens/preview"
	"github.com/pardeepdhingra/urllens/prober"
	"github.com/pardeepdhingra/urllens/ratelimit"
	"github.com/pardeepdhingra/urllens/render"
	"github.com/pardeepdhingra/urllens/store"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(
	p *prober.Prober,
	e *discovery.Engine,
	a *auditor.Auditor,
	st store.SessionStore,
	cc *cache.Cache,
	pg *preview.Generator,
	rd render.Renderer,
	rl ratelimit.Limiter,
	cfg *config.Config,
	startTime time.Time,
) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(st, rd, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(rl))

	// Probe (synchronous)
	protected.POST("/probe", handler.Probe(p, cc, pg, rd))

	// Audit sessions (asynchronous)
	protected.POST("/audit", handler.PostAudit(a))
	protected.POST("/audit/domain", handler.PostDomainAudit(a))
	protected.GET("/audit/:id", handler.GetAudit(st))

	// Discovery (synchronous)
	protected.POST("/discover", handler.Discover(e))

	return r
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pardeepdhingra/urllens/cache"
	"github.com/pardeepdhingra/urllens/models"
	"github.com/pardeepdhingra/urllens/preview"
	"github.com/pardeepdhingra/urllens/prober"
	"github.com/pardeepdhingra/urllens/render"
	"github.com/pardeepdhingra/urllens/scoring"
)

// Probe returns a handler for POST /api/v1/probe.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup (when max_age > 0); a hit skips the network entirely.
//  3. Prober.Probe → outcome, bounded by the requested timeout.
//  4. scoring.Evaluate → breakdown + recommendation (always recomputed,
//     cache hits included).
//  5. Optional content preview and render confirmation.
//  6. Cache store, return 200.
func Probe(p *prober.Prober, cc *cache.Cache, pg *preview.Generator, rd render.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ProbeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		cacheKey := cache.Key(req.URL, prober.CatalogVersion)
		if cc != nil && req.MaxAge > 0 {
			if outcome, hit := cc.Get(cacheKey, req.MaxAge); hit {
				respondProbe(c, &req, outcome, pg, rd, "hit")
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(req.Timeout)*time.Second)
		defer cancel()

		outcome, err := p.Probe(ctx, req.URL)
		if err != nil {
			respondError(c, models.NewAuditError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}

		if cc != nil && req.MaxAge > 0 {
			cc.Set(cacheKey, outcome)
			respondProbe(c, &req, outcome, pg, rd, "miss")
			return
		}
		respondProbe(c, &req, outcome, pg, rd, "")
	}
}

// respondProbe scores an outcome and assembles the response, including
// the optional preview and render check the request asked for.
func respondProbe(c *gin.Context, req *models.ProbeRequest, outcome *models.ProbeOutcome, pg *preview.Generator, rd render.Renderer, cacheStatus string) {
	score, rec := scoring.Evaluate(outcome)

	resp := models.ProbeResponse{
		Success:        true,
		Outcome:        outcome,
		Score:          score,
		Recommendation: rec,
		CacheStatus:    cacheStatus,
	}
	if req.IncludePreview {
		resp.Preview = buildPreview(pg, outcome)
	}
	if req.ConfirmJS {
		resp.RenderCheck = confirmJS(c.Request.Context(), rd, outcome)
	}

	c.JSON(http.StatusOK, resp)
}

// buildPreview extracts a content preview for accessible HTML outcomes.
// The prober captures bodies only for HTML responses, so a non-empty body
// already implies previewable content. Cached outcomes carry just the
// body sample, which is still an HTML prefix and previews fine.
func buildPreview(pg *preview.Generator, o *models.ProbeOutcome) *models.Preview {
	if pg == nil || !o.Accessible {
		return nil
	}
	body := o.Body
	if len(body) == 0 && o.BodySample != "" {
		body = []byte(o.BodySample)
	}
	if len(body) == 0 {
		return nil
	}
	return pg.FromBody(body, o.FinalURL)
}

// confirmJS runs the headless render check for pages the static probe
// flagged as JavaScript-dependent. Pages that render fine without
// JavaScript skip the browser round-trip with an explanatory note.
func confirmJS(ctx context.Context, rd render.Renderer, o *models.ProbeOutcome) *models.RenderCheck {
	if rd == nil {
		rd = render.Unavailable{}
	}
	if !o.Accessible {
		return &models.RenderCheck{Note: "url not accessible"}
	}
	if !o.JSRequired {
		return &models.RenderCheck{Note: "page does not require JavaScript"}
	}

	check, err := rd.Check(ctx, o.FinalURL)
	if err != nil {
		slog.Warn("render check failed", "url", o.FinalURL, "error", err)
		return &models.RenderCheck{Note: "render check failed: " + err.Error()}
	}
	return check
}

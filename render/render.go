// Package render provides the optional headless-browser capability used
// to confirm whether a JavaScript-dependent page yields real content
// once scripts execute. Deployments without a browser get Unavailable,
// and the rest of the system keeps working.
package render

import (
	"context"
	"log/slog"

	"github.com/pardeepdhingra/urllens/config"
	"github.com/pardeepdhingra/urllens/models"
)

// Renderer checks what a page looks like after JavaScript execution.
type Renderer interface {
	// Check renders the URL and reports whether substantive visible
	// content appeared.
	Check(ctx context.Context, rawURL string) (*models.RenderCheck, error)

	// Available reports whether this renderer can perform checks.
	Available() bool

	// Close releases browser resources.
	Close()
}

// Unavailable is the Renderer used when no browser is configured. Checks
// succeed but report that nothing was rendered.
type Unavailable struct{}

func (Unavailable) Check(ctx context.Context, rawURL string) (*models.RenderCheck, error) {
	return &models.RenderCheck{
		Performed: false,
		Note:      "renderer not configured",
	}, nil
}

func (Unavailable) Available() bool { return false }

func (Unavailable) Close() {}

// FromConfig returns a browser-backed renderer when enabled, Unavailable
// otherwise. Launch failures degrade to Unavailable with a warning so
// the API keeps serving.
func FromConfig(cfg config.RenderConfig) Renderer {
	if !cfg.Enabled {
		return Unavailable{}
	}
	b, err := NewBrowser(cfg)
	if err != nil {
		slog.Warn("renderer unavailable, render checks disabled", "error", err)
		return Unavailable{}
	}
	return b
}

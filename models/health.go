package models

// SessionStats summarizes the in-memory session store for health checks.
type SessionStats struct {
	// Total counts sessions currently retained, terminal ones included.
	Total int `json:"total"`
	// Active counts sessions still running (non-terminal status).
	Active int `json:"active"`
	// Max is the configured session retention cap.
	Max int `json:"max"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status         string       `json:"status"`
	Uptime         string       `json:"uptime"`
	Sessions       SessionStats `json:"sessions"`
	Renderer       string       `json:"renderer"`
	CatalogVersion string       `json:"catalog_version"`
	Version        string       `json:"version"`
}

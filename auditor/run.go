package auditor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pardeepdhingra/urllens/discovery"
	"github.com/pardeepdhingra/urllens/models"
	"github.com/pardeepdhingra/urllens/store"
	"github.com/pardeepdhingra/urllens/webhook"
)

// Start validates req, registers a new session and runs it in the
// background. The returned session is a snapshot taken right after
// creation; poll the store for progress.
func (a *Auditor) Start(req *models.AuditRequest) (*models.AuditSession, error) {
	req.Defaults()

	switch req.Mode {
	case models.ModeBatch:
		if len(req.URLs) == 0 {
			return nil, models.NewAuditError(models.ErrCodeInvalidInput, "batch mode requires urls", nil)
		}
		if len(req.URLs) > a.cfg.MaxBatchURLs {
			return nil, models.NewAuditError(models.ErrCodeInvalidInput,
				fmt.Sprintf("at most %d urls per batch", a.cfg.MaxBatchURLs), nil)
		}
	case models.ModeDomain:
		if req.Domain == "" {
			return nil, models.NewAuditError(models.ErrCodeInvalidInput, "domain mode requires domain", nil)
		}
	default:
		return nil, models.NewAuditError(models.ErrCodeInvalidInput, "mode must be batch or domain", nil)
	}
	if req.Concurrency > a.cfg.MaxConcurrency {
		req.Concurrency = a.cfg.MaxConcurrency
	}

	session := &models.AuditSession{
		ID:          "audit-" + randomID(),
		Mode:        req.Mode,
		Domain:      req.Domain,
		TotalURLs:   len(req.URLs),
		Status:      models.StatusPending,
		CurrentStep: "queued",
		CreatedAt:   time.Now(),
	}
	if err := a.store.Create(session); err != nil {
		if err == store.ErrStoreFull {
			return nil, models.NewAuditError(models.ErrCodeRateLimited, "too many audit sessions, retry later", err)
		}
		return nil, fmt.Errorf("auditor: create session: %w", err)
	}

	slog.Info("audit session started",
		"session_id", session.ID,
		"mode", req.Mode,
		"urls", len(req.URLs),
		"domain", req.Domain,
	)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.run(session.ID, req)
	}()

	snapshot, _ := a.store.Get(session.ID)
	return snapshot, nil
}

// run drives one session through its lifecycle. Individual probe
// failures are data; only orchestration-level failures (panics, input
// that slipped past validation) move the session to failed.
func (a *Auditor) run(id string, req *models.AuditRequest) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("audit session panicked", "session_id", id, "panic", r)
			a.fail(id, fmt.Sprintf("internal error: %v", r), req)
		}
	}()

	ctx := context.Background()
	urls := req.URLs

	if req.Mode == models.ModeDomain {
		a.setPhase(id, models.StatusDiscovering, "discovering URLs for "+req.Domain)

		result, err := a.discover.Discover(ctx, req.Domain, discovery.Options{
			MaxURLs:            req.MaxURLs,
			Timeout:            time.Duration(req.Timeout) * time.Second,
			IncludeCommonPaths: req.IncludeCommonPaths == nil || *req.IncludeCommonPaths,
		})
		if err != nil {
			a.fail(id, "discovery failed: "+err.Error(), req)
			return
		}

		urls = make([]string, 0, len(result.DiscoveredURLs))
		for _, d := range result.DiscoveredURLs {
			urls = append(urls, d.URL)
		}
		a.store.Update(id, func(s *models.AuditSession) {
			s.Discovery = result
			s.TotalURLs = len(urls)
		})
		slog.Info("discovery finished", "session_id", id, "domain", req.Domain, "urls", len(urls))
	}

	a.setPhase(id, models.StatusTesting, fmt.Sprintf("testing %d URLs", len(urls)))

	opts := Options{
		Concurrency: req.Concurrency,
		Timeout:     time.Duration(req.Timeout) * time.Second,
	}
	results, err := a.RunBatch(ctx, urls, opts, func(p models.Progress) {
		a.store.Update(id, func(s *models.AuditSession) {
			s.CompletedURLs = p.CompletedURLs
			s.CurrentStep = p.CurrentStep
		})
	})
	if err != nil {
		a.fail(id, err.Error(), req)
		return
	}

	a.setPhase(id, models.StatusScoring, "computing summary")
	summary := Summarize(results)

	now := time.Now()
	a.store.Update(id, func(s *models.AuditSession) {
		s.Status = models.StatusCompleted
		s.CurrentStep = "done"
		s.Results = results
		s.Summary = summary
		s.CompletedURLs = len(results)
		s.CompletedAt = &now
	})
	slog.Info("audit session completed",
		"session_id", id,
		"urls", len(results),
		"accessible", summary.AccessibleCount,
		"average_score", summary.AverageScore,
	)
	a.notify(id, req, webhook.EventAuditCompleted)
}

func (a *Auditor) setPhase(id string, status models.SessionStatus, step string) {
	a.store.Update(id, func(s *models.AuditSession) {
		s.Status = status
		s.CurrentStep = step
	})
	slog.Debug("audit session phase", "session_id", id, "status", status, "step", step)
}

func (a *Auditor) fail(id, message string, req *models.AuditRequest) {
	now := time.Now()
	a.store.Update(id, func(s *models.AuditSession) {
		s.Status = models.StatusFailed
		s.Error = message
		s.CurrentStep = ""
		s.CompletedAt = &now
	})
	slog.Error("audit session failed", "session_id", id, "error", message)
	a.notify(id, req, webhook.EventAuditFailed)
}

// notify delivers a lifecycle event when the request asked for one. The
// event carries the session with its summary; full results stay on the
// poll endpoint.
func (a *Auditor) notify(id string, req *models.AuditRequest, eventType string) {
	if req.WebhookURL == "" {
		return
	}
	snapshot, ok := a.store.Get(id)
	if !ok {
		return
	}
	snapshot.Results = nil
	snapshot.Discovery = nil
	webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, webhook.NewEvent(eventType, id, snapshot))
}

package app

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// a parse held longer than this is reported as stuck
const stuckLease = time.Minute

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if s.app == nil || s.app.Compiler == nil {
		status.Status = "degraded"
		status.Components["compiler"] = "missing"
		return status
	}
	langs := s.app.Compiler.Parser().Languages()
	if len(langs) == 0 {
		status.Status = "degraded"
		status.Components["compiler"] = "no languages enabled"
	} else {
		status.Components["compiler"] = fmt.Sprintf("ok (%s)", strings.Join(langs, ", "))
	}

	leased, oldest := s.app.Compiler.Parser().Leases()
	if oldest > stuckLease {
		status.Status = "degraded"
		status.Components["parsers"] = fmt.Sprintf("%d leased, oldest held %s", leased, oldest.Round(time.Second))
	} else {
		status.Components["parsers"] = fmt.Sprintf("%d leased", leased)
	}

	switch {
	case s.app.cache != nil:
		if err := s.app.cache.Ping(ctx); err != nil {
			status.Status = "degraded"
			status.Components["cache"] = "unreachable: " + err.Error()
		} else {
			status.Components["cache"] = "ok"
		}
	case s.app.config().Cache.IsEnabled():
		status.Components["cache"] = "disabled for this run"
	default:
		status.Components["cache"] = "disabled"
	}
	return status
}

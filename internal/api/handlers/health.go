package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dom/streamgate/internal/api/respond"
	"github.com/dom/streamgate/internal/repository"
	"github.com/sirupsen/logrus"
)

// HealthChecks names the dependencies reported by /health.
type HealthChecks map[string]repository.HealthChecker

type HealthHandler struct {
	checkers HealthChecks
}

func NewHealthHandler(checkers HealthChecks) *HealthHandler {
	return &HealthHandler{checkers: checkers}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]string{"status": "ok"}
	status := http.StatusOK
	for name, checker := range h.checkers {
		if checker == nil {
			continue
		}
		if err := checker.Ping(ctx); err != nil {
			logrus.WithError(err).WithField("dependency", name).Error("[HealthHandler.Check] dependency unhealthy")
			body[name] = "unavailable"
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		body[name] = "ok"
	}

	respond.JSON(w, status, body)
}

package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"therapyhub/internal/delivery/http/helpers"
)

// Pinger reports whether a backing store is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthStatus is the body of GET /healthz.
type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthController serves the liveness and readiness check. The database is required; the
// broker only carries notifications, so losing it degrades the service without failing it.
type HealthController struct {
	Logger *slog.Logger
	DB     Pinger
	Broker Pinger
}

// NewHealthController returns a HealthController. broker may be nil when events are not
// published.
func NewHealthController(logger *slog.Logger, db, broker Pinger) *HealthController {
	return &HealthController{Logger: logger, DB: db, Broker: broker}
}

// Health godoc
// @Summary Health check
// @Description Reports ok when the database and broker answer within two seconds, degraded
// @Description when only the broker is down, and 503 when the database is down.
// @Tags health
// @Produce json
// @Success 200 {object} helpers.APIResponse
// @Failure 503 {object} helpers.APIResponse
// @Router /healthz [get]
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := HealthStatus{Status: "ok", Checks: map[string]string{}}
	code := http.StatusOK
	if c.DB != nil {
		body.Checks["database"] = "ok"
		if err := c.DB.PingContext(ctx); err != nil {
			c.Logger.ErrorContext(ctx, "health check failed", "check", "database", "err", err)
			body.Checks["database"] = "unavailable"
			body.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	if c.Broker != nil {
		body.Checks["broker"] = "ok"
		if err := c.Broker.PingContext(ctx); err != nil {
			c.Logger.WarnContext(ctx, "health check failed", "check", "broker", "err", err)
			body.Checks["broker"] = "unavailable"
			if code == http.StatusOK {
				body.Status = "degraded"
			}
		}
	}
	helpers.WriteJSONSuccess(w, code, body)
}

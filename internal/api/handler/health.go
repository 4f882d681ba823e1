package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthHandler serves the liveness and readiness checks.
type HealthHandler struct {
	checks []DependencyCheck
}

// DependencyCheck is one readiness dependency.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func NewHealthHandler(checks ...DependencyCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// MongoCheck pings the database with a command round trip.
func MongoCheck(db *mongo.Database) DependencyCheck {
	return DependencyCheck{Name: "mongodb", Check: func(ctx context.Context) error {
		return db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
	}}
}

func RedisCheck(rdb *redis.Client) DependencyCheck {
	return DependencyCheck{Name: "redis", Check: func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

// Liveness handles GET /health.
//
// @Summary  Liveness check
// @Tags     health
// @Produce  json
// @Success  200  {object}  Envelope
// @Router   /health [get]
func (h *HealthHandler) Liveness(c echo.Context) error {
	return Respond(c, http.StatusOK, "ok", map[string]string{"status": "ok"})
}

// Readiness handles GET /health/ready.
//
// @Summary  Readiness check
// @Tags     health
// @Produce  json
// @Success  200  {object}  Envelope{data=readinessResponse}
// @Failure  503  {object}  Envelope{data=readinessResponse}
// @Router   /health/ready [get]
func (h *HealthHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]dependencyStatus, len(h.checks))
	healthy := true
	for _, dc := range h.checks {
		if err := dc.Check(ctx); err != nil {
			deps[dc.Name] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			healthy = false
			continue
		}
		deps[dc.Name] = dependencyStatus{Status: "ok"}
	}

	body := readinessResponse{Status: "ok", Dependencies: deps}
	if !healthy {
		body.Status = "degraded"
		return c.JSON(http.StatusServiceUnavailable, Envelope{Success: false, Message: "degraded", Data: body})
	}
	return Respond(c, http.StatusOK, "ok", body)
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestHealthHandler_Liveness(t *testing.T) {
	c, rec := newCartContext(http.MethodGet, "/health", "", nil)

	if err := NewHealthHandler().Liveness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	ok := DependencyCheck{Name: "mongodb", Check: func(context.Context) error { return nil }}
	down := DependencyCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }}

	c, rec := newCartContext(http.MethodGet, "/health/ready", "", nil)
	if err := NewHealthHandler(ok).Readiness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c, rec = newCartContext(http.MethodGet, "/health/ready", "", nil)
	if err := NewHealthHandler(ok, down).Readiness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	env, data := decodeEnvelope(t, rec)
	deps, _ := data["dependencies"].(map[string]any)
	redis, _ := deps["redis"].(map[string]any)
	if env.Success || data["status"] != "degraded" || redis["status"] != "unhealthy" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(nil, nil, nil)
	r := newTestRouter()
	r.GET("/health", h.HealthCheck)

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestReadinessCheck_OptionalDependencies(t *testing.T) {
	connected := false
	h := NewHealthHandler(nil, nil, func() bool { return connected })
	r := newTestRouter()
	r.GET("/ready", h.ReadinessCheck)

	w := doJSON(t, r, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)
	checks := decode(t, w)["checks"].(map[string]interface{})
	assert.Equal(t, "disabled", checks["cache"])
	assert.Equal(t, "disconnected", checks["events"])

	connected = true
	w = doJSON(t, r, http.MethodGet, "/ready", nil)
	checks = decode(t, w)["checks"].(map[string]interface{})
	assert.Equal(t, "connected", checks["events"])
}

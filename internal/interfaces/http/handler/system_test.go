package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func systemRouter(h *SystemHandler) *gin.Engine {
	r := newTestRouter(nil)
	r.GET("/health", h.Health)
	r.GET("/ping", h.Ping)
	r.GET("/system/info", h.GetSystemInfo)
	return r
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("ERP BFF", "1.2.3", nil)
	assert.False(t, h.startTime.IsZero())

	w := doRequest(systemRouter(h), http.MethodGet, "/system/info", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got SystemInfoResponse
	decodeData(t, w, &got)
	assert.Equal(t, "ERP BFF", got.Name)
	assert.Equal(t, "1.2.3", got.Version)
	assert.NotEmpty(t, got.GoVersion)
	assert.NotEmpty(t, got.Uptime)
}

func TestSystemHandler_Ping(t *testing.T) {
	w := doRequest(systemRouter(NewSystemHandler("ERP BFF", "dev", nil)), http.MethodGet, "/ping", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got PingResponse
	decodeData(t, w, &got)
	assert.Equal(t, "pong", got.Message)
	_, err := time.Parse(time.RFC3339, got.Timestamp)
	assert.NoError(t, err)
}

func TestSystemHandler_Health(t *testing.T) {
	ok := func(context.Context) error { return nil }

	t.Run("all dependencies up", func(t *testing.T) {
		h := NewSystemHandler("ERP BFF", "dev", map[string]HealthCheck{"erpnext": ok, "session_store": ok})
		w := doRequest(systemRouter(h), http.MethodGet, "/health", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var got HealthResponse
		decodeData(t, w, &got)
		assert.Equal(t, "healthy", got.Status)
		assert.Equal(t, map[string]string{"erpnext": "ok", "session_store": "ok"}, got.Checks)
	})

	t.Run("erpnext down", func(t *testing.T) {
		var deadline bool
		down := func(ctx context.Context) error {
			_, deadline = ctx.Deadline()
			return errors.New("connection refused")
		}
		h := NewSystemHandler("ERP BFF", "dev", map[string]HealthCheck{"erpnext": down, "session_store": ok})
		w := doRequest(systemRouter(h), http.MethodGet, "/health", nil)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"erpnext":"error"`)
		assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)
		assert.True(t, deadline)
	})

	t.Run("no checks", func(t *testing.T) {
		w := doRequest(systemRouter(NewSystemHandler("ERP BFF", "dev", nil)), http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/interfaces/http/dto"
	"github.com/erp/bff/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
}

func testSession() *identity.Session {
	return &identity.Session{
		ID:          "sess-1",
		User:        "ana@example.com",
		FullName:    "Ana Gómez",
		UpstreamSID: "sid-upstream",
		Company:     "Acme SA",
		Companies:   []string{"Acme SA", "Beta SA"},
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

// withSession simulates SessionAuth for the routes of a test router
func withSession(session *identity.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		if session != nil {
			c.Set(middleware.SessionKey, session)
		}
		c.Next()
	}
}

func newTestRouter(session *identity.Session) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), withSession(session))
	return r
}

func doRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decodeData unmarshals the data block of a success envelope into dest
func decodeData(t *testing.T, w *httptest.ResponseRecorder, dest any) dto.Response {
	t.Helper()
	var envelope struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, w.Body.String())
	if dest != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, dest))
	}
	return envelope.Response
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestGetRequestID(t *testing.T) {
	t.Run("from middleware", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Set(middleware.RequestIDKey, "ctx-request-id")
		assert.Equal(t, "ctx-request-id", getRequestID(c))
	})

	t.Run("falls back to the header", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set(middleware.RequestIDHeader, "header-request-id")
		assert.Equal(t, "header-request-id", getRequestID(c))
	})
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:    "not found",
			err:     shared.Errorf(shared.ErrNotFound, "Sales Invoice FE-A-0001-00000001 not found"),
			status:  http.StatusNotFound,
			code:    dto.ErrCodeNotFound,
			message: "Sales Invoice FE-A-0001-00000001 not found",
		},
		{
			name:   "forbidden company",
			err:    shared.Errorf(shared.ErrForbidden, "company not allowed"),
			status: http.StatusForbidden,
			code:   dto.ErrCodeForbidden,
		},
		{
			name:   "invalid state",
			err:    shared.Errorf(shared.ErrInvalidState, "already submitted"),
			status: http.StatusUnprocessableEntity,
			code:   dto.ErrCodeInvalidState,
		},
		{
			name:   "wrapped domain error",
			err:    fmt.Errorf("create: %w", shared.Errorf(shared.ErrInvalidInput, "bad CUIT")),
			status: http.StatusBadRequest,
			code:   dto.ErrCodeInvalidInput,
		},
		{
			name:   "upstream failure",
			err:    &erpnext.Error{Status: http.StatusServiceUnavailable, Message: "Service Unavailable"},
			status: http.StatusBadGateway,
			code:   dto.ErrCodeUpstreamUnavailable,
		},
		{
			name:   "upstream garbage",
			err:    fmt.Errorf("list: %w", erpnext.ErrInvalidResponse),
			status: http.StatusBadGateway,
			code:   dto.ErrCodeUpstreamUnavailable,
		},
		{
			name:   "deadline",
			err:    fmt.Errorf("get: %w", context.DeadlineExceeded),
			status: http.StatusBadGateway,
			code:   dto.ErrCodeUpstreamUnavailable,
		},
		{
			name:    "unknown error",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			code:    dto.ErrCodeInternal,
			message: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			r := newTestRouter(nil)
			r.GET("/test", func(c *gin.Context) { h.HandleError(c, tt.err) })

			w := doRequest(r, http.MethodGet, "/test", nil)

			assert.Equal(t, tt.status, w.Code)
			info := decodeError(t, w)
			assert.Equal(t, tt.code, info.Code)
			assert.NotEmpty(t, info.RequestID)
			if tt.message != "" {
				assert.Equal(t, tt.message, info.Message)
			}
		})
	}
}

func TestBaseHandler_Session(t *testing.T) {
	h := &BaseHandler{}
	handler := func(c *gin.Context) {
		session, ok := h.Session(c)
		if !ok {
			return
		}
		c.String(http.StatusOK, session.Company)
	}

	t.Run("present", func(t *testing.T) {
		r := newTestRouter(testSession())
		r.GET("/test", handler)
		w := doRequest(r, http.MethodGet, "/test", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Acme SA", w.Body.String())
	})

	t.Run("missing", func(t *testing.T) {
		r := newTestRouter(nil)
		r.GET("/test", handler)
		w := doRequest(r, http.MethodGet, "/test", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeUnauthorized, decodeError(t, w).Code)
	})
}

func TestBaseHandler_BindJSON(t *testing.T) {
	type payload struct {
		TaxID string `json:"tax_id" binding:"required,cuit"`
	}
	h := &BaseHandler{}
	r := newTestRouter(nil)
	r.POST("/test", func(c *gin.Context) {
		var p payload
		if !h.BindJSON(c, &p) {
			return
		}
		h.Created(c, p)
	})

	w := doRequest(r, http.MethodPost, "/test", map[string]string{"tax_id": "20-12345678-3"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	info := decodeError(t, w)
	assert.Equal(t, dto.ErrCodeValidation, info.Code)
	require.Len(t, info.Details, 1)
	assert.Equal(t, "tax_id", info.Details[0].Field)

	w = doRequest(r, http.MethodPost, "/test", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidJSON, decodeError(t, w).Code)

	w = doRequest(r, http.MethodPost, "/test", map[string]string{"tax_id": "20-12345678-6"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/bff/internal/domain/fiscal"
	"github.com/erp/bff/internal/interfaces/http/dto"
)

func fiscalRouter() *gin.Engine {
	h := NewFiscalHandler("fce")
	r := newTestRouter(testSession())
	r.GET("/fiscal/voucher-types", h.VoucherTypes)
	r.GET("/fiscal/cuit/:cuit", h.CheckCUIT)
	r.POST("/fiscal/letter", h.Letter)
	r.GET("/fiscal/names/:name", h.ParseName)
	return r
}

func TestFiscalHandler_VoucherTypes(t *testing.T) {
	r := fiscalRouter()

	t.Run("all", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/fiscal/voucher-types", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got VoucherTypesResponse
		decodeData(t, w, &got)
		assert.Len(t, got.VoucherTypes, len(fiscal.VoucherTypes()))
		assert.NotEmpty(t, got.Aliquots)
	})

	t.Run("by letter", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/fiscal/voucher-types?letter=c", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got VoucherTypesResponse
		decodeData(t, w, &got)
		require.Len(t, got.VoucherTypes, 6)
		for _, vt := range got.VoucherTypes {
			assert.Equal(t, fiscal.LetterC, vt.Letter)
		}
	})

	t.Run("unknown letter", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/fiscal/voucher-types?letter=Z", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		info := decodeError(t, w)
		assert.Equal(t, dto.ErrCodeValidation, info.Code)
		require.Len(t, info.Details, 1)
		assert.Equal(t, "letter", info.Details[0].Field)
	})
}

func TestFiscalHandler_CheckCUIT(t *testing.T) {
	r := fiscalRouter()

	tests := []struct {
		name      string
		cuit      string
		valid     bool
		formatted string
	}{
		{"valid plain", "20123456786", true, "20-12345678-6"},
		{"valid formatted", "20-12345678-6", true, "20-12345678-6"},
		{"bad check digit", "20123456787", false, ""},
		{"too short", "2012", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodGet, "/fiscal/cuit/"+tt.cuit, nil)
			require.Equal(t, http.StatusOK, w.Code)
			var got CUITResponse
			decodeData(t, w, &got)
			assert.Equal(t, tt.valid, got.Valid)
			assert.Equal(t, tt.formatted, got.Formatted)
			if !tt.valid {
				assert.NotEmpty(t, got.Reason)
			}
		})
	}
}

func TestFiscalHandler_Letter(t *testing.T) {
	r := fiscalRouter()

	tests := []struct {
		name     string
		req      LetterRequest
		status   int
		expected fiscal.Letter
	}{
		{"RI to RI", LetterRequest{Issuer: "RI", Receiver: "RI"}, http.StatusOK, fiscal.LetterA},
		{"RI to consumidor final by name", LetterRequest{Issuer: "Responsable Inscripto", Receiver: "consumidor final"}, http.StatusOK, fiscal.LetterB},
		{"monotributo to RI", LetterRequest{Issuer: "MT", Receiver: "RI"}, http.StatusOK, fiscal.LetterC},
		{"RI to foreign", LetterRequest{Issuer: "RI", Receiver: "EXT"}, http.StatusOK, fiscal.LetterE},
		{"consumidor final cannot issue", LetterRequest{Issuer: "CF", Receiver: "RI"}, http.StatusBadRequest, ""},
		{"unknown receiver", LetterRequest{Issuer: "RI", Receiver: "martian"}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/fiscal/letter", tt.req)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusOK {
				assert.Equal(t, dto.ErrCodeInvalidInput, decodeError(t, w).Code)
				return
			}
			var got LetterResponse
			decodeData(t, w, &got)
			assert.Equal(t, tt.expected, got.Letter)
		})
	}

	t.Run("missing receiver", func(t *testing.T) {
		w := doRequest(r, http.MethodPost, "/fiscal/letter", map[string]string{"issuer": "RI"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, decodeError(t, w).Code)
	})
}

func TestFiscalHandler_ParseName(t *testing.T) {
	r := fiscalRouter()

	t.Run("electronic invoice", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/fiscal/names/FE-FAC-A-00003-00000042", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got VoucherNameResponse
		decodeData(t, w, &got)
		assert.Equal(t, "FE", got.Prefix)
		assert.Equal(t, fiscal.KindInvoice, got.Kind)
		assert.Equal(t, 3, got.PointOfSale)
		assert.Equal(t, 42, got.Number)
		assert.Equal(t, "00003-00000042", got.Formatted)
		assert.Equal(t, 1, got.VoucherTypeCode)
	})

	t.Run("fce credit note amendment", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/fiscal/names/fce-nc-b-00001-00000007-1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got VoucherNameResponse
		decodeData(t, w, &got)
		assert.Equal(t, 208, got.VoucherTypeCode)
		assert.Equal(t, 1, got.Amendment)
	})

	t.Run("not an AFIP name", func(t *testing.T) {
		w := doRequest(r, http.MethodGet, "/fiscal/names/SINV-2026-00001", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidInput, decodeError(t, w).Code)
	})
}

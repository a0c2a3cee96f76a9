package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/erp/bff/internal/domain/fiscal"
	"github.com/erp/bff/internal/domain/shared"
)

// FiscalHandler exposes the AFIP rules the SPA needs to build forms.
// It answers from the embedded catalog and never calls ERPNext.
type FiscalHandler struct {
	BaseHandler
	fcePrefix string
}

// NewFiscalHandler creates a new fiscal handler. fcePrefix is the naming
// prefix of FCE MiPyME vouchers.
func NewFiscalHandler(fcePrefix string) *FiscalHandler {
	return &FiscalHandler{fcePrefix: strings.ToUpper(fcePrefix)}
}

// VoucherTypes godoc
// @Summary      AFIP voucher types and IVA aliquots
// @Tags         fiscal
// @Produce      json
// @Param        letter query string false "Only voucher types of this letter"
// @Success      200 {object} dto.Response{data=VoucherTypesResponse}
// @Security     BearerAuth
// @Router       /fiscal/voucher-types [get]
func (h *FiscalHandler) VoucherTypes(c *gin.Context) {
	var q VoucherTypesQuery
	if !h.BindQuery(c, &q) {
		return
	}

	types := fiscal.VoucherTypes()
	if q.Letter != "" {
		letter := fiscal.Letter(strings.ToUpper(q.Letter))
		filtered := types[:0:0]
		for _, vt := range types {
			if vt.Letter == letter {
				filtered = append(filtered, vt)
			}
		}
		types = filtered
	}
	h.Success(c, VoucherTypesResponse{
		VoucherTypes: types,
		Aliquots:     fiscal.Aliquots(),
	})
}

// CheckCUIT validates a CUIT. An invalid CUIT is a normal answer, not an error.
func (h *FiscalHandler) CheckCUIT(c *gin.Context) {
	input := c.Param("cuit")
	resp := CUITResponse{Input: input}
	if err := fiscal.ValidateCUIT(input); err != nil {
		resp.Reason = err.Error()
		h.Success(c, resp)
		return
	}
	resp.Valid = true
	resp.CUIT = fiscal.NormalizeCUIT(input)
	resp.Formatted = fiscal.FormatCUIT(input)
	h.Success(c, resp)
}

// Letter godoc
// @Summary      Voucher letter for an issuer and a receiver
// @Tags         fiscal
// @Accept       json
// @Produce      json
// @Param        request body LetterRequest true "IVA conditions"
// @Success      200 {object} dto.Response{data=LetterResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /fiscal/letter [post]
func (h *FiscalHandler) Letter(c *gin.Context) {
	var req LetterRequest
	if !h.BindJSON(c, &req) {
		return
	}

	issuer, err := fiscal.ParseIVACondition(req.Issuer)
	if err != nil {
		h.HandleError(c, shared.Wrap(shared.ErrInvalidInput, "Unknown issuer IVA condition "+req.Issuer, err))
		return
	}
	receiver, err := fiscal.ParseIVACondition(req.Receiver)
	if err != nil {
		h.HandleError(c, shared.Wrap(shared.ErrInvalidInput, "Unknown receiver IVA condition "+req.Receiver, err))
		return
	}
	letter, err := fiscal.DetermineLetter(issuer, receiver)
	if err != nil {
		h.HandleError(c, shared.Wrap(shared.ErrInvalidInput, err.Error(), err))
		return
	}
	h.Success(c, LetterResponse{Issuer: issuer, Receiver: receiver, Letter: letter})
}

// ParseName decodes an AFIP document name such as FE-FAC-A-00003-00000042
func (h *FiscalHandler) ParseName(c *gin.Context) {
	name := c.Param("name")
	v, err := fiscal.ParseDocumentName(name)
	if err != nil {
		h.HandleError(c, shared.Wrap(shared.ErrInvalidInput, name+" is not an AFIP voucher name", err))
		return
	}

	resp := VoucherNameResponse{
		VoucherName: v,
		Formatted:   fiscal.FormatVoucherNumber(v.PointOfSale, v.Number),
	}
	if vt, ok := fiscal.LookupVoucherType(v.Kind, v.Letter, v.Prefix == h.fcePrefix); ok {
		resp.VoucherTypeCode = vt.Code
	}
	h.Success(c, resp)
}

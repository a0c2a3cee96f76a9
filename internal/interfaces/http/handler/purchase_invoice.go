package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/erp/bff/internal/application/invoicing"
	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/infrastructure/erpnext"
)

// PurchaseInvoiceService is the purchase side of invoicing
type PurchaseInvoiceService interface {
	RegisterPurchaseInvoice(ctx context.Context, session *identity.Session, req invoicing.PurchaseInvoiceRequest) (erpnext.Document, error)
	PreviewWithholding(ctx context.Context, session *identity.Session, supplier string, amount decimal.Decimal, date string) (*invoicing.WithholdingPreview, error)
}

// PurchaseInvoiceHandler registers supplier vouchers and previews withholdings
type PurchaseInvoiceHandler struct {
	BaseHandler
	purchases PurchaseInvoiceService
}

// NewPurchaseInvoiceHandler creates a new purchase invoice handler
func NewPurchaseInvoiceHandler(purchases PurchaseInvoiceService) *PurchaseInvoiceHandler {
	return &PurchaseInvoiceHandler{purchases: purchases}
}

// Register godoc
// @Summary      Register a supplier voucher
// @Description  The same supplier voucher cannot be registered twice in a company.
// @Tags         purchase-invoices
// @Accept       json
// @Produce      json
// @Param        request body RegisterPurchaseInvoiceRequest true "Supplier voucher"
// @Success      201 {object} dto.Response{data=erpnext.Document}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /purchase-invoices [post]
func (h *PurchaseInvoiceHandler) Register(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	var req RegisterPurchaseInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.purchases.RegisterPurchaseInvoice(c.Request.Context(), session, req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// PreviewWithholding computes the withholding of a planned supplier payment
func (h *PurchaseInvoiceHandler) PreviewWithholding(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	var req WithholdingPreviewRequest
	if !h.BindJSON(c, &req) {
		return
	}

	preview, err := h.purchases.PreviewWithholding(c.Request.Context(), session, req.Supplier, req.Amount, req.Date)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, preview)
}

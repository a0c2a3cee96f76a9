package handler

import (
	"context"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/erp/bff/internal/application/invoicing"
	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/interfaces/http/dto"
)

// SalesInvoiceService is the sales side of invoicing
type SalesInvoiceService interface {
	CreateSalesInvoice(ctx context.Context, session *identity.Session, req invoicing.SalesInvoiceRequest) (*invoicing.SalesInvoice, error)
	SubmitSalesInvoice(ctx context.Context, session *identity.Session, name string) (*invoicing.SalesInvoice, error)
	CancelSalesInvoice(ctx context.Context, session *identity.Session, name string) (*invoicing.SalesInvoice, error)
	GetSalesInvoice(ctx context.Context, session *identity.Session, name string) (*invoicing.SalesInvoice, error)
	ListSalesInvoices(ctx context.Context, session *identity.Session, from, to string, page, pageSize int) (*invoicing.SalesInvoicePage, error)
	ArchivePDF(ctx context.Context, session *identity.Session, name string) (*invoicing.ArchivedPDF, error)
	SalesVATBook(ctx context.Context, session *identity.Session, from, to string) (*invoicing.VATBook, error)
	ExportSalesVATBook(ctx context.Context, session *identity.Session, from, to string, w io.Writer) error
}

// SalesInvoiceHandler serves /sales-invoices
type SalesInvoiceHandler struct {
	BaseHandler
	invoices SalesInvoiceService
}

// NewSalesInvoiceHandler creates a new sales invoice handler
func NewSalesInvoiceHandler(invoices SalesInvoiceService) *SalesInvoiceHandler {
	return &SalesInvoiceHandler{invoices: invoices}
}

// List godoc
// @Summary      List sales vouchers of the active company
// @Tags         sales-invoices
// @Produce      json
// @Param        from      query string false "First posting date (YYYY-MM-DD)"
// @Param        to        query string false "Last posting date (YYYY-MM-DD)"
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]invoicing.SalesInvoiceRow,meta=dto.Meta}
// @Security     BearerAuth
// @Router       /sales-invoices [get]
func (h *SalesInvoiceHandler) List(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	var req ListSalesInvoicesRequest
	if !h.BindQuery(c, &req) {
		return
	}

	page, err := h.invoices.ListSalesInvoices(c.Request.Context(), session, req.From, req.To, req.Page, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, int64(page.Total), page.Page, page.PageSize)
}

// Create godoc
// @Summary      Create a sales voucher draft
// @Description  The letter, naming series and taxes are derived from the company and customer IVA conditions.
// @Tags         sales-invoices
// @Accept       json
// @Produce      json
// @Param        request body CreateSalesInvoiceRequest true "Voucher"
// @Success      201 {object} dto.Response{data=invoicing.SalesInvoice}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /sales-invoices [post]
func (h *SalesInvoiceHandler) Create(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	var req CreateSalesInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	invoice, err := h.invoices.CreateSalesInvoice(c.Request.Context(), session, req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, invoice)
}

// Get returns a sales voucher with its AFIP identity
func (h *SalesInvoiceHandler) Get(c *gin.Context) {
	h.byName(c, h.invoices.GetSalesInvoice)
}

// Submit submits a draft voucher
func (h *SalesInvoiceHandler) Submit(c *gin.Context) {
	h.byName(c, h.invoices.SubmitSalesInvoice)
}

// Cancel cancels a submitted voucher
func (h *SalesInvoiceHandler) Cancel(c *gin.Context) {
	h.byName(c, h.invoices.CancelSalesInvoice)
}

func (h *SalesInvoiceHandler) byName(c *gin.Context, fn func(context.Context, *identity.Session, string) (*invoicing.SalesInvoice, error)) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	invoice, err := fn(c.Request.Context(), session, c.Param("name"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Archive stores the printed PDF of a submitted voucher and returns a download link
func (h *SalesInvoiceHandler) Archive(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	pdf, err := h.invoices.ArchivePDF(c.Request.Context(), session, c.Param("name"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, pdf)
}

// VATBook godoc
// @Summary      Sales VAT book of a period
// @Tags         sales-invoices
// @Produce      json
// @Param        from query string true "First posting date (YYYY-MM-DD)"
// @Param        to   query string true "Last posting date (YYYY-MM-DD)"
// @Success      200 {object} dto.Response{data=invoicing.VATBook}
// @Security     BearerAuth
// @Router       /sales-invoices/vat-book [get]
func (h *SalesInvoiceHandler) VATBook(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	var req dto.PeriodRequest
	if !h.BindQuery(c, &req) {
		return
	}

	book, err := h.invoices.SalesVATBook(c.Request.Context(), session, req.From, req.To)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, book)
}

// ExportVATBook downloads the sales VAT book as xlsx
func (h *SalesInvoiceHandler) ExportVATBook(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	var req dto.PeriodRequest
	if !h.BindQuery(c, &req) {
		return
	}

	filename := fmt.Sprintf("libro-iva-ventas_%s_%s.xlsx", req.From, req.To)
	h.XLSX(c, filename, func(w io.Writer) error {
		return h.invoices.ExportSalesVATBook(c.Request.Context(), session, req.From, req.To, w)
	})
}

package handler

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	appinventory "github.com/erp/bff/internal/application/inventory"
	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/stock"
)

// InventoryService reads stock by location and applies physical counts
type InventoryService interface {
	ListWarehouses(ctx context.Context, session *identity.Session) (*appinventory.WarehouseList, error)
	StockByLocation(ctx context.Context, session *identity.Session, itemCode string) (*appinventory.StockReport, error)
	PreviewReconciliation(ctx context.Context, session *identity.Session, counts []stock.Count, postingDate string) (*appinventory.ReconciliationPlan, error)
	ApplyReconciliation(ctx context.Context, session *identity.Session, req appinventory.ReconciliationRequest) (*appinventory.ReconciliationResult, error)
	ExportReconciliation(ctx context.Context, session *identity.Session, counts []stock.Count, postingDate string, w io.Writer) error
	ImportCounts(ctx context.Context, session *identity.Session, r io.Reader, postingDate string) (*appinventory.CountImport, error)
}

// InventoryHandler serves /inventory
type InventoryHandler struct {
	BaseHandler
	inventory InventoryService
	now       func() time.Time
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventory InventoryService) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, now: time.Now}
}

// Warehouses lists the company warehouses grouped by location
func (h *InventoryHandler) Warehouses(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	list, err := h.inventory.ListWarehouses(c.Request.Context(), session)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, list)
}

// Stock godoc
// @Summary      Stock by location
// @Tags         inventory
// @Produce      json
// @Param        item_code query string false "Only this item"
// @Success      200 {object} dto.Response{data=appinventory.StockReport}
// @Security     BearerAuth
// @Router       /inventory/stock [get]
func (h *InventoryHandler) Stock(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	var q StockQuery
	if !h.BindQuery(c, &q) {
		return
	}
	report, err := h.inventory.StockByLocation(c.Request.Context(), session, q.ItemCode)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// PreviewReconciliation shows the allocations a count would produce without writing
func (h *InventoryHandler) PreviewReconciliation(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	var req ReconciliationPreviewRequest
	if !h.BindJSON(c, &req) {
		return
	}
	plan, err := h.inventory.PreviewReconciliation(c.Request.Context(), session, req.StockCounts(), req.PostingDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}

// ApplyReconciliation godoc
// @Summary      Apply a physical count
// @Description  Creates one Stock Reconciliation per location that changes.
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        request body ApplyReconciliationRequest true "Counts"
// @Success      201 {object} dto.Response{data=appinventory.ReconciliationResult}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /inventory/reconciliations [post]
func (h *InventoryHandler) ApplyReconciliation(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	var req ApplyReconciliationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.inventory.ApplyReconciliation(c.Request.Context(), session, appinventory.ReconciliationRequest{
		Counts:      req.StockCounts(),
		PostingDate: req.PostingDate,
		Submit:      req.Submit,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ImportReconciliation reads an uploaded CSV count sheet and previews it.
// Row errors come back in the result with status 200.
func (h *InventoryHandler) ImportReconciliation(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	var form ImportCountsForm
	if !h.BindForm(c, &form) {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "A CSV file is required in the file field")
		return
	}
	file, err := header.Open()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer file.Close()

	result, err := h.inventory.ImportCounts(c.Request.Context(), session, file, form.PostingDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ExportReconciliation downloads the reconciliation plan as xlsx
func (h *InventoryHandler) ExportReconciliation(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	var req ReconciliationPreviewRequest
	if !h.BindJSON(c, &req) {
		return
	}

	date := req.PostingDate
	if date == "" {
		date = h.now().Format(time.DateOnly)
	}
	filename := fmt.Sprintf("conteo-stock_%s.xlsx", date)
	h.XLSX(c, filename, func(w io.Writer) error {
		return h.inventory.ExportReconciliation(c.Request.Context(), session, req.StockCounts(), req.PostingDate, w)
	})
}

package handler

import (
	"github.com/shopspring/decimal"

	"github.com/erp/bff/internal/domain/stock"
)

// StockQuery narrows the stock report to one item
type StockQuery struct {
	ItemCode string `form:"item_code" binding:"max=140"`
}

// CountRequest is one counted item at a location
type CountRequest struct {
	Location string          `json:"location" binding:"required"`
	ItemCode string          `json:"item_code" binding:"required"`
	Qty      decimal.Decimal `json:"qty"`
}

// ReconciliationPreviewRequest is a physical count to compare with the books
type ReconciliationPreviewRequest struct {
	Counts      []CountRequest `json:"counts" binding:"required,min=1,max=5000,dive"`
	PostingDate string         `json:"posting_date" binding:"omitempty,afip_date"`
}

// ApplyReconciliationRequest is a physical count to write to ERPNext
type ApplyReconciliationRequest struct {
	ReconciliationPreviewRequest
	Submit bool `json:"submit"`
}

// ImportCountsForm is the multipart form of a count sheet upload. The sheet
// itself travels in the "file" part.
type ImportCountsForm struct {
	PostingDate string `form:"posting_date" binding:"omitempty,afip_date"`
}

// StockCounts converts the count rows
func (r ReconciliationPreviewRequest) StockCounts() []stock.Count {
	out := make([]stock.Count, len(r.Counts))
	for i, c := range r.Counts {
		out[i] = stock.Count{Location: c.Location, ItemCode: c.ItemCode, Qty: c.Qty}
	}
	return out
}

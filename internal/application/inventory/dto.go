package inventory

import (
	"github.com/erp/bff/internal/domain/stock"
)

// Warehouse is an ERPNext warehouse with its decoded code
type Warehouse struct {
	Name     string              `json:"name"`
	Label    string              `json:"label"`
	Code     stock.WarehouseCode `json:"code"`
	Physical bool                `json:"physical"`
}

// Location groups the warehouses sharing a physical base
type Location struct {
	Location   string      `json:"location"`
	Warehouses []Warehouse `json:"warehouses"`
}

// WarehouseList is the company warehouses by location. Warehouses whose
// names do not follow the convention are listed under Issues.
type WarehouseList struct {
	Locations []Location             `json:"locations"`
	Issues    []stock.WarehouseIssue `json:"issues"`
}

// StockReport is the stock of the company by location
type StockReport struct {
	ItemCode  string                 `json:"item_code,omitempty"`
	Locations []stock.LocationStock  `json:"locations"`
	Issues    []stock.WarehouseIssue `json:"issues"`
}

// ReconciliationRequest applies a physical count
type ReconciliationRequest struct {
	Counts      []stock.Count `json:"counts"`
	PostingDate string        `json:"posting_date,omitempty"`
	Submit      bool          `json:"submit"`
}

// ReconciliationPlan is what applying a count would change
type ReconciliationPlan struct {
	PostingDate string                      `json:"posting_date"`
	Groups      []stock.ReconciliationGroup `json:"groups"`
	Documents   []stock.StockReconciliation `json:"documents"`
	Issues      []stock.WarehouseIssue      `json:"issues"`
}

// ReconciliationResult lists the Stock Reconciliation documents created
type ReconciliationResult struct {
	Plan      *ReconciliationPlan `json:"plan"`
	Created   []string            `json:"created"`
	Submitted bool                `json:"submitted"`
}

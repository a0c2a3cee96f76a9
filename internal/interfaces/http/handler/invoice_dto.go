package handler

import (
	"github.com/shopspring/decimal"

	"github.com/erp/bff/internal/application/invoicing"
	"github.com/erp/bff/internal/domain/fiscal"
)

// InvoiceItemRequest is one voucher line
type InvoiceItemRequest struct {
	ItemCode    string          `json:"item_code" binding:"required"`
	Description string          `json:"description" binding:"max=500"`
	Qty         decimal.Decimal `json:"qty"`
	Rate        decimal.Decimal `json:"rate"`
	IVARate     decimal.Decimal `json:"iva_rate"`
}

// PerceptionRequest is a perception the seller adds on top of the voucher
type PerceptionRequest struct {
	Kind         string          `json:"kind" binding:"required"`
	Jurisdiction string          `json:"jurisdiction"`
	Rate         decimal.Decimal `json:"rate"`
}

// CreateSalesInvoiceRequest creates a sales voucher draft
type CreateSalesInvoiceRequest struct {
	Customer      string               `json:"customer" binding:"required"`
	PostingDate   string               `json:"posting_date" binding:"omitempty,afip_date"`
	DueDate       string               `json:"due_date" binding:"omitempty,afip_date"`
	Kind          string               `json:"kind" binding:"omitempty,oneof=FAC ND NC"`
	PointOfSale   int                  `json:"point_of_sale" binding:"omitempty,min=1,max=99999"`
	Electronic    bool                 `json:"electronic"`
	FCE           bool                 `json:"fce"`
	ReturnAgainst string               `json:"return_against"`
	Items         []InvoiceItemRequest `json:"items" binding:"required,min=1,max=500,dive"`
	Perceptions   []PerceptionRequest  `json:"perceptions" binding:"omitempty,max=20,dive"`
}

func invoiceItems(items []InvoiceItemRequest) []invoicing.InvoiceItem {
	out := make([]invoicing.InvoiceItem, len(items))
	for i, it := range items {
		out[i] = invoicing.InvoiceItem{
			ItemCode:    it.ItemCode,
			Description: it.Description,
			Qty:         it.Qty,
			Rate:        it.Rate,
			IVARate:     it.IVARate,
		}
	}
	return out
}

// ToInput converts the request to the invoicing input
func (r CreateSalesInvoiceRequest) ToInput() invoicing.SalesInvoiceRequest {
	in := invoicing.SalesInvoiceRequest{
		Customer:      r.Customer,
		PostingDate:   r.PostingDate,
		DueDate:       r.DueDate,
		Kind:          fiscal.VoucherKind(r.Kind),
		PointOfSale:   r.PointOfSale,
		Electronic:    r.Electronic,
		FCE:           r.FCE,
		ReturnAgainst: r.ReturnAgainst,
		Items:         invoiceItems(r.Items),
	}
	for _, p := range r.Perceptions {
		in.Perceptions = append(in.Perceptions, fiscal.Perception{
			Kind:         fiscal.TaxKind(p.Kind),
			Jurisdiction: p.Jurisdiction,
			Rate:         p.Rate,
		})
	}
	return in
}

// ListSalesInvoicesRequest pages sales vouchers, optionally within a period
type ListSalesInvoicesRequest struct {
	From     string `form:"from" binding:"omitempty,afip_date"`
	To       string `form:"to" binding:"omitempty,afip_date"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// RegisterPurchaseInvoiceRequest registers a supplier voucher
type RegisterPurchaseInvoiceRequest struct {
	Supplier        string                      `json:"supplier" binding:"required"`
	VoucherTypeCode int                         `json:"voucher_type_code" binding:"required,min=1"`
	PointOfSale     int                         `json:"point_of_sale" binding:"required,min=1,max=99999"`
	Number          int                         `json:"number" binding:"required,min=1,max=99999999"`
	PostingDate     string                      `json:"posting_date" binding:"omitempty,afip_date"`
	BillDate        string                      `json:"bill_date" binding:"omitempty,afip_date"`
	DueDate         string                      `json:"due_date" binding:"omitempty,afip_date"`
	Items           []InvoiceItemRequest        `json:"items" binding:"required,min=1,max=500,dive"`
	Taxes           []invoicing.PurchaseTax     `json:"taxes" binding:"omitempty,max=10"`
	Perceptions     []PurchasePerceptionRequest `json:"perceptions" binding:"omitempty,max=20,dive"`
}

// PurchasePerceptionRequest is a perception charged by the supplier
type PurchasePerceptionRequest struct {
	Kind         string          `json:"kind" binding:"required"`
	Jurisdiction string          `json:"jurisdiction"`
	Amount       decimal.Decimal `json:"amount"`
}

// ToInput converts the request to the invoicing input
func (r RegisterPurchaseInvoiceRequest) ToInput() invoicing.PurchaseInvoiceRequest {
	in := invoicing.PurchaseInvoiceRequest{
		Supplier:        r.Supplier,
		VoucherTypeCode: r.VoucherTypeCode,
		PointOfSale:     r.PointOfSale,
		Number:          r.Number,
		PostingDate:     r.PostingDate,
		BillDate:        r.BillDate,
		DueDate:         r.DueDate,
		Items:           invoiceItems(r.Items),
		Taxes:           r.Taxes,
	}
	for _, p := range r.Perceptions {
		in.Perceptions = append(in.Perceptions, invoicing.PurchasePerception{
			Kind:         fiscal.TaxKind(p.Kind),
			Jurisdiction: p.Jurisdiction,
			Amount:       p.Amount,
		})
	}
	return in
}

// WithholdingPreviewRequest asks for the withholding of a planned payment
type WithholdingPreviewRequest struct {
	Supplier string          `json:"supplier" binding:"required"`
	Amount   decimal.Decimal `json:"amount"`
	Date     string          `json:"date" binding:"omitempty,afip_date"`
}

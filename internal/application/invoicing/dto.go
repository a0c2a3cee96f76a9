package invoicing

import (
	"github.com/shopspring/decimal"

	"github.com/erp/bff/internal/domain/fiscal"
	"github.com/erp/bff/internal/infrastructure/erpnext"
)

// InvoiceItem is one voucher line. For letter B sales Rate is the final
// price with IVA included.
type InvoiceItem struct {
	ItemCode    string          `json:"item_code"`
	Description string          `json:"description,omitempty"`
	Qty         decimal.Decimal `json:"qty"`
	Rate        decimal.Decimal `json:"rate"`
	IVARate     decimal.Decimal `json:"iva_rate"`
}

// SalesInvoiceRequest creates a sales voucher draft
type SalesInvoiceRequest struct {
	Customer      string              `json:"customer"`
	PostingDate   string              `json:"posting_date,omitempty"`
	DueDate       string              `json:"due_date,omitempty"`
	Kind          fiscal.VoucherKind  `json:"kind,omitempty"`
	PointOfSale   int                 `json:"point_of_sale,omitempty"`
	Electronic    bool                `json:"electronic"`
	FCE           bool                `json:"fce,omitempty"`
	ReturnAgainst string              `json:"return_against,omitempty"`
	Items         []InvoiceItem       `json:"items"`
	Perceptions   []fiscal.Perception `json:"perceptions,omitempty"`
}

// AFIPInfo is the fiscal identity of a voucher
type AFIPInfo struct {
	VoucherType fiscal.VoucherType `json:"voucher_type"`
	Letter      fiscal.Letter      `json:"letter"`
	PointOfSale int                `json:"point_of_sale"`
	Number      int                `json:"number"`
	Formatted   string             `json:"formatted"`
}

// SalesInvoice is a sales voucher with its AFIP identity
type SalesInvoice struct {
	Document erpnext.Document   `json:"document"`
	AFIP     *AFIPInfo          `json:"afip"`
	Taxes    *fiscal.TaxSummary `json:"taxes,omitempty"`
}

// SalesInvoiceRow is a list entry
type SalesInvoiceRow struct {
	Name         string          `json:"name"`
	Customer     string          `json:"customer"`
	CustomerName string          `json:"customer_name"`
	PostingDate  string          `json:"posting_date"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
	Status       string          `json:"status"`
	DocStatus    int             `json:"docstatus"`
	IsReturn     bool            `json:"is_return"`
	AFIP         *AFIPInfo       `json:"afip"`
}

// SalesInvoicePage is one page of sales vouchers
type SalesInvoicePage struct {
	Items    []SalesInvoiceRow `json:"items"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// PurchaseTax is the IVA of one aliquot as printed on a supplier voucher
type PurchaseTax struct {
	IVARate decimal.Decimal `json:"iva_rate"`
	Amount  decimal.Decimal `json:"amount"`
}

// PurchasePerception is a perception charged by the supplier
type PurchasePerception struct {
	Kind         fiscal.TaxKind  `json:"kind"`
	Jurisdiction string          `json:"jurisdiction,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
}

// PurchaseInvoiceRequest registers a supplier voucher
type PurchaseInvoiceRequest struct {
	Supplier        string               `json:"supplier"`
	VoucherTypeCode int                  `json:"voucher_type_code"`
	PointOfSale     int                  `json:"point_of_sale"`
	Number          int                  `json:"number"`
	PostingDate     string               `json:"posting_date,omitempty"`
	BillDate        string               `json:"bill_date,omitempty"`
	DueDate         string               `json:"due_date,omitempty"`
	Items           []InvoiceItem        `json:"items"`
	Taxes           []PurchaseTax        `json:"taxes,omitempty"`
	Perceptions     []PurchasePerception `json:"perceptions,omitempty"`
}

// VATBookRow is one voucher in the sales VAT book. Credit notes are negative.
type VATBookRow struct {
	Date        string          `json:"date"`
	Name        string          `json:"name"`
	VoucherCode int             `json:"voucher_code"`
	PointOfSale int             `json:"point_of_sale"`
	Number      int             `json:"number"`
	Customer    string          `json:"customer"`
	CUIT        string          `json:"cuit"`
	Net         decimal.Decimal `json:"net"`
	IVA         decimal.Decimal `json:"iva"`
	Perceptions decimal.Decimal `json:"perceptions"`
	Exempt      decimal.Decimal `json:"exempt"`
	Total       decimal.Decimal `json:"total"`
}

// VATBook is the sales VAT book of a period
type VATBook struct {
	Company string       `json:"company"`
	From    string       `json:"from"`
	To      string       `json:"to"`
	Rows    []VATBookRow `json:"rows"`
	Totals  VATBookRow   `json:"totals"`
}

// ArchivedPDF is a stored voucher PDF
type ArchivedPDF struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}

// WithholdingPreview is the withholding a payment would carry
type WithholdingPreview struct {
	Supplier    string                 `json:"supplier"`
	Date        string                 `json:"date"`
	Rule        fiscal.WithholdingRule `json:"rule"`
	Withholding fiscal.Withholding     `json:"withholding"`
}

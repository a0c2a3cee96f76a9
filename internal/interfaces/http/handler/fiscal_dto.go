package handler

import "github.com/erp/bff/internal/domain/fiscal"

// VoucherTypesResponse is the AFIP catalog used by the invoice forms
type VoucherTypesResponse struct {
	VoucherTypes []fiscal.VoucherType `json:"voucher_types"`
	Aliquots     []fiscal.Aliquot     `json:"aliquots"`
}

// VoucherTypesQuery filters the voucher type catalog
type VoucherTypesQuery struct {
	Letter string `form:"letter" binding:"omitempty,voucher_letter"`
}

// CUITResponse is the result of a CUIT check
type CUITResponse struct {
	Input     string `json:"input"`
	CUIT      string `json:"cuit,omitempty"`
	Formatted string `json:"formatted,omitempty"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
}

// LetterRequest holds the two parties of a voucher
type LetterRequest struct {
	Issuer   string `json:"issuer" binding:"required"`
	Receiver string `json:"receiver" binding:"required"`
}

// LetterResponse is the letter a voucher between two parties must carry
type LetterResponse struct {
	Issuer   fiscal.IVACondition `json:"issuer"`
	Receiver fiscal.IVACondition `json:"receiver"`
	Letter   fiscal.Letter       `json:"letter"`
}

// VoucherNameResponse is a decoded AFIP document name
type VoucherNameResponse struct {
	fiscal.VoucherName
	Formatted       string `json:"formatted"`
	VoucherTypeCode int    `json:"voucher_type_code,omitempty"`
}

package inventory

import (
	"context"
	"io"

	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/stock"
	"github.com/erp/bff/internal/infrastructure/export"
)

// ExportReconciliation writes the reconciliation plan of counts as an xlsx
// workbook: one row per warehouse allocation, plus the warehouse issues.
func (s *Service) ExportReconciliation(ctx context.Context, session *identity.Session, counts []stock.Count, postingDate string, w io.Writer) error {
	plan, err := s.PreviewReconciliation(ctx, session, counts, postingDate)
	if err != nil {
		return err
	}

	sheet := export.Sheet{
		Name: "Conteo",
		Columns: []export.Column{
			{Header: "Ubicación", Kind: export.KindText, Width: 24},
			{Header: "Artículo", Kind: export.KindText, Width: 20},
			{Header: "Contado", Kind: export.KindNumber},
			{Header: "Sistema", Kind: export.KindNumber},
			{Header: "Diferencia", Kind: export.KindNumber},
			{Header: "Depósito", Kind: export.KindText, Width: 32},
			{Header: "Rol", Kind: export.KindText},
			{Header: "Actual", Kind: export.KindNumber},
			{Header: "Objetivo", Kind: export.KindNumber},
			{Header: "Faltante", Kind: export.KindNumber},
		},
	}
	for _, g := range plan.Groups {
		for _, l := range g.Lines {
			for _, a := range l.Allocations {
				sheet.Rows = append(sheet.Rows, []any{
					g.Location, l.ItemCode, l.Counted, l.System, l.Difference,
					a.Warehouse, string(a.Role), a.Current, a.Target, l.Shortfall,
				})
			}
		}
	}

	sheets := []export.Sheet{sheet}
	if len(plan.Issues) > 0 {
		issues := export.Sheet{
			Name: "Observaciones",
			Columns: []export.Column{
				{Header: "Depósito", Kind: export.KindText, Width: 32},
				{Header: "Motivo", Kind: export.KindText, Width: 48},
			},
		}
		for _, is := range plan.Issues {
			issues.Rows = append(issues.Rows, []any{is.Warehouse, is.Reason})
		}
		sheets = append(sheets, issues)
	}
	return export.WriteXLSX(w, sheets...)
}

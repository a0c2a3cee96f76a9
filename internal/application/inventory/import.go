package inventory

import (
	"context"
	"errors"
	"io"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/domain/stock"
	"github.com/erp/bff/internal/infrastructure/csvimport"
	"github.com/erp/bff/internal/infrastructure/logger"
	"github.com/erp/bff/internal/infrastructure/telemetry"
)

// Count sheet columns
const (
	ColumnLocation = "location"
	ColumnItemCode = "item_code"
	ColumnQty      = "qty"
)

// MaxCountRows matches the largest count accepted as JSON
const MaxCountRows = 5000

// countAliases are the Spanish headers of count sheets, folded
var countAliases = map[string]string{
	"UBICACION": ColumnLocation,
	"DEPOSITO":  ColumnLocation,
	"LOCATION":  ColumnLocation,
	"ITEM":      ColumnItemCode,
	"ITEM CODE": ColumnItemCode,
	"CODIGO":    ColumnItemCode,
	"ARTICULO":  ColumnItemCode,
	"QTY":       ColumnQty,
	"CANTIDAD":  ColumnQty,
	"CONTADO":   ColumnQty,
}

var countRules = []csvimport.FieldRule{
	csvimport.Field(ColumnLocation).Required().MaxLength(140).Build(),
	csvimport.Field(ColumnItemCode).Required().MaxLength(140).Build(),
	csvimport.Field(ColumnQty).Required().Decimal().Min(decimal.Zero).Build(),
}

// CountImport is a count sheet read from CSV. Plan is only computed when
// every row is valid.
type CountImport struct {
	TotalRows   int                  `json:"total_rows"`
	ValidRows   int                  `json:"valid_rows"`
	Errors      []csvimport.RowError `json:"errors"`
	TotalErrors int                  `json:"total_errors"`
	Truncated   bool                 `json:"truncated,omitempty"`
	Counts      []stock.Count        `json:"counts"`
	Plan        *ReconciliationPlan  `json:"plan,omitempty"`
}

// ImportCounts reads a count sheet (location, item code, quantity) and
// previews its reconciliation. Row problems are reported in the result;
// unreadable files are invalid input.
func (s *Service) ImportCounts(ctx context.Context, session *identity.Session, r io.Reader, postingDate string) (*CountImport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory", "import_counts", telemetry.SpanAttrCompany, session.Company)
	defer span.End()

	processor := csvimport.NewProcessor(
		csvimport.WithMaxRows(MaxCountRows),
		csvimport.WithParserOptions(csvimport.WithAliases(countAliases)),
	)
	res, err := processor.Process(ctx, r, countRules, ColumnLocation, ColumnItemCode)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, telemetry.RecordError(span, err)
		}
		return nil, telemetry.RecordError(span, shared.Wrap(shared.ErrInvalidInput, "count sheet: "+err.Error(), err))
	}

	out := &CountImport{
		TotalRows:   res.TotalRows,
		ValidRows:   res.ValidRows,
		Errors:      res.Errors,
		TotalErrors: res.TotalErrors,
		Truncated:   res.Truncated,
		Counts:      make([]stock.Count, 0, len(res.Rows)),
	}
	for _, row := range res.Rows {
		q, _ := csvimport.ParseDecimal(row.Get(ColumnQty))
		out.Counts = append(out.Counts, stock.Count{
			Location: row.Get(ColumnLocation),
			ItemCode: row.Get(ColumnItemCode),
			Qty:      q,
		})
	}

	telemetry.SetAttributes(span, "rows", res.TotalRows, "errors", res.TotalErrors)
	if !res.IsValid() {
		logger.L(ctx).Info("Count sheet has errors",
			zap.Int("rows", res.TotalRows),
			zap.Int("errors", res.TotalErrors))
		return out, nil
	}

	plan, err := s.plan(ctx, session, out.Counts, postingDate)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	out.Plan = plan
	return out, nil
}

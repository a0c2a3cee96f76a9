// Package export renders tabular reports as xlsx workbooks.
package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the MIME type of the workbooks
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Column kinds
const (
	KindText ColumnKind = iota
	KindNumber
	KindMoney
	KindDate
)

// ColumnKind selects the cell format
type ColumnKind int

// Column is a sheet column
type Column struct {
	Header string
	Kind   ColumnKind
	Width  float64 // 0 picks a width from the kind
}

// Sheet is one worksheet
type Sheet struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// ErrNoSheets is returned when nothing would be written
var ErrNoSheets = errors.New("export: workbook needs at least one sheet")

// WriteXLSX writes sheets as one workbook
func WriteXLSX(w io.Writer, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return ErrNoSheets
	}

	f := excelize.NewFile()
	defer f.Close()

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sh.Name); err != nil {
				return fmt.Errorf("export: rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			return fmt.Errorf("export: new sheet %s: %w", sh.Name, err)
		}
		if err := writeSheet(f, sh, styles); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

type styleSet struct {
	header int
	number int
	money  int
	date   int
}

func newStyles(f *excelize.File) (styleSet, error) {
	var s styleSet
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	}); err != nil {
		return s, err
	}
	// built-in formats: 3 "#,##0", 4 "#,##0.00", 14 short date
	if s.number, err = f.NewStyle(&excelize.Style{NumFmt: 3}); err != nil {
		return s, err
	}
	if s.money, err = f.NewStyle(&excelize.Style{NumFmt: 4}); err != nil {
		return s, err
	}
	if s.date, err = f.NewStyle(&excelize.Style{NumFmt: 14}); err != nil {
		return s, err
	}
	return s, nil
}

func writeSheet(f *excelize.File, sh Sheet, styles styleSet) error {
	header := make([]any, len(sh.Columns))
	for i, c := range sh.Columns {
		header[i] = c.Header
	}
	if err := f.SetSheetRow(sh.Name, "A1", &header); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}
	if len(sh.Columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(sh.Columns), 1)
		if err := f.SetCellStyle(sh.Name, "A1", last, styles.header); err != nil {
			return err
		}
	}

	for r, row := range sh.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = cellValue(v)
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sh.Name, cell, &cells); err != nil {
			return fmt.Errorf("export: row %d: %w", r+2, err)
		}
	}

	for i, c := range sh.Columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := c.Width
		if width == 0 {
			width = defaultWidth(c)
		}
		if err := f.SetColWidth(sh.Name, col, col, width); err != nil {
			return err
		}
		if len(sh.Rows) == 0 {
			continue
		}
		style := 0
		switch c.Kind {
		case KindNumber:
			style = styles.number
		case KindMoney:
			style = styles.money
		case KindDate:
			style = styles.date
		}
		if style != 0 {
			top := fmt.Sprintf("%s2", col)
			bottom := fmt.Sprintf("%s%d", col, len(sh.Rows)+1)
			if err := f.SetCellStyle(sh.Name, top, bottom, style); err != nil {
				return err
			}
		}
	}

	return f.SetPanes(sh.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func defaultWidth(c Column) float64 {
	w := float64(len(c.Header)) + 2
	switch c.Kind {
	case KindMoney, KindDate:
		w = max(w, 14)
	default:
		w = max(w, 10)
	}
	return w
}

// cellValue converts values excelize does not know
func cellValue(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		f, _ := x.Float64()
		return f
	case *decimal.Decimal:
		if x == nil {
			return nil
		}
		f, _ := x.Float64()
		return f
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return x
	default:
		return v
	}
}

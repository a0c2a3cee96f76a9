package inventory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/csvimport"
)

func TestService_ImportCounts(t *testing.T) {
	ctx := context.Background()

	t.Run("valid sheet is planned", func(t *testing.T) {
		f := newFixture(t)
		sheet := "Ubicación;Artículo;Cantidad\n" +
			"deposito - as;SKU-1;12\n" +
			"Local 2 - AS;SKU-2;7,0\n" +
			"Nuevo - AS;SKU-3;5\n"

		res, err := f.svc.ImportCounts(ctx, f.session, strings.NewReader(sheet), "2026-03-20")
		require.NoError(t, err)

		assert.Equal(t, 3, res.TotalRows)
		assert.Empty(t, res.Errors)
		require.Len(t, res.Counts, 3)
		assert.Equal(t, "deposito - as", res.Counts[0].Location)
		qty(t, "7", res.Counts[1].Qty)

		require.NotNil(t, res.Plan)
		assert.Equal(t, "2026-03-20", res.Plan.PostingDate)
		require.Len(t, res.Plan.Groups, 3)
		qty(t, "14", res.Plan.Groups[0].Lines[0].System)
		assert.Empty(t, f.srv.Docs(DoctypeStockReconciliation))
	})

	t.Run("row errors skip the plan", func(t *testing.T) {
		f := newFixture(t)
		sheet := "location,item_code,qty\n" +
			"Depósito - AS,SKU-1,12\n" +
			"Depósito - AS,SKU-2,-3\n" +
			"DEPOSITO - AS,sku-1,1\n"

		res, err := f.svc.ImportCounts(ctx, f.session, strings.NewReader(sheet), "")
		require.NoError(t, err)

		assert.Nil(t, res.Plan)
		assert.Equal(t, 3, res.TotalRows)
		assert.Equal(t, 1, res.ValidRows)
		require.Len(t, res.Errors, 2)
		assert.Equal(t, csvimport.CodeOutOfRange, res.Errors[0].Code)
		assert.Equal(t, 3, res.Errors[0].Row)
		assert.Equal(t, csvimport.CodeDuplicate, res.Errors[1].Code)
		assert.Len(t, res.Counts, 1)
	})

	t.Run("unreadable files are invalid input", func(t *testing.T) {
		f := newFixture(t)
		for name, sheet := range map[string]string{
			"empty":          "",
			"missing column": "location,qty\nDepósito - AS,1\n",
			"header only":    "location,item_code,qty\n",
			"not utf-8":      "ubicaci\xf3n,art\xedculo,cantidad\n",
		} {
			_, err := f.svc.ImportCounts(ctx, f.session, strings.NewReader(sheet), "")
			assert.ErrorIs(t, err, shared.ErrInvalidInput, name)
		}
	})

	t.Run("invalid bytes deep in the file are invalid input", func(t *testing.T) {
		f := newFixture(t)
		sheet := "location,item_code,qty\n" +
			strings.Repeat("Depósito - AS,SKU-1,1\n", 300) +
			"Depósito - AS,CA\xd1O,2\n"

		res, err := f.svc.ImportCounts(ctx, f.session, strings.NewReader(sheet), "")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.Nil(t, res)
	})

	t.Run("bad posting date", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ImportCounts(ctx, f.session, strings.NewReader("location,item_code,qty\nDepósito - AS,SKU-1,1\n"), "20/03/2026")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

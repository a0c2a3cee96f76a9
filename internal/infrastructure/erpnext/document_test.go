package erpnext

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_Getters(t *testing.T) {
	var doc Document
	require.NoError(t, decodeJSON([]byte(`{
		"name": "ACC-SINV-0001",
		"grand_total": 1210.55,
		"docstatus": 1,
		"is_return": 0,
		"disabled": true,
		"custom_punto_de_venta": "3",
		"items": [{"item_code": "A", "qty": 2}, {"item_code": "B", "qty": 1.5}]
	}`), &doc))

	assert.Equal(t, "ACC-SINV-0001", doc.Name())
	assert.True(t, decimal.RequireFromString("1210.55").Equal(doc.Decimal("grand_total")))
	assert.Equal(t, "1210.55", doc.String("grand_total"))
	assert.Equal(t, 1, doc.Int("docstatus"))
	assert.Equal(t, 3, doc.Int("custom_punto_de_venta"))
	assert.False(t, doc.Bool("is_return"))
	assert.True(t, doc.Bool("disabled"))
	assert.Equal(t, "", doc.String("missing"))
	assert.True(t, doc.Decimal("missing").IsZero())

	items := doc.Children("items")
	require.Len(t, items, 2)
	assert.Equal(t, "B", items[1].String("item_code"))
	assert.Equal(t, "1.5", items[1].Decimal("qty").String())
	assert.Nil(t, doc.Children("taxes"))
}

func TestDecodeEnvelope(t *testing.T) {
	var msg json.RawMessage
	require.NoError(t, decodeEnvelope([]byte(`{"message": {"ok": true}}`), "message", &msg))
	assert.JSONEq(t, `{"ok": true}`, string(msg))

	err := decodeEnvelope([]byte(`{"data": []}`), "message", &msg)
	assert.ErrorIs(t, err, ErrInvalidResponse)

	err = decodeEnvelope([]byte(`<html>`), "data", &msg)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

package csvimport

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParser(t *testing.T) {
	t.Run("UTF-8 BOM is stripped", func(t *testing.T) {
		p, err := NewParser(strings.NewReader("\xEF\xBB\xBFlocation,qty\nDEP,1"))
		require.NoError(t, err)
		require.NoError(t, p.ParseHeader())
		assert.Equal(t, []string{"location", "qty"}, p.Columns())
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := NewParser(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrEmptyFile)

		_, err = NewParser(strings.NewReader("\xEF\xBB\xBF \n\n"))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("Latin-1 is rejected", func(t *testing.T) {
		_, err := NewParser(strings.NewReader("ubicaci\xf3n,cantidad\n"))
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})

	t.Run("rune cut by the sniff window is accepted", func(t *testing.T) {
		content := strings.Repeat("a", sniffSize-1) + "ó\n"
		_, err := NewParser(strings.NewReader(content))
		assert.NoError(t, err)
	})
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name string
		head string
		want rune
	}{
		{"comma", "a,b,c\n1,2,3", ','},
		{"semicolon", "a;b;c\n1,5;2;3", ';'},
		{"tab", "a\tb\n1\t2", '\t'},
		{"single column", "a\n1", ','},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sniffDelimiter([]byte(tt.head)))
		})
	}
}

func TestParser_ParseHeader(t *testing.T) {
	aliases := map[string]string{"UBICACION": "location", "CANTIDAD": "qty"}

	t.Run("headers are folded and aliased", func(t *testing.T) {
		p, err := NewParser(strings.NewReader("Ubicación;Código Artículo;CANTIDAD\n"), WithAliases(aliases))
		require.NoError(t, err)
		require.NoError(t, p.ParseHeader())

		assert.Equal(t, []string{"location", "codigo_articulo", "qty"}, p.Columns())
		assert.True(t, p.HasColumn("qty"))
		assert.Equal(t, []string{"item_code"}, p.Missing([]string{"location", "item_code"}))
	})

	t.Run("blank header row", func(t *testing.T) {
		p, err := NewParser(strings.NewReader(",,\n1,2,3"))
		require.NoError(t, err)
		assert.ErrorIs(t, p.ParseHeader(), ErrMissingHeader)
	})

	t.Run("forced delimiter", func(t *testing.T) {
		p, err := NewParser(strings.NewReader("a;b|c\n"), WithDelimiter('|'))
		require.NoError(t, err)
		require.NoError(t, p.ParseHeader())
		assert.Equal(t, []string{"a;b", "c"}, p.Columns())
	})
}

func TestParser_ReadRow(t *testing.T) {
	content := "location,item_code,qty\n" +
		"DEP, A-1 ,3\n" +
		"\"DEP\nNORTE\",B-2\n" +
		"DEP,C-3,4,extra\n"

	p, err := NewParser(strings.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, p.ParseHeader())

	row, err := p.ReadRow()
	require.NoError(t, err)
	assert.Equal(t, 2, row.Line)
	assert.Equal(t, "A-1", row.Get("item_code"))
	assert.Equal(t, "3", row.Get("qty"))

	row, err = p.ReadRow()
	require.NoError(t, err)
	assert.Equal(t, 3, row.Line, "quoted multi-line cell keeps its starting line")
	assert.Equal(t, "DEP\nNORTE", row.Get("location"))
	assert.Equal(t, "", row.Get("qty"), "short rows fill missing cells")

	row, err = p.ReadRow()
	require.NoError(t, err)
	assert.Equal(t, 5, row.Line)
	assert.Len(t, row.Values, 3, "cells without a header are dropped")

	_, err = p.ReadRow()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 3, p.Rows())
}

func TestParser_ReadRow_InvalidEncodingPastSniffWindow(t *testing.T) {
	var b strings.Builder
	b.WriteString("location,item_code,qty\n")
	lines := 1
	for b.Len() <= sniffSize+1000 {
		b.WriteString("DEPOSITO - AC,CANO,2\n")
		lines++
	}
	b.WriteString("DEPOSITO - AC,CA\xd1O,2\n")

	p, err := NewParser(strings.NewReader(b.String()))
	require.NoError(t, err, "the sniff window is valid UTF-8")
	require.NoError(t, p.ParseHeader())

	for {
		_, err = p.ReadRow()
		if err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	assert.Contains(t, err.Error(), "line")
	assert.Equal(t, lines+1, p.Line())
}

func TestRow_IsEmpty(t *testing.T) {
	assert.True(t, (&Row{Values: map[string]string{"a": "", "b": ""}}).IsEmpty())
	assert.False(t, (&Row{Values: map[string]string{"a": "", "b": "x"}}).IsEmpty())
}

package csvimport

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"12", "12", false},
		{"12.5", "12.5", false},
		{"12,5", "12.5", false},
		{"1.234,50", "1234.5", false},
		{"1,234.50", "1234.5", false},
		{"1.234.567,8", "1234567.8", false},
		{" 3 ", "3", false},
		{"-2,25", "-2.25", false},
		{"1,2,3", "", true},
		{"abc", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDecimal(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestFieldRuleBuilder(t *testing.T) {
	rule := Field("qty").Required().Decimal().Min(decimal.Zero).Max(decimal.NewFromInt(1000)).Build()

	assert.Equal(t, "qty", rule.Column)
	assert.True(t, rule.Required)
	assert.Equal(t, TypeDecimal, rule.Type)
	require.NotNil(t, rule.MinValue)
	assert.True(t, rule.MinValue.IsZero())
	require.NotNil(t, rule.MaxValue)
	assert.Equal(t, "1000", rule.MaxValue.String())

	rules := []FieldRule{rule, Field("note").MaxLength(10).Build()}
	assert.Equal(t, []string{"qty", "note"}, Columns(rules))
	assert.Equal(t, []string{"qty"}, RequiredColumns(rules))
}

func TestValidator_ValidateRow(t *testing.T) {
	rules := []FieldRule{
		Field("location").Required().MaxLength(5).Build(),
		Field("qty").Required().Decimal().Min(decimal.Zero).Build(),
	}
	row := func(line int, location, qty string) *Row {
		return &Row{Line: line, Values: map[string]string{"location": location, "qty": qty}}
	}

	tests := []struct {
		name   string
		row    *Row
		code   string
		column string
	}{
		{"valid", row(2, "DEP", "1,5"), "", ""},
		{"missing location", row(2, "", "1"), CodeRequired, "location"},
		{"too long", row(2, "DEPOSITO", "1"), CodeTooLong, "location"},
		{"not a number", row(2, "DEP", "uno"), CodeInvalidValue, "qty"},
		{"negative", row(2, "DEP", "-1"), CodeOutOfRange, "qty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(rules, 10)
			ok := v.ValidateRow(tt.row)
			if tt.code == "" {
				assert.True(t, ok)
				assert.False(t, v.Errors().HasErrors())
				return
			}
			assert.False(t, ok)
			errs := v.Errors().Errors()
			require.Len(t, errs, 1)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.column, errs[0].Column)
			assert.Equal(t, 2, errs[0].Row)
		})
	}

	t.Run("errors follow rule order", func(t *testing.T) {
		v := NewValidator(rules, 10)
		assert.False(t, v.ValidateRow(row(7, "", "x")))
		errs := v.Errors().Errors()
		require.Len(t, errs, 2)
		assert.Equal(t, "location", errs[0].Column)
		assert.Equal(t, "qty", errs[1].Column)
	})

	t.Run("unique key is folded", func(t *testing.T) {
		v := NewValidator(rules, 10, "location")
		assert.True(t, v.ValidateRow(row(2, "Dep", "1")))
		assert.False(t, v.ValidateRow(row(3, " DEP ", "2")))

		errs := v.Errors().Errors()
		require.Len(t, errs, 1)
		assert.Equal(t, CodeDuplicate, errs[0].Code)
		assert.Equal(t, 3, errs[0].Row)
		assert.Contains(t, errs[0].Message, "row 2")
	})
}

func TestErrorCollection(t *testing.T) {
	c := NewErrorCollection(2)
	assert.Empty(t, c.Errors())
	assert.False(t, c.HasErrors())

	for i := 1; i <= 3; i++ {
		c.Add(RowError{Row: i, Code: CodeRequired, Message: "x"})
	}
	assert.Len(t, c.Errors(), 2)
	assert.Equal(t, 3, c.Total())
	assert.True(t, c.Truncated())

	assert.Equal(t, "row 4, column qty: bad", RowError{Row: 4, Column: "qty", Message: "bad"}.Error())
	assert.Equal(t, "row 4: bad", RowError{Row: 4, Message: "bad"}.Error())
	assert.Equal(t, "missing columns: a, b", (&MissingColumnsError{Columns: []string{"a", "b"}}).Error())
}

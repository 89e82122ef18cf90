package dataset

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	now := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{[]byte("abc"), "abc"},
		{int32(7), int64(7)},
		{uint8(1), int64(1)},
		{uint64(1 << 63), "9223372036854775808"},
		{float32(1.5), 1.5},
		{now, now},
		{90 * time.Second, 90 * time.Second},
		{"x", "x"},
		{true, true},
		{big.NewRat(5, 2), 2.5},
		{big.NewRat(-1234567, 1000), -1234.567},
		{(*big.Rat)(nil), nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in))
	}
}

func TestInferColumn(t *testing.T) {
	tests := []struct {
		name  string
		cells []string
		want  []any
	}{
		{"integers", []string{"42", " 7 ", ""}, []any{int64(42), int64(7), nil}},
		{"integers and floats", []string{"1", "4.25"}, []any{1.0, 4.25}},
		{"mixed sku keeps text", []string{"00123", "AB12", "1e5"}, []any{"00123", "AB12", "1e5"}},
		{"infinity is text", []string{"1.5", "Infinity"}, []any{"1.5", "Infinity"}},
		{"nan is text", []string{"NaN"}, []any{"NaN"}},
		{"blank", []string{"  ", ""}, []any{nil, nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferColumn(tt.cells))
		})
	}
}

func TestParseDecimal(t *testing.T) {
	assert.Equal(t, 12.5, ParseDecimal("12.50"))
	assert.Equal(t, "n/a", ParseDecimal("n/a"))
	assert.Equal(t, int64(3), ParseDecimal(int64(3)))
}

func TestFromRecordsKeepsKeyOrder(t *testing.T) {
	tbl := FromRecords([]string{"b", "a"}, []map[string]any{
		{"a": 1, "b": 2},
		{"b": 3},
	})
	assert.Equal(t, []string{"b", "a"}, tbl.ColumnNames())
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []any{3, nil}, tbl.Rows[1])
}

func TestAppendChecksWidth(t *testing.T) {
	tbl := New("a", "b")
	assert.Error(t, tbl.Append([]any{1}))
	assert.NoError(t, tbl.Append([]any{1, 2}))
	assert.Len(t, tbl.Rows, 1)
}

// Package dataset holds the in-memory result set passed from extraction to
// loading.
package dataset

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Type is the logical column type a target table is created with.
type Type int

const (
	TypeUnknown Type = iota
	TypeVarChar
	TypeText
	TypeInteger
	TypeBigInt
	TypeDouble
	TypeBoolean
	TypeTimestamp
)

func (t Type) String() string {
	switch t {
	case TypeVarChar:
		return "varchar"
	case TypeText:
		return "text"
	case TypeInteger:
		return "integer"
	case TypeBigInt:
		return "bigint"
	case TypeDouble:
		return "double"
	case TypeBoolean:
		return "boolean"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Column describes one result column. Size applies to TypeVarChar.
type Column struct {
	Name string
	Type Type
	Size int
}

// Table is an ordered set of columns and rows; each row has one value per column.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// New returns an empty table with untyped columns.
func New(names ...string) *Table {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n}
	}
	return &Table{Columns: cols}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Append adds a row. It fails if the row width does not match the columns.
func (t *Table) Append(row []any) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Normalize converts raw driver values to the small set of Go types the rest
// of the pipeline understands: nil, string, int64, float64, bool, time.Time
// and time.Duration.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > 1<<63-1 {
			return strconv.FormatUint(x, 10)
		}
		return int64(x)
	case float32:
		return float64(x)
	case time.Time, time.Duration:
		return v
	case *big.Rat:
		if x == nil {
			return nil
		}
		f, _ := x.Float64()
		return f
	case fmt.Stringer:
		return x.String()
	default:
		return v
	}
}

// ParseDecimal turns a textual decimal into float64 when it parses;
// otherwise the value is returned unchanged.
func ParseDecimal(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	return v
}

// InferColumn types one column of a delimited export as a whole. The column
// is int64 when every non-empty cell is an integer, float64 when every one is
// a finite number, and otherwise keeps each cell exactly as read. Blank cells
// are nil.
func InferColumn(cells []string) []any {
	ints, floats := true, true
	for _, c := range cells {
		s := strings.TrimSpace(c)
		if s == "" {
			continue
		}
		if ints {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				ints = false
			}
		}
		if !ints {
			if !finite(s) {
				floats = false
				break
			}
		}
	}

	out := make([]any, len(cells))
	for i, c := range cells {
		s := strings.TrimSpace(c)
		switch {
		case s == "":
			out[i] = nil
		case ints:
			out[i], _ = strconv.ParseInt(s, 10, 64)
		case floats:
			out[i], _ = strconv.ParseFloat(s, 64)
		default:
			out[i] = c
		}
	}
	return out
}

func finite(s string) bool {
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// FromRecords builds a table from JSON-like records. Columns appear in the
// order keys are first seen, given by keys; missing keys become nil.
func FromRecords(keys []string, records []map[string]any) *Table {
	t := New(keys...)
	for _, rec := range records {
		row := make([]any, len(keys))
		for i, k := range keys {
			row[i] = rec[k]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

package schema

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/stanstork/stratum-etl/internal/connector"
	"github.com/stanstork/stratum-etl/internal/dataset"
)

const timestampLayout = "2006-01-02 15:04:05"

// Adapter types the columns of an extracted table for the target.
type Adapter struct {
	varcharThreshold int
}

func NewAdapter(varcharThreshold int) *Adapter {
	if varcharThreshold <= 0 {
		varcharThreshold = 255
	}
	return &Adapter{varcharThreshold: varcharThreshold}
}

type observed struct {
	strings, ints, floats, bools, times, durations, other int
	maxLen                                                 int
	wide                                                   bool
}

func (o observed) kinds() int {
	n := 0
	for _, c := range []int{o.strings, o.ints, o.floats, o.bools, o.times, o.durations, o.other} {
		if c > 0 {
			n++
		}
	}
	return n
}

// Adapt returns a copy of t with every column typed from its values.
// Values that cannot keep their type are converted to text.
func (a *Adapter) Adapt(t *dataset.Table, source connector.Kind) *dataset.Table {
	out := &dataset.Table{
		Columns: make([]dataset.Column, len(t.Columns)),
		Rows:    make([][]any, len(t.Rows)),
	}
	for r, row := range t.Rows {
		out.Rows[r] = append([]any(nil), row...)
	}

	for c, col := range t.Columns {
		obs := observe(t.Rows, c)
		typ := a.decide(obs, source)
		out.Columns[c] = dataset.Column{Name: col.Name, Type: typ}
		if typ == dataset.TypeVarChar {
			out.Columns[c].Size = a.varcharThreshold
		}

		for r := range out.Rows {
			out.Rows[r][c] = convert(out.Rows[r][c], typ)
		}
	}
	return out
}

func observe(rows [][]any, c int) observed {
	var o observed
	for _, row := range rows {
		switch v := row[c].(type) {
		case nil:
		case string:
			o.strings++
			if n := utf8.RuneCountInString(v); n > o.maxLen {
				o.maxLen = n
			}
		case int64:
			o.ints++
			if v > math.MaxInt32 || v < math.MinInt32 {
				o.wide = true
			}
		case float64:
			o.floats++
		case bool:
			o.bools++
		case time.Time:
			o.times++
		case time.Duration:
			o.durations++
		default:
			o.other++
		}
	}
	return o
}

func (a *Adapter) decide(o observed, source connector.Kind) dataset.Type {
	switch {
	case o.kinds() == 0:
		return dataset.TypeText
	case o.kinds() == 1 && o.strings > 0:
		if source == connector.SAPDirect || o.maxLen > a.varcharThreshold {
			return dataset.TypeText
		}
		return dataset.TypeVarChar
	case o.kinds() == 1 && o.ints > 0:
		if o.wide {
			return dataset.TypeBigInt
		}
		return dataset.TypeInteger
	case o.kinds() == 2 && o.ints > 0 && o.floats > 0, o.kinds() == 1 && o.floats > 0:
		return dataset.TypeDouble
	case o.kinds() == 1 && o.bools > 0:
		return dataset.TypeBoolean
	case o.kinds() == 1 && o.times > 0:
		return dataset.TypeTimestamp
	default:
		return dataset.TypeText
	}
}

func convert(v any, typ dataset.Type) any {
	if v == nil {
		return nil
	}
	switch typ {
	case dataset.TypeDouble:
		if i, ok := v.(int64); ok {
			return float64(i)
		}
		return v
	case dataset.TypeText, dataset.TypeVarChar:
		return stringify(v)
	default:
		return v
	}
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.Format(timestampLayout)
	case time.Duration:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

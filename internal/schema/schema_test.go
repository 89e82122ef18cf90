package schema

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stanstork/stratum-etl/internal/connector"
	"github.com/stanstork/stratum-etl/internal/dataset"
	"github.com/stanstork/stratum-etl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ns(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }

var today = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name   string
		job    models.Job
		source connector.Kind
		want   TargetName
	}{
		{
			name: "explicit names",
			job:  models.Job{SrcSchema: ns("app"), SrcTable: "orders", TgtSchema: ns("dw"), TgtTable: "fact_orders"},
			want: TargetName{Schema: "dw", Table: "fact_orders"},
		},
		{
			name: "infer both",
			job:  models.Job{SrcSchema: ns(" app "), SrcTable: " orders ", TgtSchema: ns("infer_src"), TgtTable: "INFER_SRC"},
			want: TargetName{Schema: "app", Table: "orders"},
		},
		{
			name: "date suffix",
			job:  models.Job{SrcTable: "orders", TgtSchema: ns("dw"), TgtTable: "orders", TableSuffix: ns("yyyymmdd")},
			want: TargetName{Schema: "dw", Table: "orders_20240603"},
		},
		{
			name:   "odata service name",
			job:    models.Job{SrcTable: "/sap/opu/odata/sap/ZMM_PROCUREMENT_SRV/mchSet?$format=json", TgtSchema: ns("dw"), TgtTable: "INFER_SRC"},
			source: connector.SAPOData,
			want:   TargetName{Schema: "dw", Table: "zmm_procurement_srv"},
		},
		{
			name:   "odata fallback with suffix",
			job:    models.Job{SrcTable: "ZMM_SRV/mchSet", TgtTable: "INFER_SRC", TableSuffix: ns("YYYYMMDD")},
			source: connector.SAPOData,
			want:   TargetName{Table: "sap_odata_table_20240603"},
		},
		{
			name: "unknown suffix ignored",
			job:  models.Job{SrcTable: "a", TgtTable: "b", TableSuffix: ns("DAILY")},
			want: TargetName{Table: "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveTarget(tt.job, tt.source, today))
		})
	}
}

func TestTargetNameString(t *testing.T) {
	assert.Equal(t, "dw.orders", TargetName{Schema: "dw", Table: "orders"}.String())
	assert.Equal(t, "orders", TargetName{Table: "orders"}.String())
}

func TestAdapt_Types(t *testing.T) {
	long := strings.Repeat("x", 300)
	in := &dataset.Table{
		Columns: []dataset.Column{
			{Name: "short"}, {Name: "long"}, {Name: "small"}, {Name: "big"},
			{Name: "mixed_num"}, {Name: "flag"}, {Name: "when"}, {Name: "elapsed"},
			{Name: "mixed"}, {Name: "empty"},
		},
		Rows: [][]any{
			{"a", long, int64(1), int64(1 << 40), int64(1), true, today, 90 * time.Second, "x", nil},
			{"bb", "y", nil, int64(2), 2.5, false, nil, nil, int64(7), nil},
		},
	}

	out := NewAdapter(255).Adapt(in, connector.MySQL)

	want := []dataset.Type{
		dataset.TypeVarChar, dataset.TypeText, dataset.TypeInteger, dataset.TypeBigInt,
		dataset.TypeDouble, dataset.TypeBoolean, dataset.TypeTimestamp, dataset.TypeText,
		dataset.TypeText, dataset.TypeText,
	}
	for i, typ := range want {
		assert.Equal(t, typ, out.Columns[i].Type, out.Columns[i].Name)
	}
	assert.Equal(t, 255, out.Columns[0].Size)

	require.Len(t, out.Rows, 2)
	assert.Equal(t, 1.0, out.Rows[0][4])
	assert.Equal(t, "1m30s", out.Rows[0][7])
	assert.Equal(t, "7", out.Rows[1][8])
	assert.Nil(t, out.Rows[1][2])

	assert.Equal(t, int64(1), in.Rows[0][4], "input left untouched")
}

func TestAdapt_SAPDirectForcesText(t *testing.T) {
	in := &dataset.Table{
		Columns: []dataset.Column{{Name: "s"}, {Name: "n"}},
		Rows:    [][]any{{"abc", int64(3)}},
	}
	out := NewAdapter(255).Adapt(in, connector.SAPDirect)
	assert.Equal(t, dataset.TypeText, out.Columns[0].Type)
	assert.Equal(t, dataset.TypeInteger, out.Columns[1].Type)
}

func TestAdapt_ThresholdIsConfigurable(t *testing.T) {
	in := &dataset.Table{Columns: []dataset.Column{{Name: "s"}}, Rows: [][]any{{"abcdef"}}}
	assert.Equal(t, dataset.TypeText, NewAdapter(5).Adapt(in, connector.Postgres).Columns[0].Type)
	assert.Equal(t, dataset.TypeVarChar, NewAdapter(6).Adapt(in, connector.Postgres).Columns[0].Type)
}

// Package schema decides where a job's data lands and what column types it
// lands with.
package schema

import (
	"regexp"
	"strings"
	"time"

	"github.com/stanstork/stratum-etl/internal/connector"
	"github.com/stanstork/stratum-etl/internal/models"
)

const fallbackODataTable = "sap_odata_table"

var odataService = regexp.MustCompile(`(?i)/sap/opu/odata/sap/([^/]+)/`)

// TargetName is the resolved target table.
type TargetName struct {
	Schema string
	Table  string
}

func (n TargetName) String() string {
	if n.Schema == "" {
		return n.Table
	}
	return n.Schema + "." + n.Table
}

// ResolveTarget replaces INFER_SRC placeholders with the source names and
// applies the date suffix directive.
func ResolveTarget(job models.Job, source connector.Kind, today time.Time) TargetName {
	name := TargetName{
		Schema: strings.TrimSpace(job.TgtSchema.String),
		Table:  strings.TrimSpace(job.TgtTable),
	}

	if strings.EqualFold(name.Schema, models.InferSource) {
		name.Schema = strings.TrimSpace(job.SrcSchema.String)
	}
	if strings.EqualFold(name.Table, models.InferSource) {
		name.Table = strings.TrimSpace(job.SrcTable)
		if source == connector.SAPOData {
			name.Table = ODataTableName(job.SrcTable)
		}
	}

	if strings.EqualFold(strings.TrimSpace(job.TableSuffix.String), models.DateSuffixDirective) {
		name.Table += "_" + today.Format("20060102")
	}
	return name
}

// ODataTableName derives a table name from the service segment of an OData
// path, lowercased.
func ODataTableName(path string) string {
	if m := odataService.FindStringSubmatch(path); m != nil {
		return strings.ToLower(m[1])
	}
	return fallbackODataTable
}

package extract

import (
	"context"
	"net/http"
	"strings"

	"github.com/stanstork/stratum-etl/internal/connector"
	"github.com/stanstork/stratum-etl/internal/dataset"
	"github.com/stanstork/stratum-etl/internal/etlerr"
	"github.com/stanstork/stratum-etl/internal/models"
	"github.com/tidwall/gjson"
)

const odataRoot = "opu/odata/sap"

// ODataURL joins the service path to the host, adding the standard OData
// root when the path does not already carry it.
func ODataURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	path = strings.TrimSpace(path)
	if strings.Contains(strings.ToLower(path), odataRoot) {
		return base + "/" + strings.TrimLeft(path, "/")
	}
	return base + "/" + odataRoot + "/" + strings.Trim(path, "/")
}

func (e *Extractor) fromOData(ctx context.Context, job models.Job, h *connector.HTTPHandle) (*dataset.Table, error) {
	endpoint := ODataURL(h.BaseURL, job.SrcTable)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.ErrConfig, err, "build OData request")
	}
	req.SetBasicAuth(h.Username, h.Password)
	req.Header.Set("Accept", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.ErrConnection, err, "fetch OData service")
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "OData service"); err != nil {
		return nil, err
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, etlerr.New(etlerr.ErrProtocol, "OData response is not JSON")
	}

	results := gjson.GetBytes(body, "d.results")
	if !results.IsArray() {
		return nil, etlerr.New(etlerr.ErrProtocol, "expected a list of records in d.results, got %s", results.Type)
	}

	table := recordsTable(results, true)
	e.logger.Debug().Int64("job_id", job.ID).Int("rows", table.Len()).Msg("Extracted from OData service")
	return table, nil
}

// recordsTable flattens a JSON array of objects. Columns follow the order
// keys are first seen; with dropMeta, keys starting "__" are skipped.
func recordsTable(arr gjson.Result, dropMeta bool) *dataset.Table {
	var keys []string
	seen := map[string]bool{}
	var records []map[string]any

	arr.ForEach(func(_, rec gjson.Result) bool {
		if !rec.IsObject() {
			return true
		}
		values := map[string]any{}
		rec.ForEach(func(k, v gjson.Result) bool {
			key := k.String()
			if dropMeta && strings.HasPrefix(key, "__") {
				return true
			}
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
			values[key] = jsonValue(v)
			return true
		})
		records = append(records, values)
		return true
	})

	return dataset.FromRecords(keys, records)
}

func jsonValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		if !strings.ContainsAny(v.Raw, ".eE") {
			return v.Int()
		}
		return v.Float()
	case gjson.String:
		return v.String()
	default:
		return v.Raw
	}
}

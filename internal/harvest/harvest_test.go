package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"cmdwh/internal/testutil"
	"cmdwh/internal/warehouse"
	"cmdwh/pkg/errors"
)

var created = time.Date(2024, 11, 3, 10, 0, 0, 0, time.UTC)

func seeded() *testutil.MockCatalog {
	cat := testutil.NewMockCatalog("cmgd", "raw")
	uris := []string{"gs://b/1/*.tsv.gz", "gs://b/2/*.tsv.gz", "gs://b/3/*.tsv.gz", "gs://b/4/*.tsv.gz"}
	cat.AddObject(warehouse.Object{
		Name:     "ext_a",
		Type:     warehouse.TypeExternalTable,
		Created:  created,
		Modified: created,
		Schema:   []warehouse.Field{{Name: "marker_id", Type: "STRING", Mode: "NULLABLE"}},
		NumRows:  warehouse.Int64(0),
		NumBytes: warehouse.Int64(0),
		External: &warehouse.ExternalConfig{
			SourceFormat:    "CSV",
			SourceURIs:      uris,
			Compression:     "GZIP",
			FieldDelimiter:  "\t",
			SkipLeadingRows: 4,
			CSV:             true,
		},
	})
	cat.AddObject(warehouse.Object{
		Name:      "src_a",
		Type:      warehouse.TypeView,
		Created:   created,
		Modified:  created,
		Schema:    []warehouse.Field{{Name: "sample_id", Type: "STRING"}, {Name: "marker_id", Type: "STRING"}},
		ViewQuery: "SELECT 1",
	})
	cat.AddObject(warehouse.Object{
		Name:       "stg_a",
		Type:       warehouse.TypeTable,
		Created:    created,
		Modified:   created,
		Schema:     []warehouse.Field{{Name: "sample_id", Type: "STRING", Description: "derived from path"}},
		NumRows:    warehouse.Int64(1500),
		NumBytes:   warehouse.Int64(3 << 30),
		Clustering: []string{"sample_id"},
		Labels:     map[string]string{"tier": "staging"},
	})
	cat.AddObject(warehouse.Object{Name: "weird", Type: warehouse.TypeTable, NumRows: warehouse.Int64(5), NumBytes: warehouse.Int64(1 << 29)})
	return cat
}

func harvest(t *testing.T, cat warehouse.Catalog) *Report {
	t.Helper()
	h := NewHarvester(cat)
	h.now = func() time.Time { return time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC) }
	report, err := h.Harvest(zerolog.Nop().WithContext(context.Background()))
	require.NoError(t, err)
	return report
}

func encode(t *testing.T, report *Report) string {
	t.Helper()
	data, err := json.Marshal(report)
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(data))
	return string(data)
}

func TestHarvestTopLevel(t *testing.T) {
	out := encode(t, harvest(t, seeded()))

	assert.Equal(t, "2025-02-01T12:00:00.000000", gjson.Get(out, "metadata_generated").String())
	assert.Equal(t, "cmgd", gjson.Get(out, "project_id").String())
	assert.Equal(t, "raw", gjson.Get(out, "dataset_id").String())
	assert.Equal(t, "US", gjson.Get(out, "dataset_location").String())
	assert.True(t, gjson.Get(out, "dataset_created").Exists())
	assert.Len(t, gjson.Get(out, "tables").Map(), 4)
}

func TestHarvestTypeConditionalFields(t *testing.T) {
	out := encode(t, harvest(t, seeded()))

	view := gjson.Get(out, "tables.src_a")
	assert.Equal(t, "VIEW", view.Get("table_type").String())
	assert.Equal(t, gjson.Null, view.Get("num_rows").Type)
	assert.Equal(t, gjson.Null, view.Get("num_bytes").Type)
	assert.Equal(t, gjson.Null, view.Get("size_gb").Type)
	assert.Equal(t, "SELECT 1", view.Get("view_query").String())
	assert.False(t, view.Get("external_config").Exists())
	assert.Equal(t, int64(2), view.Get("num_fields").Int())

	ext := gjson.Get(out, "tables.ext_a")
	assert.Equal(t, "EXTERNAL_TABLE", ext.Get("table_type").String())
	assert.False(t, ext.Get("view_query").Exists())
	assert.Equal(t, int64(3), ext.Get("external_config.source_uris.#").Int())
	assert.Equal(t, int64(4), ext.Get("external_config.num_source_uris").Int())
	assert.Equal(t, "GZIP", ext.Get("external_config.compression").String())
	assert.Equal(t, "\t", ext.Get("external_config.csv_options.field_delimiter").String())
	assert.Equal(t, int64(4), ext.Get("external_config.csv_options.skip_leading_rows").Int())
	assert.Equal(t, "cmgd.raw.ext_a", ext.Get("full_table_id").String())

	tbl := gjson.Get(out, "tables.stg_a")
	assert.Equal(t, int64(1500), tbl.Get("num_rows").Int())
	assert.Equal(t, int64(3<<30), tbl.Get("num_bytes").Int())
	assert.Equal(t, 3.0, tbl.Get("size_gb").Float())
	assert.Equal(t, `["sample_id"]`, tbl.Get("clustering_fields").Raw)
	assert.Equal(t, "derived from path", tbl.Get("schema.0.description").String())
	assert.Equal(t, "staging", tbl.Get("labels.tier").String())
	assert.False(t, tbl.Get("view_query").Exists())

	assert.Equal(t, `[]`, ext.Get("clustering_fields").Raw)
	assert.Equal(t, gjson.Null, ext.Get("schema.0.description").Type)
}

func TestHarvestExternalTableCounters(t *testing.T) {
	cat := testutil.NewMockCatalog("cmgd", "raw")
	cat.AddObject(warehouse.Object{
		Name:     "ext_counted",
		Type:     warehouse.TypeExternalTable,
		NumRows:  warehouse.Int64(1200),
		NumBytes: warehouse.Int64(2 << 30),
		External: &warehouse.ExternalConfig{SourceFormat: "CSV", SourceURIs: []string{"gs://b/*.tsv.gz"}},
	})
	// information_schema reports NULL counts for Snowflake external tables.
	cat.AddObject(warehouse.Object{Name: "ext_unknown", Type: warehouse.TypeExternalTable})

	out := encode(t, harvest(t, cat))

	counted := gjson.Get(out, "tables.ext_counted")
	assert.Equal(t, int64(1200), counted.Get("num_rows").Int())
	assert.Equal(t, int64(2<<30), counted.Get("num_bytes").Int())
	assert.Equal(t, 2.0, counted.Get("size_gb").Float())

	unknown := gjson.Get(out, "tables.ext_unknown")
	assert.Equal(t, gjson.Number, unknown.Get("num_rows").Type)
	assert.Equal(t, gjson.Number, unknown.Get("num_bytes").Type)
	assert.Equal(t, int64(0), unknown.Get("num_bytes").Int())
	assert.Equal(t, 0.0, unknown.Get("size_gb").Float())

	assert.Equal(t, int64(1200), gjson.Get(out, "summary.total_rows").Int())
	assert.Equal(t, 2.0, gjson.Get(out, "summary.total_size_gb").Float())
}

func TestHarvestSummary(t *testing.T) {
	out := encode(t, harvest(t, seeded()))

	summary := gjson.Get(out, "summary")
	assert.Equal(t, int64(4), summary.Get("total_tables").Int())
	assert.Equal(t, int64(2), summary.Get("by_type.TABLE").Int())
	assert.Equal(t, int64(1), summary.Get("by_type.VIEW").Int())
	assert.Equal(t, int64(1), summary.Get("by_type.EXTERNAL_TABLE").Int())
	assert.Equal(t, int64(1505), summary.Get("total_rows").Int())
	assert.Equal(t, 3.5, summary.Get("total_size_gb").Float())

	prefixes := map[string]int64{}
	for k, v := range summary.Get("by_prefix").Map() {
		prefixes[k] = v.Int()
	}
	assert.Equal(t, map[string]int64{"ext_": 1, "src_": 1, "stg_": 1, "w": 1}, prefixes)
}

func TestHarvestObjectFailureBecomesMarker(t *testing.T) {
	cat := seeded()
	cat.GetErrors["stg_a"] = fmt.Errorf("Access Denied: Table cmgd:raw.stg_a")

	report := harvest(t, cat)
	out := encode(t, report)

	marker := gjson.Get(out, "tables.stg_a")
	assert.Len(t, marker.Map(), 2)
	assert.Equal(t, "stg_a", marker.Get("table_id").String())
	assert.Contains(t, marker.Get("error").String(), "Access Denied")

	assert.Equal(t, int64(4), gjson.Get(out, "summary.total_tables").Int())
	assert.Equal(t, int64(5), gjson.Get(out, "summary.total_rows").Int())
	assert.False(t, gjson.Get(out, "summary.by_prefix.stg_").Exists())
	assert.True(t, report.Tables["stg_a"].Failed())
}

func TestHarvestNamespaceMissing(t *testing.T) {
	cat := seeded()
	cat.NamespaceMissing = true

	_, err := NewHarvester(cat).Harvest(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNamespaceMissing))
}

func TestHarvestListFailure(t *testing.T) {
	cat := seeded()
	cat.ListError = fmt.Errorf("backend unavailable")

	_, err := NewHarvester(cat).Harvest(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeListFailed))
}

func TestHarvestSortedNames(t *testing.T) {
	report := harvest(t, seeded())
	assert.Equal(t, []string{"ext_a", "src_a", "stg_a", "weird"}, report.Names())
}

func TestPrefix(t *testing.T) {
	tests := map[string]string{
		"ext_marker_abundance": "ext_",
		"src_a":                "src_",
		"stg_":                 "stg_",
		"weird":                "w",
		"_x":                   "_",
		"":                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Prefix(in), in)
	}
}

func TestSummarizeRoundsSizes(t *testing.T) {
	a, b := 0.004, 0.004
	s := Summarize(map[string]*TableMetadata{
		"stg_a": {TableType: "TABLE", SizeGB: &a},
		"stg_b": {TableType: "TABLE", SizeGB: &b},
	})
	assert.Equal(t, 0.01, s.TotalSizeGB)
	assert.Equal(t, 2, s.ByPrefix["stg_"])
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", DefaultOutputFile)
	require.NoError(t, WriteFile(harvest(t, seeded()), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"metadata_generated\"")
	assert.Equal(t, int64(4), gjson.GetBytes(data, "summary.total_tables").Int())
}

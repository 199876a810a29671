package bigquery

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	bq "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"cmdwh/internal/registry"
	"cmdwh/internal/warehouse"
)

func TestToObjectTable(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	md := &bq.TableMetadata{
		FullID:           "p:d.stg_marker_abundance",
		Type:             bq.RegularTable,
		CreationTime:     created,
		LastModifiedTime: created.Add(time.Hour),
		NumRows:          1200,
		NumBytes:         5 * 1024 * 1024 * 1024,
		Clustering:       &bq.Clustering{Fields: []string{"sample_id"}},
		Schema: bq.Schema{
			{Name: "sample_id", Type: bq.StringFieldType},
			{Name: "abundance", Type: bq.FloatFieldType, Required: true, Description: "relative"},
		},
		Labels: map[string]string{"tier": "staging"},
	}

	obj := toObject("stg_marker_abundance", md)

	assert.Equal(t, "stg_marker_abundance", obj.Name)
	assert.Equal(t, "p:d.stg_marker_abundance", obj.FullID)
	assert.Equal(t, warehouse.TypeTable, obj.Type)
	assert.Equal(t, created, obj.Created)
	require.NotNil(t, obj.NumRows)
	assert.Equal(t, int64(1200), *obj.NumRows)
	require.NotNil(t, obj.NumBytes)
	assert.Equal(t, int64(5*1024*1024*1024), *obj.NumBytes)
	assert.Equal(t, []string{"sample_id"}, obj.Clustering)
	assert.Equal(t, []warehouse.Field{
		{Name: "sample_id", Type: "STRING", Mode: "NULLABLE"},
		{Name: "abundance", Type: "FLOAT", Mode: "REQUIRED", Description: "relative"},
	}, obj.Schema)
	assert.Nil(t, obj.External)
	assert.Equal(t, "staging", obj.Labels["tier"])
}

func TestToObjectViewHasNoCounts(t *testing.T) {
	obj := toObject("src_x", &bq.TableMetadata{Type: bq.ViewTable, ViewQuery: "SELECT 1"})

	assert.Equal(t, warehouse.TypeView, obj.Type)
	assert.Equal(t, "SELECT 1", obj.ViewQuery)
	assert.Nil(t, obj.NumRows)
	assert.Nil(t, obj.NumBytes)
	assert.Empty(t, obj.Clustering)
}

func TestToObjectExternal(t *testing.T) {
	md := &bq.TableMetadata{
		Type:     bq.ExternalTable,
		NumRows:  1200,
		NumBytes: 2 << 30,
		ExternalDataConfig: &bq.ExternalDataConfig{
			SourceFormat: bq.CSV,
			SourceURIs:   []string{"gs://b/r/cMDv4/*/m/x.tsv.gz"},
			Compression:  bq.Gzip,
			Options:      &bq.CSVOptions{FieldDelimiter: "\t", SkipLeadingRows: 4},
		},
	}

	obj := toObject("ext_x", md)

	assert.Equal(t, warehouse.TypeExternalTable, obj.Type)
	require.NotNil(t, obj.External)
	assert.Equal(t, "CSV", obj.External.SourceFormat)
	assert.Equal(t, "GZIP", obj.External.Compression)
	assert.True(t, obj.External.CSV)
	assert.Equal(t, "\t", obj.External.FieldDelimiter)
	assert.Equal(t, int64(4), obj.External.SkipLeadingRows)
	require.NotNil(t, obj.NumRows)
	require.NotNil(t, obj.NumBytes)
	assert.Equal(t, int64(1200), *obj.NumRows)
	assert.Equal(t, int64(2<<30), *obj.NumBytes)
}

func TestToObjectExternalWithoutStats(t *testing.T) {
	obj := toObject("ext_x", &bq.TableMetadata{Type: bq.ExternalTable})

	require.NotNil(t, obj.NumRows)
	require.NotNil(t, obj.NumBytes)
	assert.Equal(t, int64(0), *obj.NumRows)
	assert.Equal(t, int64(0), *obj.NumBytes)
}

func TestSchemaRoundTripFromRegistry(t *testing.T) {
	r, err := registry.New(registry.Default())
	require.NoError(t, err)
	def, _ := r.Get("ext_marker_presence")

	spec := warehouse.NewExternalTableSpec(def, "gs://b")
	schema := toSchema(spec.Schema)

	require.Len(t, schema, 2)
	assert.Equal(t, bq.StringFieldType, schema[0].Type)
	assert.Equal(t, bq.IntegerFieldType, schema[1].Type)
	assert.False(t, schema[1].Required)
	assert.Equal(t, spec.Schema, fromSchema(schema))
}

func TestIsStatus(t *testing.T) {
	conflict := fmt.Errorf("create: %w", &googleapi.Error{Code: http.StatusConflict})

	assert.True(t, isStatus(conflict, http.StatusConflict))
	assert.False(t, isStatus(conflict, http.StatusNotFound))
	assert.False(t, isStatus(fmt.Errorf("plain"), http.StatusConflict))
}

package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmdwh/pkg/errors"
)

func TestDefaultRegistry(t *testing.T) {
	r, err := New(Default())
	require.NoError(t, err)
	require.Equal(t, 5, r.Len())

	names := make([]string, 0, r.Len())
	for _, d := range r.Definitions() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{
		"ext_marker_abundance",
		"ext_marker_presence",
		"ext_marker_rel_ab_w_read_stats",
		"ext_metaphlan_unknown_list",
		"ext_metaphlan_viruses_list",
	}, names)

	d, ok := r.Get("ext_marker_rel_ab_w_read_stats")
	require.True(t, ok)
	assert.Equal(t, 6, d.SkipRows)
	assert.Equal(t, []string{"clade_name", "clade_taxid", "relative_abundance", "coverage", "estimated_reads"}, d.ColumnNames())
	require.NotNil(t, d.Columns[3].NullIf)
	assert.Equal(t, "-", *d.Columns[3].NullIf)

	viruses, ok := r.Get("ext_metaphlan_viruses_list")
	require.True(t, ok)
	assert.Len(t, viruses.Columns, 12)
}

func TestDerivedNames(t *testing.T) {
	d := TableDefinition{Name: "ext_marker_abundance"}
	assert.Equal(t, "marker_abundance", d.Suffix())
	assert.Equal(t, "src_marker_abundance", d.SourceViewName())
	assert.Equal(t, "stg_marker_abundance", d.StagingTableName())
}

func TestGlob(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		bucket string
		want   string
	}{
		{"relative", "*/d/f.tsv.gz", "gs://bucket/results/cMDv4", "gs://bucket/results/cMDv4/*/d/f.tsv.gz"},
		{"relative with slashes", "/*/d/f.tsv.gz", "gs://bucket/", "gs://bucket/*/d/f.tsv.gz"},
		{"absolute", "s3://other/*/d/f.tsv.gz", "gs://bucket", "s3://other/*/d/f.tsv.gz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TableDefinition{Path: tt.path}.Glob(tt.bucket))
		})
	}
}

func TestRegistryIsImmutable(t *testing.T) {
	r, err := New(Default())
	require.NoError(t, err)

	defs := r.Definitions()
	defs[0].Columns[0].Name = "mutated"
	*defs[2].Columns[3].NullIf = "X"

	again, _ := r.Get("ext_marker_abundance")
	assert.Equal(t, "marker_id", again.Columns[0].Name)
	cov, _ := r.Get("ext_marker_rel_ab_w_read_stats")
	assert.Equal(t, "-", *cov.Columns[3].NullIf)
}

func TestValidate(t *testing.T) {
	good := func() TableDefinition {
		return TableDefinition{
			Name:     "ext_x",
			Path:     "*/d/f.tsv.gz",
			SkipRows: 4,
			Columns:  []Column{{Name: "id", Type: String}, {Name: "v", Type: Float}},
		}
	}

	tests := []struct {
		name    string
		defs    func() []TableDefinition
		wantErr string
	}{
		{name: "valid", defs: func() []TableDefinition { return []TableDefinition{good()} }},
		{name: "empty", defs: func() []TableDefinition { return nil }, wantErr: "no table definitions"},
		{
			name:    "missing ext_ prefix",
			defs:    func() []TableDefinition { d := good(); d.Name = "raw_x"; return []TableDefinition{d} },
			wantErr: "startswith",
		},
		{
			name:    "name needs quoting",
			defs:    func() []TableDefinition { d := good(); d.Name = "ext_x y"; return []TableDefinition{d} },
			wantErr: "identifier",
		},
		{
			name:    "no wildcard",
			defs:    func() []TableDefinition { d := good(); d.Path = "a/b.tsv.gz"; return []TableDefinition{d} },
			wantErr: "contains",
		},
		{
			name:    "negative skip",
			defs:    func() []TableDefinition { d := good(); d.SkipRows = -1; return []TableDefinition{d} },
			wantErr: "gte",
		},
		{
			name:    "unknown type",
			defs:    func() []TableDefinition { d := good(); d.Columns[1].Type = "NUMERIC"; return []TableDefinition{d} },
			wantErr: "oneof",
		},
		{
			name:    "duplicate definition",
			defs:    func() []TableDefinition { return []TableDefinition{good(), good()} },
			wantErr: "Duplicate table definition",
		},
		{
			name: "duplicate column",
			defs: func() []TableDefinition {
				d := good()
				d.Columns[1].Name = "id"
				return []TableDefinition{d}
			},
			wantErr: "duplicate column",
		},
		{
			name: "reserved column",
			defs: func() []TableDefinition {
				d := good()
				d.Columns[0].Name = SampleIDColumn
				return []TableDefinition{d}
			},
			wantErr: "reserved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.defs())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, errors.ErrCodeRegistryInvalid, errors.GetErrorCode(err))
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tables:
  - name: ext_x
    path: "*/d/f.tsv.gz"
    skip_rows: 4
    columns:
      - {name: id, type: STRING}
      - {name: coverage, type: STRING, cast: FLOAT, null_if: "-"}
`), 0600))

	r, err := LoadFile(path)
	require.NoError(t, err)

	d, ok := r.Get("ext_x")
	require.True(t, ok)
	assert.Equal(t, 4, d.SkipRows)
	assert.Equal(t, Nullable, d.Columns[0].EffectiveMode())
	assert.Equal(t, Float, d.Columns[1].Cast)
	require.NotNil(t, d.Columns[1].NullIf)
	assert.Equal(t, "-", *d.Columns[1].NullIf)
}

func TestLoadFallsBackToDefault(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, len(Default()), r.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExtractSampleID(t *testing.T) {
	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"gs://cmgd-data/results/cMDv4/00003b3459eb/metaphlan_markers/marker_abundance.tsv.gz", "00003b3459eb", true},
		{"gs://cmgd-data/results/cMDv4/marker_abundance.tsv.gz", "", false},
		{"gs://cmgd-data/results/other/abc/metaphlan_markers/x.tsv.gz", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := ExtractSampleID(tt.path, "cMDv4")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, `/cMDv4/([^/]+)/`, SampleIDPattern("cMDv4"))
	assert.Equal(t, `/a\.b/([^/]+)/`, SampleIDPattern("a.b"))
}

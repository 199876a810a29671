package sqlgen

import (
	"testing"

	"cmdwh/internal/registry"
)

func definition(t *testing.T, name string) registry.TableDefinition {
	t.Helper()
	r, err := registry.New(registry.Default())
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	def, ok := r.Get(name)
	if !ok {
		t.Fatalf("definition %s not found", name)
	}
	return def
}

var (
	bq = BigQuery{Project: "p", Dataset: "d"}
	sf = Snowflake{Database: "DB", Schema: "SC", StageURL: "gs://b/r/cMDv4/"}
)

func TestSourceViewBuilder_Build(t *testing.T) {
	abundance := definition(t, "ext_marker_abundance")

	tests := []struct {
		name    string
		builder QueryBuilder
		want    string
		wantErr bool
	}{
		{
			name:    "bigquery",
			builder: NewSourceView(bq, abundance, "cMDv4"),
			want: "SELECT\n" +
				"  REGEXP_EXTRACT(_FILE_NAME, r'/cMDv4/([^/]+)/') AS sample_id,\n" +
				"  marker_id,\n" +
				"  abundance\n" +
				"FROM `p.d.ext_marker_abundance`",
		},
		{
			name:    "snowflake",
			builder: NewSourceView(sf, abundance, "cMDv4"),
			want: "SELECT\n" +
				"  REGEXP_SUBSTR(('gs://b/r/cMDv4/' || METADATA$FILENAME), '/cMDv4/([^/]+)/', 1, 1, 'e', 1) AS \"sample_id\",\n" +
				"  \"marker_id\",\n" +
				"  \"abundance\"\n" +
				"FROM \"DB\".\"SC\".\"ext_marker_abundance\"",
		},
		{
			name:    "marker with regex metacharacters",
			builder: NewSourceView(sf, abundance, "v4.1"),
			want: "SELECT\n" +
				"  REGEXP_SUBSTR(('gs://b/r/cMDv4/' || METADATA$FILENAME), '/v4\\\\.1/([^/]+)/', 1, 1, 'e', 1) AS \"sample_id\",\n" +
				"  \"marker_id\",\n" +
				"  \"abundance\"\n" +
				"FROM \"DB\".\"SC\".\"ext_marker_abundance\"",
		},
		{
			name:    "error: empty marker",
			builder: NewSourceView(bq, abundance, ""),
			wantErr: true,
		},
		{
			name:    "error: no columns",
			builder: NewSourceView(bq, registry.TableDefinition{Name: "ext_x"}, "cMDv4"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.builder.Build()
			if (err != nil) != tt.wantErr {
				t.Errorf("Build() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("Build() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStagingQueryBuilder_Build(t *testing.T) {
	stats := definition(t, "ext_marker_rel_ab_w_read_stats")
	presence := definition(t, "ext_marker_presence")

	tests := []struct {
		name    string
		builder QueryBuilder
		want    string
		wantErr bool
	}{
		{
			name:    "bigquery casts and sentinel",
			builder: NewStagingQuery(bq, stats),
			want: "SELECT\n" +
				"  sample_id,\n" +
				"  clade_name,\n" +
				"  clade_taxid,\n" +
				"  SAFE_CAST(relative_abundance AS FLOAT64) AS relative_abundance,\n" +
				"  SAFE_CAST(NULLIF(coverage, '-') AS FLOAT64) AS coverage,\n" +
				"  SAFE_CAST(estimated_reads AS INT64) AS estimated_reads\n" +
				"FROM `p.d.src_marker_rel_ab_w_read_stats`\n" +
				"WHERE sample_id IS NOT NULL",
		},
		{
			name:    "snowflake",
			builder: NewStagingQuery(sf, presence),
			want: "SELECT\n" +
				"  \"sample_id\",\n" +
				"  \"marker_id\",\n" +
				"  TRY_CAST(TO_VARCHAR(\"presence\") AS NUMBER(38,0)) AS \"presence\"\n" +
				"FROM \"DB\".\"SC\".\"src_marker_presence\"\n" +
				"WHERE \"sample_id\" IS NOT NULL",
		},
		{
			name:    "error: nil dialect",
			builder: NewStagingQuery(nil, presence),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.builder.Build()
			if (err != nil) != tt.wantErr {
				t.Errorf("Build() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("Build() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStagingColumnExpr(t *testing.T) {
	sentinel := "n/a"
	tests := []struct {
		name string
		col  registry.Column
		want string
	}{
		{"pass through", registry.Column{Name: "x", Type: registry.String}, "x"},
		{"null if without cast", registry.Column{Name: "x", Type: registry.String, NullIf: &sentinel}, "NULLIF(x, 'n/a') AS x"},
		{"cast", registry.Column{Name: "x", Type: registry.String, Cast: registry.Integer}, "SAFE_CAST(x AS INT64) AS x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StagingColumnExpr(bq, tt.col); got != tt.want {
				t.Errorf("StagingColumnExpr() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSampleAndCountQueries(t *testing.T) {
	tests := []struct {
		name    string
		builder QueryBuilder
		want    string
		wantErr bool
	}{
		{
			name:    "sample",
			builder: NewSampleQuery(bq, "ext_marker_abundance", "cMDv4", 3),
			want: "SELECT\n" +
				"  _FILE_NAME AS file_name,\n" +
				"  REGEXP_EXTRACT(_FILE_NAME, r'/cMDv4/([^/]+)/') AS sample_id,\n" +
				"  *\n" +
				"FROM `p.d.ext_marker_abundance`\n" +
				"LIMIT 3",
		},
		{
			name:    "error: sample without limit",
			builder: NewSampleQuery(bq, "ext_marker_abundance", "cMDv4", 0),
			wantErr: true,
		},
		{
			name:    "count bigquery",
			builder: NewCountQuery(bq, "stg_marker_abundance"),
			want:    "SELECT COUNT(*) AS row_count FROM `p.d.stg_marker_abundance`",
		},
		{
			name:    "count snowflake",
			builder: NewCountQuery(sf, "src_marker_abundance"),
			want:    "SELECT COUNT(*) AS \"row_count\" FROM \"DB\".\"SC\".\"src_marker_abundance\"",
		},
		{
			name:    "error: count without table",
			builder: NewCountQuery(sf, ""),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.builder.Build()
			if (err != nil) != tt.wantErr {
				t.Errorf("Build() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("Build() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStringLiteral(t *testing.T) {
	if got := bq.StringLiteral(`it's a\b`); got != `'it\'s a\\b'` {
		t.Errorf("StringLiteral() = %v", got)
	}
	if got := sf.StringLiteral("\t"); got != `'\t'` {
		t.Errorf("StringLiteral() = %v", got)
	}
	if got := bq.RegexpExtract("f", "it's"); got != `REGEXP_EXTRACT(f, 'it\'s')` {
		t.Errorf("RegexpExtract() = %v", got)
	}
	if got := sf.Table(`we"ird`); got != `"DB"."SC"."we""ird"` {
		t.Errorf("Table() = %v", got)
	}
}

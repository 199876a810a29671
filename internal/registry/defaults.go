package registry

// CoverageSentinel is written by MetaPhlAn when coverage is not computed.
const CoverageSentinel = "-"

func col(name string, t ScalarType) Column {
	return Column{Name: name, Type: t, Mode: Nullable}
}

func cast(name string, t, to ScalarType) Column {
	return Column{Name: name, Type: t, Mode: Nullable, Cast: to}
}

// Default returns the five MetaPhlAn output categories, relative to the bucket.
// Column order and skip counts follow the physical files; a mismatch silently
// shifts columns.
func Default() []TableDefinition {
	sentinel := CoverageSentinel
	coverage := cast("coverage", String, Float)
	coverage.NullIf = &sentinel

	return []TableDefinition{
		{
			Name:     "ext_marker_abundance",
			Path:     "*/metaphlan_markers/marker_abundance.tsv.gz",
			SkipRows: 4,
			Columns: []Column{
				col("marker_id", String),
				cast("abundance", Float, Float),
			},
		},
		{
			Name:     "ext_marker_presence",
			Path:     "*/metaphlan_markers/marker_presence.tsv.gz",
			SkipRows: 4,
			Columns: []Column{
				col("marker_id", String),
				cast("presence", Integer, Integer),
			},
		},
		{
			Name:     "ext_marker_rel_ab_w_read_stats",
			Path:     "*/metaphlan_markers/marker_rel_ab_w_read_stats.tsv.gz",
			SkipRows: 6,
			Columns: []Column{
				col("clade_name", String),
				col("clade_taxid", String),
				cast("relative_abundance", String, Float),
				coverage,
				cast("estimated_reads", String, Integer),
			},
		},
		{
			Name:     "ext_metaphlan_unknown_list",
			Path:     "*/metaphlan_lists/metaphlan_unknown_list.tsv.gz",
			SkipRows: 5,
			Columns: []Column{
				col("clade_name", String),
				col("ncbi_tax_id", String),
				cast("relative_abundance", String, Float),
			},
		},
		{
			Name:     "ext_metaphlan_viruses_list",
			Path:     "*/metaphlan_lists/metaphlan_viruses_list.tsv.gz",
			SkipRows: 4,
			Columns: []Column{
				col("mv_group_cluster", String),
				col("genome_name", String),
				cast("length", Integer, Integer),
				cast("breadth_of_coverage", Float, Float),
				cast("mapping_reads_count", Integer, Integer),
				cast("rpkm", Float, Float),
				cast("depth_of_coverage_mean", Float, Float),
				cast("depth_of_coverage_median", Float, Float),
				col("mv_group_type", String),
				col("assigned_taxonomy", String),
				col("first_genome_in_cluster", String),
				col("other_genomes_in_cluster", String),
			},
		},
	}
}

package harvest

import (
	"math"
	"sort"
	"strings"

	"cmdwh/internal/warehouse"
)

// Prefix is the naming bucket of an object: the text before the first
// underscore plus the underscore. Names without an underscore fall into a
// bucket named after their first character.
func Prefix(name string) string {
	if i := strings.Index(name, "_"); i >= 0 {
		return name[:i+1]
	}
	if name == "" {
		return ""
	}
	return name[:1]
}

// Summarize aggregates the tables of a report. Error markers count towards
// total_tables only.
func Summarize(tables map[string]*TableMetadata) Summary {
	s := Summary{
		TotalTables: len(tables),
		ByType:      make(map[string]int),
		ByPrefix:    make(map[string]int),
	}
	for _, name := range sortedKeys(tables) {
		t := tables[name]
		if t.Failed() {
			continue
		}
		s.ByType[t.TableType]++
		s.ByPrefix[Prefix(name)]++
		if t.NumRows != nil {
			s.TotalRows += *t.NumRows
		}
		if t.SizeGB != nil {
			s.TotalSizeGB += *t.SizeGB
		}
	}
	s.TotalSizeGB = round2(s.TotalSizeGB)
	return s
}

func sizeGB(bytes *int64) float64 {
	if bytes == nil {
		return 0
	}
	return round2(float64(*bytes) / (1 << 30))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// hasCounters reports whether the object kind carries row and byte counts.
func hasCounters(t warehouse.ObjectType) bool {
	return t == warehouse.TypeTable || t == warehouse.TypeExternalTable
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

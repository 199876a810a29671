package snowflake

import (
	"regexp"
	"strconv"
	"strings"

	"cmdwh/internal/warehouse"
)

var (
	clusteringKeyRe  = regexp.MustCompile(`(?i)^\s*LINEAR\s*\((.*)\)\s*$`)
	ddlDelimiterRe   = regexp.MustCompile(`(?i)FIELD_DELIMITER\s*=\s*'((?:\\.|[^'\\])*)'`)
	ddlCompressionRe = regexp.MustCompile(`(?i)COMPRESSION\s*=\s*'?([A-Z0-9_]+)'?`)
	ddlSkipHeaderRe  = regexp.MustCompile(`(?i)SKIP_HEADER\s*=\s*(\d+)`)
	ddlTypeRe        = regexp.MustCompile(`(?i)\bTYPE\s*=\s*'?([A-Z]+)'?`)
	ddlLocationRe    = regexp.MustCompile(`(?i)LOCATION\s*=\s*(@\S+)`)
	ddlPatternRe     = regexp.MustCompile(`(?i)PATTERN\s*=\s*'((?:\\.|[^'\\])*)'`)
)

// ParseClusteringKey turns LINEAR("sample_id", x) into its column names.
func ParseClusteringKey(key string) []string {
	m := clusteringKeyRe.FindStringSubmatch(key)
	if m == nil {
		return nil
	}
	var cols []string
	for _, part := range strings.Split(m[1], ",") {
		part = strings.Trim(strings.TrimSpace(part), `"`)
		if part != "" {
			cols = append(cols, part)
		}
	}
	return cols
}

// ParseExternalTableDDL extracts the file format options from GET_DDL output.
// Source URIs are reported as the stage location followed by the pattern.
func ParseExternalTableDDL(ddl string) *warehouse.ExternalConfig {
	ext := &warehouse.ExternalConfig{}

	if m := ddlTypeRe.FindStringSubmatch(ddl); m != nil {
		ext.SourceFormat = strings.ToUpper(m[1])
	}
	if m := ddlCompressionRe.FindStringSubmatch(ddl); m != nil {
		ext.Compression = strings.ToUpper(m[1])
	}
	if m := ddlDelimiterRe.FindStringSubmatch(ddl); m != nil {
		ext.CSV = true
		ext.FieldDelimiter = unescape(m[1])
	}
	if m := ddlSkipHeaderRe.FindStringSubmatch(ddl); m != nil {
		ext.CSV = true
		ext.SkipLeadingRows, _ = strconv.ParseInt(m[1], 10, 64)
	}
	if m := ddlLocationRe.FindStringSubmatch(ddl); m != nil {
		uri := m[1]
		if p := ddlPatternRe.FindStringSubmatch(ddl); p != nil {
			uri += " PATTERN " + unescape(p[1])
		}
		ext.SourceURIs = []string{uri}
	}
	return ext
}

var literalUnescaper = strings.NewReplacer(`\t`, "\t", `\n`, "\n", `\'`, "'", `\\`, `\`)

func unescape(s string) string {
	return literalUnescaper.Replace(s)
}

package bigquery

import (
	bq "cloud.google.com/go/bigquery"

	"cmdwh/internal/warehouse"
)

func toSchema(fields []warehouse.Field) bq.Schema {
	schema := make(bq.Schema, len(fields))
	for i, f := range fields {
		schema[i] = &bq.FieldSchema{
			Name:        f.Name,
			Type:        bq.FieldType(f.Type),
			Required:    f.Mode == "REQUIRED",
			Repeated:    f.Mode == "REPEATED",
			Description: f.Description,
		}
	}
	return schema
}

func fromSchema(schema bq.Schema) []warehouse.Field {
	fields := make([]warehouse.Field, len(schema))
	for i, f := range schema {
		mode := "NULLABLE"
		switch {
		case f.Required:
			mode = "REQUIRED"
		case f.Repeated:
			mode = "REPEATED"
		}
		fields[i] = warehouse.Field{
			Name:        f.Name,
			Type:        string(f.Type),
			Mode:        mode,
			Description: f.Description,
		}
	}
	return fields
}

// toObject converts table metadata. Row and byte counts are reported for native
// and external tables and left nil for views.
func toObject(name string, md *bq.TableMetadata) *warehouse.Object {
	obj := &warehouse.Object{
		Name:      name,
		FullID:    md.FullID,
		Type:      warehouse.NormalizeObjectType(string(md.Type)),
		Created:   md.CreationTime,
		Modified:  md.LastModifiedTime,
		Schema:    fromSchema(md.Schema),
		ViewQuery: md.ViewQuery,
		Labels:    md.Labels,
	}

	if obj.Type == warehouse.TypeTable || obj.Type == warehouse.TypeExternalTable {
		obj.NumRows = warehouse.Int64(int64(md.NumRows))
		obj.NumBytes = warehouse.Int64(md.NumBytes)
	}
	if md.Clustering != nil && len(md.Clustering.Fields) > 0 {
		obj.Clustering = append([]string(nil), md.Clustering.Fields...)
	}

	if edc := md.ExternalDataConfig; edc != nil {
		ext := &warehouse.ExternalConfig{
			SourceFormat: string(edc.SourceFormat),
			SourceURIs:   append([]string(nil), edc.SourceURIs...),
			Compression:  string(edc.Compression),
		}
		if csv, ok := edc.Options.(*bq.CSVOptions); ok && csv != nil {
			ext.CSV = true
			ext.FieldDelimiter = csv.FieldDelimiter
			ext.SkipLeadingRows = csv.SkipLeadingRows
		}
		obj.External = ext
	}
	return obj
}

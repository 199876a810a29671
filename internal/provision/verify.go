package provision

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"cmdwh/internal/registry"
	"cmdwh/internal/sqlgen"
	"cmdwh/internal/warehouse"
	"cmdwh/pkg/errors"
)

// VerifyCounts reads the row count of every tier of def. Source and external
// counts match; the staging count is lower by the rows without a sample id.
func VerifyCounts(ctx context.Context, catalog warehouse.Catalog, def registry.TableDefinition) []Count {
	logger := zerolog.Ctx(ctx)
	ns := catalog.Namespace()

	tables := []string{def.Name, def.SourceViewName(), def.StagingTableName()}
	counts := make([]Count, 0, len(tables))
	for _, table := range tables {
		c := Count{Table: table}
		n, err := countRows(ctx, catalog, table)
		if err != nil {
			c.Err = objectError(errors.ErrCodeVerificationFailed, ns.Qualified(table), err)
			logger.Warn().Err(err).Str("table", ns.Qualified(table)).Msg("Row count failed")
		} else {
			c.Rows = n
			logger.Info().Str("table", ns.Qualified(table)).Int64("rows", n).Msg("Row count")
		}
		counts = append(counts, c)
	}
	return counts
}

func countRows(ctx context.Context, catalog warehouse.Catalog, table string) (int64, error) {
	query, err := sqlgen.NewCountQuery(catalog.Dialect(), table).Build()
	if err != nil {
		return 0, err
	}
	rows, err := catalog.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("count query returned no rows")
	}
	v, _ := rows[0].Value(sqlgen.CountColumn)
	return toInt64(v)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case nil:
		return 0, fmt.Errorf("count is NULL")
	default:
		return strconv.ParseInt(fmt.Sprint(n), 10, 64)
	}
}

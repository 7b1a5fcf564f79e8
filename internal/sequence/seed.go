package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedFunc returns the highest counter already issued for prefix on day.
type SeedFunc func(ctx context.Context, prefix string, day time.Time) (int64, error)

// LedgerSeed reads the highest stored code per prefix from the document
// tables. tables maps a code prefix to the table holding its codes; unknown
// prefixes seed from zero. Codes whose counter part is not numeric are
// ignored.
func LedgerSeed(pool *pgxpool.Pool, tables map[string]string) SeedFunc {
	return func(ctx context.Context, prefix string, day time.Time) (int64, error) {
		table, ok := tables[prefix]
		if !ok {
			return 0, nil
		}
		query := fmt.Sprintf(`
			SELECT COALESCE(MAX(CASE WHEN split_part(code, '-', 3) ~ '^[0-9]{1,18}$'
				THEN split_part(code, '-', 3)::BIGINT END), 0)
			FROM %s
			WHERE code LIKE $1
		`, pgx.Identifier{table}.Sanitize())
		pattern := fmt.Sprintf("%s-%s-%%", prefix, day.Format("20060102"))
		var last int64
		if err := pool.QueryRow(ctx, query, pattern).Scan(&last); err != nil {
			return 0, err
		}
		return last, nil
	}
}

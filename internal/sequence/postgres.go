package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresGenerator keeps counters in the document_sequences table.
type PostgresGenerator struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresGenerator constructs a generator backed by Postgres.
func NewPostgresGenerator(pool *pgxpool.Pool) *PostgresGenerator {
	return &PostgresGenerator{pool: pool, now: time.Now}
}

// NextCode increments the counter for prefix and today in a single upsert.
func (g *PostgresGenerator) NextCode(ctx context.Context, prefix string) (string, error) {
	prefix, err := normalizePrefix(prefix)
	if err != nil {
		return "", err
	}
	day := g.now().UTC()
	const query = `
		INSERT INTO document_sequences (prefix, day, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, day)
		DO UPDATE SET last_value = document_sequences.last_value + 1
		RETURNING last_value
	`
	var n int64
	if err := g.pool.QueryRow(ctx, query, prefix, day.Truncate(24*time.Hour)).Scan(&n); err != nil {
		return "", fmt.Errorf("sequence: next %s: %w", prefix, err)
	}
	return Format(prefix, day, n), nil
}

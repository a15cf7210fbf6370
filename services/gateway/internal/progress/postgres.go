package progress

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresKV struct {
	pool *pgxpool.Pool
}

func NewPostgresKV(pool *pgxpool.Pool) *PostgresKV {
	return &PostgresKV{pool: pool}
}

// Migrate creates the watch_progress table if it does not exist.
func (p *PostgresKV) Migrate(ctx context.Context) error {
	const q = `CREATE TABLE IF NOT EXISTS watch_progress (
	             key        text PRIMARY KEY,
	             value      jsonb NOT NULL,
	             updated_at timestamptz NOT NULL DEFAULT now()
	           )`
	_, err := p.pool.Exec(ctx, q)
	return err
}

func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := p.pool.QueryRow(ctx, `SELECT value FROM watch_progress WHERE key = $1`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// Set upserts; concurrent writers race and the last one wins.
func (p *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	const q = `INSERT INTO watch_progress (key, value, updated_at)
	           VALUES ($1, $2, now())
	           ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	_, err := p.pool.Exec(ctx, q, key, value)
	return err
}

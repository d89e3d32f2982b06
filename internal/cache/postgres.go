package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/site-audit/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool      db.Pool
	upsertSQL string
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var kvUpsert = db.Upsert{
	Table:   "kv_cache",
	Columns: []string{"key", "value", "updated_at", "expires_at"},
	Key:     []string{"key"},
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	return newPostgresWithPool(pool)
}

func newPostgresWithPool(pool db.Pool) (*PostgresStore, error) {
	upsert, err := kvUpsert.SQL()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build upsert")
	}
	return &PostgresStore{pool: pool, upsertSQL: upsert}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS kv_cache (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_kv_cache_expires_at ON kv_cache(expires_at);
`

// Migrate creates the cache table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_cache WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get %s", key)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, s.upsertSQL, key, value, now, expiry(now, ttl))
	return eris.Wrapf(err, "postgres: set %s", key)
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_cache WHERE key = $1`, key)
	return eris.Wrapf(err, "postgres: delete %s", key)
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM kv_cache WHERE expires_at IS NOT NULL AND expires_at <= now()`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge expired")
	}
	return int(tag.RowsAffected()), nil
}

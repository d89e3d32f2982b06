// Package cache provides the namespaced, TTL'd key-value store behind the
// classification, embedding, breaker and remote-result caches.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/config"
)

// ErrUnsupportedDriver is returned by Open for unknown store drivers.
var ErrUnsupportedDriver = eris.New("cache: unsupported driver")

// Store is a byte-valued key-value store with per-entry TTLs. Get returns
// (nil, nil) on a miss or an expired entry. A zero TTL means no expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Purger is implemented by stores that need explicit expiry sweeps.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Key builds a cache key of the form {domain}:{purpose}:{version}. The
// domain part is lower-cased so hosts differing only in case share entries.
func Key(domain, purpose, version string) string {
	return strings.ToLower(strings.TrimSpace(domain)) + ":" + purpose + ":" + version
}

// Open builds the configured store, applies its schema and pings it. This is
// the only cache failure that callers must treat as fatal.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "memory":
		st = NewMemory()
	case "sqlite":
		var s *SQLiteStore
		s, err = NewSQLite(cfg.DatabaseURL)
		if err == nil {
			st = s
			err = s.Migrate(ctx)
		}
	case "postgres":
		var s *PostgresStore
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
		if err == nil {
			st = s
			err = s.Migrate(ctx)
		}
	case "redis":
		st = NewRedis(cfg.RedisAddr)
	default:
		return nil, eris.Wrapf(ErrUnsupportedDriver, "cache: driver %q", cfg.Driver)
	}
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, eris.Wrapf(err, "cache: open %s", cfg.Driver)
	}
	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrapf(err, "cache: ping %s", cfg.Driver)
	}

	zap.L().Info("cache: store opened", zap.String("driver", cfg.Driver))
	return st, nil
}

// GetJSON reads key and decodes it into dst. It reports whether the key was
// found.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, eris.Wrapf(err, "cache: decode %s", key)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", key)
	}
	return s.Set(ctx, key, raw, ttl)
}

// expiry converts a TTL into an absolute expiry. Zero means none.
func expiry(now time.Time, ttl time.Duration) *time.Time {
	if ttl == 0 {
		return nil
	}
	t := now.Add(ttl).UTC()
	return &t
}

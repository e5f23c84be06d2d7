package cache

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

// SQLite is the persistent Store, used when resolved data should survive a
// restart. Backed by modernc.org/sqlite in WAL mode.
type SQLite struct {
	db   *sql.DB
	ttls map[Category]time.Duration

	hits    atomic.Int64
	misses  atomic.Int64
	expired atomic.Int64

	nowFunc func() time.Time
}

// NewSQLite opens (or creates) the cache database at dsn and configures WAL
// mode. Pass nil ttls to use DefaultTTLs.
func NewSQLite(dsn string, ttls map[Category]time.Duration) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	if ttls == nil {
		ttls = DefaultTTLs()
	}
	return &SQLite{db: db, ttls: ttls, nowFunc: time.Now}, nil
}

const cacheMigration = `
CREATE TABLE IF NOT EXISTS resolution_cache (
	ruc        TEXT NOT NULL,
	category   TEXT NOT NULL,
	value      TEXT NOT NULL,
	cached_at  DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	PRIMARY KEY (ruc, category)
);

CREATE INDEX IF NOT EXISTS idx_resolution_cache_expires_at ON resolution_cache(expires_at);
`

// Migrate creates the cache schema.
func (s *SQLite) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, cacheMigration)
	return eris.Wrap(err, "cache: migrate")
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) ttl(cat Category) time.Duration {
	if d, ok := s.ttls[cat]; ok {
		return d
	}
	return time.Hour
}

func (s *SQLite) Get(ctx context.Context, ruc model.RUC, cat Category) ([]byte, bool, error) {
	var value []byte
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM resolution_cache WHERE ruc = ? AND category = ?`,
		ruc.String(), string(cat),
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: get")
	}
	if s.nowFunc().After(expiresAt) {
		_, _ = s.db.ExecContext(ctx,
			`DELETE FROM resolution_cache WHERE ruc = ? AND category = ?`,
			ruc.String(), string(cat))
		s.expired.Add(1)
		s.misses.Add(1)
		return nil, false, nil
	}
	s.hits.Add(1)
	return value, true, nil
}

func (s *SQLite) Set(ctx context.Context, ruc model.RUC, cat Category, value []byte) error {
	now := s.nowFunc()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resolution_cache (ruc, category, value, cached_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (ruc, category) DO UPDATE SET
		   value = excluded.value, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		ruc.String(), string(cat), value, now, now.Add(s.ttl(cat)),
	)
	return eris.Wrap(err, "cache: set")
}

func (s *SQLite) Invalidate(ctx context.Context, ruc model.RUC) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM resolution_cache WHERE ruc = ?`, ruc.String())
	return eris.Wrap(err, "cache: invalidate")
}

func (s *SQLite) CleanupExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM resolution_cache WHERE expires_at < ?`, s.nowFunc())
	if err != nil {
		return 0, eris.Wrap(err, "cache: cleanup")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "cache: cleanup rows affected")
	}
	s.expired.Add(n)
	return int(n), nil
}

func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var entries int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM resolution_cache`).Scan(&entries); err != nil {
		return Stats{}, eris.Wrap(err, "cache: stats")
	}
	return Stats{
		Entries: entries,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Expired: s.expired.Load(),
	}, nil
}

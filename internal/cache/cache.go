// Package cache stores resolved catalog games in SQLite with a per-entry expiry.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ryanm101/ziyou/internal/catalog"
	"github.com/ryanm101/ziyou/internal/db"
	"github.com/ryanm101/ziyou/internal/metrics"
	"github.com/ryanm101/ziyou/internal/tracing"
)

// DefaultTTL is how long a cached game stays fresh.
const DefaultTTL = 7 * 24 * time.Hour

// ErrStorage marks failures of the underlying database.
var ErrStorage = errors.New("cache storage error")

// Error provides context for cache failures.
type Error struct {
	Op  string // Operation that failed (e.g., "get")
	Key string // Cache key if applicable
	Err error  // Underlying error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache %s '%s': %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func storageError(op, key string, err error) error {
	return &Error{Op: op, Key: key, Err: fmt.Errorf("%w: %v", ErrStorage, err)}
}

// Key derives the cache key for a canonical game name: lower-cased, with
// colons and apostrophes removed and whitespace runs joined by "-".
func Key(nameEN string) string {
	s := strings.ToLower(nameEN)
	s = strings.NewReplacer(":", "", "'", "").Replace(s)
	return strings.Join(strings.Fields(s), "-")
}

// Record is one cached game.
type Record struct {
	Key       string
	CatalogID int64
	Game      catalog.Game
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Stats summarizes the rows currently in the cache.
type Stats struct {
	Total   int64 `json:"total"`
	Live    int64 `json:"live"`
	Expired int64 `json:"expired"`
}

// Store is the SQLite-backed game cache. It is safe for concurrent use.
type Store struct {
	db  *db.DB
	ttl time.Duration
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a cache over an opened database. A non-positive ttl means DefaultTTL.
func New(d *db.DB, ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{db: d, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured entry lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get returns the record for key, or nil if it is absent or expired.
// Expired rows are left in place for SweepExpired.
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	ctx, span := tracing.StartSpan(ctx, "cache.Get",
		tracing.WithAttributes(attribute.String("cache.key", key)),
	)
	defer span.End()

	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT catalog_id, data, created_at, expires_at
		FROM game_cache WHERE cache_key = ? AND expires_at > ?
	`, key, s.now().UnixNano())

	var (
		catalogID          sql.NullInt64
		data               string
		created, expiresAt int64
	)
	if err := row.Scan(&catalogID, &data, &created, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.CacheLookups.WithLabelValues("miss").Inc()
			tracing.AddSpanAttributes(span, attribute.Bool("cache.hit", false))
			return nil, nil
		}
		metrics.CacheLookups.WithLabelValues("error").Inc()
		err = storageError("get", key, err)
		tracing.RecordError(span, err)
		return nil, err
	}

	rec := &Record{
		Key:       key,
		CatalogID: catalogID.Int64,
		CreatedAt: time.Unix(0, created).UTC(),
		ExpiresAt: time.Unix(0, expiresAt).UTC(),
	}
	if err := json.Unmarshal([]byte(data), &rec.Game); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		err = storageError("decode", key, err)
		tracing.RecordError(span, err)
		return nil, err
	}
	rec.Game.CatalogID = rec.CatalogID

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	tracing.AddSpanAttributes(span, attribute.Bool("cache.hit", true))
	return rec, nil
}

// Put stores game under key, replacing any previous row. Creation and expiry
// are reset on every write. The recommendation reason is never persisted.
func (s *Store) Put(ctx context.Context, key string, game catalog.Game) (*Record, error) {
	ctx, span := tracing.StartSpan(ctx, "cache.Put",
		tracing.WithAttributes(attribute.String("cache.key", key)),
	)
	defer span.End()

	game.RecommendReason = ""
	data, err := json.Marshal(game)
	if err != nil {
		metrics.CacheWrites.WithLabelValues("error").Inc()
		err = storageError("encode", key, err)
		tracing.RecordError(span, err)
		return nil, err
	}

	now := s.now().UTC()
	rec := &Record{
		Key:       key,
		CatalogID: game.CatalogID,
		Game:      game,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.upsert(ctx, rec, data); err != nil {
		metrics.CacheWrites.WithLabelValues("error").Inc()
		err = storageError("put", key, err)
		tracing.RecordError(span, err)
		return nil, err
	}

	metrics.CacheWrites.WithLabelValues("ok").Inc()
	return rec, nil
}

func (s *Store) upsert(ctx context.Context, rec *Record, data []byte) error {
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var catalogID any
	if rec.CatalogID != 0 {
		catalogID = rec.CatalogID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO game_cache (cache_key, catalog_id, data, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			catalog_id = excluded.catalog_id,
			data = excluded.data,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, rec.Key, catalogID, string(data), rec.CreatedAt.UnixNano(), rec.ExpiresAt.UnixNano())
	if err != nil {
		return err
	}

	return tx.Commit()
}

// SweepExpired deletes every row whose expiry is at or before now and
// returns how many were removed.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "cache.SweepExpired")
	defer span.End()

	res, err := s.db.Conn().ExecContext(ctx,
		"DELETE FROM game_cache WHERE expires_at <= ?", s.now().UnixNano())
	if err != nil {
		err = storageError("sweep", "", err)
		tracing.RecordError(span, err)
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		err = storageError("sweep", "", err)
		tracing.RecordError(span, err)
		return 0, err
	}

	metrics.CacheSwept.Add(float64(n))
	tracing.AddSpanAttributes(span, attribute.Int64("cache.removed", n))

	// Refresh the entry gauges; a failed count leaves them as they were.
	_, _ = s.Stats(ctx)
	return n, nil
}

// Stats counts live and expired rows and refreshes the cache gauges.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0)
		FROM game_cache
	`, s.now().UnixNano()).Scan(&st.Total, &st.Live)
	if err != nil {
		return Stats{}, storageError("stats", "", err)
	}
	st.Expired = st.Total - st.Live

	metrics.UpdateCacheMetrics(st.Live, st.Expired)
	return st, nil
}

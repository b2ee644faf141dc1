package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanm101/ziyou/internal/catalog"
	"github.com/ryanm101/ziyou/internal/db"
	"github.com/ryanm101/ziyou/internal/metrics"
)

// fakeClock is a settable time source shared between a test and the store.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *fakeClock, *db.DB) {
	t.Helper()
	database, err := db.Open(context.Background(), db.Options{Path: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(database, ttl, WithClock(clock.Now)), clock, database
}

func sampleGame() catalog.Game {
	metacritic := 89
	rating := 4.41
	year := 2016
	return catalog.Game{
		Slug:            "stardew-valley",
		Name:            "星露谷物语",
		NameEN:          "Stardew Valley",
		Cover:           "https://media.rawg.io/stardew.jpg",
		Screenshots:     []string{"s1", "s2"},
		Genres:          []string{"Simulation", "RPG"},
		Platforms:       []string{"PC"},
		Metacritic:      &metacritic,
		Rating:          &rating,
		Description:     "Farm life.",
		RecommendReason: "relaxing farm sim",
		Stores:          []catalog.StoreLink{{Name: "Steam", URL: "https://store.steampowered.com/app/413150"}},
		ReleaseYear:     &year,
		Playtime:        "约 52 小时",
		Tags:            []string{"Farming"},
		Developer:       "ConcernedApe",
		Publisher:       "",
		CatalogID:       10,
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The Witcher 3", "the-witcher-3"},
		{"the witcher 3", "the-witcher-3"},
		{"The Witcher 3:", "the-witcher-3"},
		{"  The   Witcher\t3  ", "the-witcher-3"},
		{"Baldur's Gate 3", "baldurs-gate-3"},
		{"Hades II: Early Access", "hades-ii-early-access"},
		{"Stardew Valley", "stardew-valley"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.in))
		})
	}

	assert.Equal(t, Key("The Witcher 3"), Key("the witcher 3"))
	assert.Equal(t, Key("The Witcher 3"), Key("The Witcher 3:"))
}

func TestStore_RoundTrip(t *testing.T) {
	store, clock, _ := newTestStore(t, time.Hour)
	ctx := context.Background()
	game := sampleGame()

	written, err := store.Put(ctx, "stardew-valley", game)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), written.CreatedAt)
	assert.Equal(t, clock.Now().Add(time.Hour), written.ExpiresAt)

	rec, err := store.Get(ctx, "stardew-valley")
	require.NoError(t, err)
	require.NotNil(t, rec)

	want := game
	want.RecommendReason = ""
	assert.Equal(t, want, rec.Game)
	assert.Equal(t, int64(10), rec.CatalogID)
	assert.True(t, written.CreatedAt.Equal(rec.CreatedAt))
	assert.True(t, written.ExpiresAt.Equal(rec.ExpiresAt))
}

func TestStore_ReasonIsNotPersisted(t *testing.T) {
	store, _, database := newTestStore(t, time.Hour)
	ctx := context.Background()

	_, err := store.Put(ctx, "stardew-valley", sampleGame())
	require.NoError(t, err)

	var data string
	err = database.Conn().QueryRow("SELECT data FROM game_cache WHERE cache_key = 'stardew-valley'").Scan(&data)
	require.NoError(t, err)
	assert.NotContains(t, data, "relaxing farm sim")
	assert.Contains(t, data, `"recommend_reason":""`)
}

func TestStore_GetMissing(t *testing.T) {
	store, _, _ := newTestStore(t, time.Hour)

	rec, err := store.Get(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_TTLBoundary(t *testing.T) {
	const ttl = 10 * time.Second
	store, clock, database := newTestStore(t, ttl)
	ctx := context.Background()
	start := clock.Now()

	_, err := store.Put(ctx, "hades", sampleGame())
	require.NoError(t, err)

	clock.Set(start.Add(ttl - time.Nanosecond))
	rec, err := store.Get(ctx, "hades")
	require.NoError(t, err)
	assert.NotNil(t, rec, "still fresh just before expiry")

	clock.Set(start.Add(ttl))
	rec, err = store.Get(ctx, "hades")
	require.NoError(t, err)
	assert.Nil(t, rec, "expiry instant is not strictly after now")

	clock.Set(start.Add(ttl + time.Nanosecond))
	rec, err = store.Get(ctx, "hades")
	require.NoError(t, err)
	assert.Nil(t, rec, "expired after ttl")

	var count int
	require.NoError(t, database.Conn().QueryRow("SELECT COUNT(*) FROM game_cache").Scan(&count))
	assert.Equal(t, 1, count, "reads never delete expired rows")
}

func TestStore_PutRefreshesExpiry(t *testing.T) {
	store, clock, database := newTestStore(t, time.Minute)
	ctx := context.Background()
	start := clock.Now()

	_, err := store.Put(ctx, "hades", sampleGame())
	require.NoError(t, err)

	clock.Set(start.Add(50 * time.Second))
	updated := sampleGame()
	updated.Cover = "new-cover"
	_, err = store.Put(ctx, "hades", updated)
	require.NoError(t, err)

	clock.Set(start.Add(90 * time.Second))
	rec, err := store.Get(ctx, "hades")
	require.NoError(t, err)
	require.NotNil(t, rec, "second write extended expiry")
	assert.Equal(t, "new-cover", rec.Game.Cover, "last write wins")
	assert.True(t, start.Add(50*time.Second).Equal(rec.CreatedAt))

	var count int
	require.NoError(t, database.Conn().QueryRow("SELECT COUNT(*) FROM game_cache").Scan(&count))
	assert.Equal(t, 1, count, "one row per key")
}

func TestStore_GetDoesNotRefreshExpiry(t *testing.T) {
	store, clock, _ := newTestStore(t, time.Minute)
	ctx := context.Background()
	start := clock.Now()

	_, err := store.Put(ctx, "hades", sampleGame())
	require.NoError(t, err)

	clock.Set(start.Add(30 * time.Second))
	_, err = store.Get(ctx, "hades")
	require.NoError(t, err)

	clock.Set(start.Add(61 * time.Second))
	rec, err := store.Get(ctx, "hades")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_SweepExpired(t *testing.T) {
	store, clock, _ := newTestStore(t, time.Minute)
	ctx := context.Background()
	start := clock.Now()

	// Three rows expiring at start+1m, one at start+2m, one at start+3m.
	for _, k := range []string{"a", "b", "c"} {
		_, err := store.Put(ctx, k, sampleGame())
		require.NoError(t, err)
	}
	clock.Set(start.Add(time.Minute))
	_, err := store.Put(ctx, "d", sampleGame())
	require.NoError(t, err)
	clock.Set(start.Add(2 * time.Minute))
	_, err = store.Put(ctx, "e", sampleGame())
	require.NoError(t, err)

	// At start+2m: a, b, c (expired at 1m) and d (expires exactly at 2m) go.
	metrics.UpdateCacheMetrics(99, 99)
	n, err := store.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheEntries.WithLabelValues("live")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.CacheEntries.WithLabelValues("expired")))

	n, err = store.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "second sweep removes nothing")

	rec, err := store.Get(ctx, "e")
	require.NoError(t, err)
	assert.NotNil(t, rec, "unexpired row untouched")
}

func TestStore_Stats(t *testing.T) {
	store, clock, _ := newTestStore(t, time.Minute)
	ctx := context.Background()
	start := clock.Now()

	_, err := store.Put(ctx, "old", sampleGame())
	require.NoError(t, err)
	clock.Set(start.Add(2 * time.Minute))
	_, err = store.Put(ctx, "new", sampleGame())
	require.NoError(t, err)

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 2, Live: 1, Expired: 1}, st)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store, _, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("game-%d", i%4) // same-key writers race; last write wins
			if _, err := store.Put(ctx, key, sampleGame()); err != nil {
				errs <- err
				return
			}
			if _, err := store.Get(ctx, key); err != nil {
				errs <- err
			}
			if _, err := store.SweepExpired(ctx); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.Live)
}

func TestStore_StorageFailure(t *testing.T) {
	store, _, database := newTestStore(t, time.Hour)
	require.NoError(t, database.Close())

	_, err := store.Get(context.Background(), "hades")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorage))

	var cacheErr *Error
	require.True(t, errors.As(err, &cacheErr))
	assert.Equal(t, "get", cacheErr.Op)
	assert.Equal(t, "hades", cacheErr.Key)

	_, err = store.Put(context.Background(), "hades", sampleGame())
	assert.True(t, errors.Is(err, ErrStorage))

	_, err = store.SweepExpired(context.Background())
	assert.True(t, errors.Is(err, ErrStorage))
}

func TestNew_DefaultTTL(t *testing.T) {
	store := New(nil, 0)
	assert.Equal(t, DefaultTTL, store.TTL())
	assert.Equal(t, 604800*time.Second, DefaultTTL)
}

package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanm101/ziyou/internal/logging"
)

const stardewDetails = `{
	"id": 10,
	"slug": "stardew-valley",
	"name": "Stardew Valley",
	"released": "2016-02-26",
	"background_image": "https://media.rawg.io/stardew.jpg",
	"metacritic": 89,
	"rating": 4.41,
	"description_raw": "Farm life.",
	"playtime": 52,
	"genres": [{"name": "Simulation"}, {"name": "RPG"}],
	"platforms": [{"platform": {"name": "PC"}}, {"platform": null}, {"platform": {"name": "Nintendo Switch"}}],
	"tags": [{"name":"t1"},{"name":"t2"},{"name":"t3"},{"name":"t4"},{"name":"t5"},{"name":"t6"},{"name":"t7"},{"name":"t8"},{"name":"t9"}],
	"developers": [{"name": "ConcernedApe"}, {"name": "Someone Else"}],
	"publishers": []
}`

const stardewScreenshots = `{"results": [
	{"image": "s1"}, {"image": "s2"}, {"image": "s3"}, {"image": "s4"},
	{"image": "s5"}, {"image": "s6"}, {"image": "s7"}
]}`

const stardewStores = `{"results": [
	{"store_id": 1, "url": "https://store.steampowered.com/app/413150"},
	{"store_id": 6, "url": ""},
	{"store_id": 42, "url": "https://example.com/store"},
	{"store_id": null, "url": "https://example.com/orphan"}
]}`

// fakeRAWG serves canned responses keyed by path. Search for any name other
// than "Stardew Valley" returns zero results.
type fakeRAWG struct {
	t        *testing.T
	calls    atomic.Int32
	failPath string
	delay    time.Duration
}

func (f *fakeRAWG) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	assert.Equal(f.t, "test-key", r.URL.Query().Get("key"))

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failPath != "" && r.URL.Path == f.failPath {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/games":
		assert.Equal(f.t, "1", r.URL.Query().Get("page_size"))
		if r.URL.Query().Get("search") == "Stardew Valley" {
			_, _ = w.Write([]byte(`{"results": [{"id": 10, "slug": "stardew-valley", "name": "Stardew Valley"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"results": []}`))
	case "/games/10":
		_, _ = w.Write([]byte(stardewDetails))
	case "/games/10/screenshots":
		assert.Equal(f.t, "6", r.URL.Query().Get("page_size"))
		_, _ = w.Write([]byte(stardewScreenshots))
	case "/games/10/stores":
		_, _ = w.Write([]byte(stardewStores))
	default:
		http.NotFound(w, r)
	}
}

func newTestRAWG(t *testing.T, fake *fakeRAWG, timeout time.Duration) *RAWGResolver {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewRAWGResolver(RAWGConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/",
		Timeout:    timeout,
		HTTPClient: srv.Client(),
	}, logging.Discard())
}

func TestRAWGResolver_Resolve(t *testing.T) {
	fake := &fakeRAWG{t: t}
	r := newTestRAWG(t, fake, time.Second)

	game, err := r.Resolve(context.Background(), "Stardew Valley", "星露谷物语")
	require.NoError(t, err)
	require.NotNil(t, game)

	assert.Equal(t, "stardew-valley", game.Slug)
	assert.Equal(t, "星露谷物语", game.Name)
	assert.Equal(t, "Stardew Valley", game.NameEN)
	assert.Equal(t, "https://media.rawg.io/stardew.jpg", game.Cover)
	assert.Equal(t, []string{"s1", "s2", "s3", "s4", "s5", "s6"}, game.Screenshots)
	assert.Equal(t, []string{"Simulation", "RPG"}, game.Genres)
	assert.Equal(t, []string{"PC", "Nintendo Switch"}, game.Platforms)
	assert.Equal(t, []string{"t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8"}, game.Tags)
	require.NotNil(t, game.Metacritic)
	assert.Equal(t, 89, *game.Metacritic)
	require.NotNil(t, game.Rating)
	assert.InDelta(t, 4.41, *game.Rating, 0.0001)
	require.NotNil(t, game.ReleaseYear)
	assert.Equal(t, 2016, *game.ReleaseYear)
	assert.Equal(t, "约 52 小时", game.Playtime)
	assert.Equal(t, "Farm life.", game.Description)
	assert.Equal(t, "ConcernedApe", game.Developer)
	assert.Equal(t, "", game.Publisher)
	assert.Equal(t, []StoreLink{
		{Name: "Steam", URL: "https://store.steampowered.com/app/413150"},
		{Name: "Store #42", URL: "https://example.com/store"},
	}, game.Stores)
	assert.Empty(t, game.RecommendReason)
	assert.Equal(t, int64(10), game.CatalogID)
	assert.Equal(t, int32(4), fake.calls.Load())
}

func TestRAWGResolver_NoResults(t *testing.T) {
	fake := &fakeRAWG{t: t}
	r := newTestRAWG(t, fake, time.Second)

	game, err := r.Resolve(context.Background(), "UnknownTitle404", "x")
	assert.NoError(t, err)
	assert.Nil(t, game)
	assert.Equal(t, int32(1), fake.calls.Load(), "no follow-up calls after an empty search")
}

func TestRAWGResolver_StepFailureFailsWholeCall(t *testing.T) {
	for _, path := range []string{"/games", "/games/10", "/games/10/screenshots", "/games/10/stores"} {
		t.Run(path, func(t *testing.T) {
			fake := &fakeRAWG{t: t, failPath: path}
			r := newTestRAWG(t, fake, time.Second)

			game, err := r.Resolve(context.Background(), "Stardew Valley", "星露谷物语")
			require.Error(t, err)
			assert.Nil(t, game)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
			assert.Equal(t, "rawg", apiErr.Provider)
		})
	}
}

func TestRAWGResolver_TimeoutBoundsSequence(t *testing.T) {
	fake := &fakeRAWG{t: t, delay: 50 * time.Millisecond}
	r := newTestRAWG(t, fake, 20*time.Millisecond)

	game, err := r.Resolve(context.Background(), "Stardew Valley", "星露谷物语")
	assert.Error(t, err)
	assert.Nil(t, game)
}

func TestRAWGResolver_Name(t *testing.T) {
	r := NewRAWGResolver(RAWGConfig{}, logging.Discard())
	assert.Equal(t, "rawg", r.Name())
	assert.Equal(t, "https://api.rawg.io/api", r.baseURL)
	assert.Equal(t, 15*time.Second, r.timeout)
}

func TestBuildRAWGGame_FieldRules(t *testing.T) {
	tests := []struct {
		name    string
		details rawgDetails
		check   func(t *testing.T, g *Game)
	}{
		{
			name:    "short release date has no year",
			details: rawgDetails{Released: "201"},
			check:   func(t *testing.T, g *Game) { assert.Nil(t, g.ReleaseYear) },
		},
		{
			name:    "empty release date has no year",
			details: rawgDetails{},
			check:   func(t *testing.T, g *Game) { assert.Nil(t, g.ReleaseYear) },
		},
		{
			name:    "zero playtime is empty",
			details: rawgDetails{Playtime: 0},
			check:   func(t *testing.T, g *Game) { assert.Equal(t, "", g.Playtime) },
		},
		{
			name:    "description truncated to 500 characters",
			details: rawgDetails{DescriptionRaw: strings.Repeat("游", 600)},
			check: func(t *testing.T, g *Game) {
				assert.Equal(t, 500, len([]rune(g.Description)))
			},
		},
		{
			name:    "missing raw description is empty",
			details: rawgDetails{},
			check:   func(t *testing.T, g *Game) { assert.Equal(t, "", g.Description) },
		},
		{
			name:    "missing details name falls back to search name",
			details: rawgDetails{},
			check:   func(t *testing.T, g *Game) { assert.Equal(t, "Hades", g.NameEN) },
		},
		{
			name:    "no developers or publishers means empty strings",
			details: rawgDetails{},
			check: func(t *testing.T, g *Game) {
				assert.Equal(t, "", g.Developer)
				assert.Equal(t, "", g.Publisher)
				assert.NotNil(t, g.Stores)
				assert.NotNil(t, g.Screenshots)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildRAWGGame(1, "hades", "Hades", "哈迪斯", &tt.details, &rawgScreenshotsResponse{}, &rawgStoresResponse{})
			tt.check(t, g)
		})
	}
}

func TestRAWGResolver_HTMLDescriptionIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/games":
			_, _ = w.Write([]byte(`{"results": [{"id": 7, "slug": "hades", "name": "Hades"}]}`))
		case "/games/7":
			_, _ = w.Write([]byte(`{"id": 7, "name": "Hades", "description": "<p>Hello <b>world</b></p>", "description_raw": ""}`))
		default:
			_, _ = w.Write([]byte(`{"results": []}`))
		}
	}))
	defer srv.Close()

	r := NewRAWGResolver(RAWGConfig{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()}, logging.Discard())
	game, err := r.Resolve(context.Background(), "Hades", "哈迪斯")
	require.NoError(t, err)
	require.NotNil(t, game)
	assert.Equal(t, "", game.Description)
}

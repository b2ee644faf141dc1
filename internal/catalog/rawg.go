package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ryanm101/ziyou/internal/metrics"
	"github.com/ryanm101/ziyou/internal/tracing"
)

const (
	rawgProvider       = "rawg"
	defaultRAWGBaseURL = "https://api.rawg.io/api"
	defaultTimeout     = 15 * time.Second
)

// RAWGConfig configures the RAWG resolver.
type RAWGConfig struct {
	APIKey  string
	BaseURL string
	// Timeout bounds the whole search/details/screenshots/stores sequence.
	Timeout time.Duration
	// HTTPClient overrides the instrumented default client.
	HTTPClient *http.Client
}

// RAWGResolver implements Resolver against the RAWG video game database.
type RAWGResolver struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
	log     *slog.Logger
}

// NewRAWGResolver creates a RAWG resolver.
func NewRAWGResolver(cfg RAWGConfig, logger *slog.Logger) *RAWGResolver {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultRAWGBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &RAWGResolver{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		timeout: timeout,
		client:  client,
		log:     logger,
	}
}

func (r *RAWGResolver) Name() string {
	return rawgProvider
}

type rawgNamed struct {
	Name string `json:"name"`
}

type rawgSearchResponse struct {
	Results []struct {
		ID   int64  `json:"id"`
		Slug string `json:"slug"`
		Name string `json:"name"`
	} `json:"results"`
}

type rawgDetails struct {
	ID              int64       `json:"id"`
	Slug            string      `json:"slug"`
	Name            string      `json:"name"`
	Released        string      `json:"released"`
	BackgroundImage string      `json:"background_image"`
	Metacritic      *int        `json:"metacritic"`
	Rating          *float64    `json:"rating"`
	DescriptionRaw  string      `json:"description_raw"`
	Playtime        int         `json:"playtime"`
	Genres          []rawgNamed `json:"genres"`
	Platforms       []struct {
		Platform *rawgNamed `json:"platform"`
	} `json:"platforms"`
	Tags       []rawgNamed `json:"tags"`
	Developers []rawgNamed `json:"developers"`
	Publishers []rawgNamed `json:"publishers"`
}

type rawgScreenshotsResponse struct {
	Results []struct {
		Image string `json:"image"`
	} `json:"results"`
}

type rawgStoresResponse struct {
	Results []struct {
		StoreID *int   `json:"store_id"`
		URL     string `json:"url"`
	} `json:"results"`
}

// Resolve runs search -> details -> screenshots -> stores. A failure at any
// step fails the whole call; nothing partial is returned.
func (r *RAWGResolver) Resolve(ctx context.Context, nameEN, name string) (*Game, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.rawg.Resolve",
		tracing.WithAttributes(attribute.String("game.name_en", nameEN)),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var search rawgSearchResponse
	if err := r.get(ctx, "search", "/games", url.Values{"search": {nameEN}, "page_size": {"1"}}, &search); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	if len(search.Results) == 0 {
		metrics.CatalogRequests.WithLabelValues(rawgProvider, "search", "empty").Inc()
		r.log.Warn("RAWG search returned no results", "name_en", nameEN)
		tracing.AddSpanAttributes(span, attribute.Bool("catalog.found", false))
		return nil, nil
	}
	hit := search.Results[0]
	id := strconv.FormatInt(hit.ID, 10)

	var details rawgDetails
	if err := r.get(ctx, "details", "/games/"+id, nil, &details); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	var shots rawgScreenshotsResponse
	if err := r.get(ctx, "screenshots", "/games/"+id+"/screenshots", url.Values{"page_size": {strconv.Itoa(maxScreenshots)}}, &shots); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	var stores rawgStoresResponse
	if err := r.get(ctx, "stores", "/games/"+id+"/stores", nil, &stores); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	game := buildRAWGGame(hit.ID, hit.Slug, nameEN, name, &details, &shots, &stores)

	tracing.AddSpanAttributes(span,
		attribute.Bool("catalog.found", true),
		attribute.Int64("catalog.id", hit.ID),
		attribute.String("game.slug", game.Slug),
	)
	tracing.SetSpanOK(span)
	return game, nil
}

func buildRAWGGame(id int64, slug, nameEN, name string, d *rawgDetails, shots *rawgScreenshotsResponse, stores *rawgStoresResponse) *Game {
	game := &Game{
		Slug:        slug,
		Name:        name,
		NameEN:      d.Name,
		Cover:       d.BackgroundImage,
		Screenshots: make([]string, 0, maxScreenshots),
		Genres:      make([]string, 0, len(d.Genres)),
		Platforms:   make([]string, 0, len(d.Platforms)),
		Metacritic:  d.Metacritic,
		Rating:      d.Rating,
		Description: truncateRunes(d.DescriptionRaw, maxDescriptionLen),
		Stores:      make([]StoreLink, 0, len(stores.Results)),
		Tags:        make([]string, 0, maxTags),
		CatalogID:   id,
	}
	if game.NameEN == "" {
		game.NameEN = nameEN
	}

	if len(d.Released) >= 4 {
		if year, err := strconv.Atoi(d.Released[:4]); err == nil {
			game.ReleaseYear = &year
		}
	}
	if d.Playtime != 0 {
		game.Playtime = fmt.Sprintf("约 %d 小时", d.Playtime)
	}

	for _, s := range firstN(shots.Results, maxScreenshots) {
		game.Screenshots = append(game.Screenshots, s.Image)
	}
	for _, g := range d.Genres {
		game.Genres = append(game.Genres, g.Name)
	}
	for _, p := range d.Platforms {
		if p.Platform != nil {
			game.Platforms = append(game.Platforms, p.Platform.Name)
		}
	}
	for _, t := range firstN(d.Tags, maxTags) {
		game.Tags = append(game.Tags, t.Name)
	}
	if len(d.Developers) > 0 {
		game.Developer = d.Developers[0].Name
	}
	if len(d.Publishers) > 0 {
		game.Publisher = d.Publishers[0].Name
	}

	for _, s := range stores.Results {
		if s.URL == "" || s.StoreID == nil {
			continue
		}
		game.Stores = append(game.Stores, StoreLink{Name: StoreName(*s.StoreID), URL: s.URL})
	}

	return game
}

// get performs one authenticated GET against the RAWG API and decodes the body into out.
func (r *RAWGResolver) get(ctx context.Context, step, path string, params url.Values, out any) error {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("key", r.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("rawg %s: build request: %w", step, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		metrics.CatalogRequests.WithLabelValues(rawgProvider, step, "error").Inc()
		return fmt.Errorf("rawg %s: %w", step, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.CatalogRequests.WithLabelValues(rawgProvider, step, "error").Inc()
		return &APIError{Provider: rawgProvider, Step: step, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.CatalogRequests.WithLabelValues(rawgProvider, step, "error").Inc()
		return fmt.Errorf("rawg %s: decode response: %w", step, err)
	}

	metrics.CatalogRequests.WithLabelValues(rawgProvider, step, "ok").Inc()
	return nil
}

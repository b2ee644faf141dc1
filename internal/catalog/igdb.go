package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Henry-Sarabia/igdb/v2"
	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ryanm101/ziyou/internal/metrics"
	"github.com/ryanm101/ziyou/internal/tracing"
)

const (
	igdbProvider        = "igdb"
	defaultTwitchURL    = "https://id.twitch.tv/oauth2/token"
	igdbImageURLPattern = "https://images.igdb.com/igdb/image/upload/t_%s/%s.jpg"
)

// IGDBConfig configures the IGDB resolver.
type IGDBConfig struct {
	ClientID     string
	ClientSecret string
	// TokenURL overrides the Twitch OAuth endpoint.
	TokenURL string
	Timeout  time.Duration
	// HTTPClient overrides the instrumented default client for both the
	// token request and IGDB queries.
	HTTPClient *http.Client
}

// IGDBResolver implements Resolver for IGDB. IGDB has no store links, so
// resolved games carry an empty Stores list.
type IGDBResolver struct {
	client  *igdb.Client
	timeout time.Duration
	log     *slog.Logger
}

// NewIGDBResolver creates a new IGDB resolver.
// It fetches an app access token using the provided Client ID and Secret.
func NewIGDBResolver(ctx context.Context, cfg IGDBConfig, logger *slog.Logger) (*IGDBResolver, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("IGDB Client ID and Secret are required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTwitchURL
	}

	token, err := getTwitchToken(ctx, httpClient, tokenURL, cfg.ClientID, cfg.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate with Twitch: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &IGDBResolver{
		client:  igdb.NewClient(cfg.ClientID, token, httpClient),
		timeout: timeout,
		log:     logger,
	}, nil
}

func (p *IGDBResolver) Name() string {
	return igdbProvider
}

// Resolve searches IGDB and expands the referenced cover, screenshots,
// genres, platforms and companies. The IGDB client has no context support,
// so the timeout is enforced around the whole sequence instead.
func (p *IGDBResolver) Resolve(ctx context.Context, nameEN, name string) (*Game, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.igdb.Resolve",
		tracing.WithAttributes(attribute.String("game.name_en", nameEN)),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		game *Game
		err  error
	}
	done := make(chan result, 1)
	go func() {
		g, err := p.resolve(nameEN, name)
		done <- result{g, err}
	}()

	select {
	case <-ctx.Done():
		tracing.RecordError(span, ctx.Err())
		return nil, fmt.Errorf("igdb: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			tracing.RecordError(span, res.err)
			return nil, res.err
		}
		tracing.AddSpanAttributes(span, attribute.Bool("catalog.found", res.game != nil))
		tracing.SetSpanOK(span)
		return res.game, nil
	}
}

func (p *IGDBResolver) resolve(nameEN, name string) (*Game, error) {
	hits, err := p.client.Games.Search(nameEN,
		igdb.SetFields("id", "slug", "name"),
		igdb.SetLimit(1),
	)
	if errors.Is(err, igdb.ErrNoResults) || (err == nil && len(hits) == 0) {
		metrics.CatalogRequests.WithLabelValues(igdbProvider, "search", "empty").Inc()
		p.log.Warn("IGDB search returned no results", "name_en", nameEN)
		return nil, nil
	}
	if err := observe("search", err); err != nil {
		return nil, err
	}

	g, err := p.client.Games.Get(hits[0].ID,
		igdb.SetFields("id", "slug", "name", "summary", "first_release_date",
			"total_rating", "aggregated_rating", "cover", "screenshots",
			"genres", "platforms", "involved_companies"),
	)
	if err := observe("details", err); err != nil {
		return nil, err
	}

	game := &Game{
		Slug:        g.Slug,
		Name:        name,
		NameEN:      g.Name,
		Screenshots: make([]string, 0, maxScreenshots),
		Genres:      []string{},
		Platforms:   []string{},
		Description: truncateRunes(g.Summary, maxDescriptionLen),
		Stores:      []StoreLink{},
		Tags:        []string{},
		CatalogID:   int64(g.ID),
	}
	if game.Slug == "" {
		game.Slug = hits[0].Slug
	}
	if game.NameEN == "" {
		game.NameEN = nameEN
	}
	if g.FirstReleaseDate != 0 {
		year := time.Unix(int64(g.FirstReleaseDate), 0).UTC().Year()
		game.ReleaseYear = &year
	}
	if g.TotalRating > 0 {
		// IGDB rates out of 100; the API exposes a 0-5 scale.
		rating := math.Round(g.TotalRating/20*100) / 100
		game.Rating = &rating
	}
	if g.AggregatedRating > 0 {
		score := int(math.Round(g.AggregatedRating))
		game.Metacritic = &score
	}

	if g.Cover != 0 {
		cover, err := p.client.Covers.Get(g.Cover, igdb.SetFields("image_id"))
		if err := observe("cover", err); err != nil {
			return nil, err
		}
		game.Cover = imageURL("cover_big", cover.ImageID)
	}

	if ids := firstN(g.Screenshots, maxScreenshots); len(ids) > 0 {
		shots, err := p.client.Screenshots.List(ids, igdb.SetFields("image_id"))
		if err := observe("screenshots", err); err != nil {
			return nil, err
		}
		for _, s := range firstN(shots, maxScreenshots) {
			game.Screenshots = append(game.Screenshots, imageURL("screenshot_big", s.ImageID))
		}
	}

	if len(g.Genres) > 0 {
		genres, err := p.client.Genres.List(g.Genres, igdb.SetFields("name"))
		if err := observe("genres", err); err != nil {
			return nil, err
		}
		for _, genre := range genres {
			game.Genres = append(game.Genres, genre.Name)
		}
	}

	if len(g.Platforms) > 0 {
		platforms, err := p.client.Platforms.List(g.Platforms, igdb.SetFields("name"))
		if err := observe("platforms", err); err != nil {
			return nil, err
		}
		for _, platform := range platforms {
			game.Platforms = append(game.Platforms, platform.Name)
		}
	}

	if len(g.InvolvedCompanies) > 0 {
		if err := p.fillCompanies(game, g.InvolvedCompanies); err != nil {
			return nil, err
		}
	}

	return game, nil
}

// fillCompanies sets the first listed developer and publisher.
func (p *IGDBResolver) fillCompanies(game *Game, ids []int) error {
	involved, err := p.client.InvolvedCompanies.List(ids, igdb.SetFields("company", "developer", "publisher"))
	if err := observe("companies", err); err != nil {
		return err
	}

	var devID, pubID int
	for _, ic := range involved {
		if ic.Developer && devID == 0 {
			devID = ic.Company
		}
		if ic.Publisher && pubID == 0 {
			pubID = ic.Company
		}
	}

	for _, target := range []struct {
		id  int
		dst *string
	}{{devID, &game.Developer}, {pubID, &game.Publisher}} {
		if target.id == 0 {
			continue
		}
		company, err := p.client.Companies.Get(target.id, igdb.SetFields("name"))
		if err := observe("companies", err); err != nil {
			return err
		}
		*target.dst = company.Name
	}
	return nil
}

// observe counts one IGDB call and wraps its error with the step name.
func observe(step string, err error) error {
	if err != nil {
		metrics.CatalogRequests.WithLabelValues(igdbProvider, step, "error").Inc()
		return fmt.Errorf("igdb %s: %w", step, err)
	}
	metrics.CatalogRequests.WithLabelValues(igdbProvider, step, "ok").Inc()
	return nil
}

func imageURL(size, imageID string) string {
	if imageID == "" {
		return ""
	}
	return fmt.Sprintf(igdbImageURLPattern, size, imageID)
}

// getTwitchToken fetches an App Access Token from Twitch.
func getTwitchToken(ctx context.Context, client *http.Client, tokenURL, clientID, clientSecret string) (string, error) {
	vals := url.Values{}
	vals.Set("client_id", clientID)
	vals.Set("client_secret", clientSecret)
	vals.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(vals.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", errors.New("empty access token")
	}

	return result.AccessToken, nil
}

// Package recommend turns a player profile into enriched game recommendations.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ryanm101/ziyou/internal/cache"
	"github.com/ryanm101/ziyou/internal/catalog"
	"github.com/ryanm101/ziyou/internal/metrics"
	"github.com/ryanm101/ziyou/internal/suggest"
	"github.com/ryanm101/ziyou/internal/tracing"
)

// Request-level failures. Per-suggestion failures never surface on their own.
var (
	ErrSuggestionSourceUnavailable = errors.New("suggestion source unavailable")
	ErrNoSuggestions               = errors.New("suggestion source returned no games")
	ErrNoResolvableGames           = errors.New("no suggested game could be resolved")
)

// Cache is the subset of the game cache the service needs.
type Cache interface {
	Get(ctx context.Context, key string) (*cache.Record, error)
	Put(ctx context.Context, key string, game catalog.Game) (*cache.Record, error)
	SweepExpired(ctx context.Context) (int64, error)
}

// Batch is the list of resolved games, in the order the source suggested them.
type Batch []catalog.Game

// Service orchestrates suggestion, cache lookup and catalog resolution.
type Service struct {
	source   suggest.Source
	cache    Cache
	resolver catalog.Resolver
	log      *slog.Logger
}

// NewService creates a recommendation service.
func NewService(source suggest.Source, c Cache, resolver catalog.Resolver, logger *slog.Logger) *Service {
	return &Service{
		source:   source,
		cache:    c,
		resolver: resolver,
		log:      logger,
	}
}

// Recommend asks the source for suggestions, resolves all of them
// concurrently and returns the ones that resolved.
//
// Resolution branches do not inherit cancellation from ctx. If ctx ends
// first, Recommend returns ctx.Err() and the branches finish on their own;
// their cache writes still land.
func (s *Service) Recommend(ctx context.Context, profile suggest.Profile) (Batch, error) {
	ctx, span := tracing.StartSpan(ctx, "recommend.Recommend")
	defer span.End()
	defer metrics.ObserveSince(metrics.RecommendDuration, time.Now())

	start := time.Now()
	suggestions, err := s.source.Suggest(ctx, profile)
	metrics.ObserveSince(metrics.SuggestDuration, start)
	if err != nil {
		s.log.Error("suggestion source call failed", "error", err)
		metrics.Recommendations.WithLabelValues("suggest_unavailable").Inc()
		err = fmt.Errorf("%w: %v", ErrSuggestionSourceUnavailable, err)
		tracing.RecordError(span, err)
		return nil, err
	}
	if len(suggestions) == 0 {
		metrics.Recommendations.WithLabelValues("no_suggestions").Inc()
		tracing.RecordError(span, ErrNoSuggestions)
		return nil, ErrNoSuggestions
	}
	tracing.AddSpanAttributes(span, attribute.Int("recommend.suggestions", len(suggestions)))

	results, err := s.resolveAll(ctx, suggestions)
	if err != nil {
		metrics.Recommendations.WithLabelValues("canceled").Inc()
		tracing.RecordError(span, err)
		return nil, err
	}

	batch := aggregate(results)
	if len(batch) == 0 {
		metrics.Recommendations.WithLabelValues("no_resolvable_games").Inc()
		tracing.RecordError(span, ErrNoResolvableGames)
		return nil, ErrNoResolvableGames
	}

	s.log.Info("returning enriched games",
		"games", len(batch),
		"suggestions", len(suggestions),
	)
	metrics.Recommendations.WithLabelValues("ok").Inc()
	tracing.AddSpanAttributes(span, attribute.Int("recommend.games", len(batch)))
	tracing.SetSpanOK(span)
	return batch, nil
}

// resolveAll runs one branch per suggestion. Each branch owns one slot of the
// result slice; nil marks a failed branch.
func (s *Service) resolveAll(ctx context.Context, suggestions []suggest.Suggestion) ([]*catalog.Game, error) {
	results := make([]*catalog.Game, len(suggestions))
	branchCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i, sg := range suggestions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.resolveOne(branchCtx, sg)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return results, nil
	case <-ctx.Done():
		s.log.Warn("recommendation abandoned before resolution finished", "error", ctx.Err())
		return nil, ctx.Err()
	}
}

// resolveOne turns a single suggestion into a game, or nil if anything failed.
func (s *Service) resolveOne(ctx context.Context, sg suggest.Suggestion) *catalog.Game {
	key := cache.Key(sg.NameEN)
	ctx, span := tracing.StartSpan(ctx, "recommend.resolve",
		tracing.WithAttributes(
			attribute.String("game.name_en", sg.NameEN),
			attribute.String("cache.key", key),
		),
	)
	defer span.End()
	start := time.Now()

	rec, err := s.cache.Get(ctx, key)
	if err != nil {
		s.fail(span, start, "failed", "cache lookup failed", sg, err)
		return nil
	}
	if rec != nil {
		s.log.Debug("cache hit", "key", key)
		metrics.Resolutions.WithLabelValues("cache_hit").Inc()
		metrics.ObserveSince(metrics.ResolutionDuration.WithLabelValues("cache"), start)
		tracing.SetSpanOK(span)
		return rec.Game.WithReason(sg.Reason)
	}

	game, err := s.resolver.Resolve(ctx, sg.NameEN, sg.Name)
	if err != nil {
		s.fail(span, start, "failed", "catalog fetch failed", sg, err)
		return nil
	}
	if game == nil {
		s.fail(span, start, "not_found", "catalog has no match", sg, nil)
		return nil
	}

	if _, err := s.cache.Put(ctx, key, *game); err != nil {
		s.fail(span, start, "failed", "cache write failed", sg, err)
		return nil
	}

	metrics.Resolutions.WithLabelValues("resolved").Inc()
	metrics.ObserveSince(metrics.ResolutionDuration.WithLabelValues("catalog"), start)
	tracing.SetSpanOK(span)
	return game.WithReason(sg.Reason)
}

// fail records a dropped suggestion. Branch failures are logged, never returned.
func (s *Service) fail(span trace.Span, start time.Time, outcome, msg string, sg suggest.Suggestion, err error) {
	metrics.Resolutions.WithLabelValues(outcome).Inc()
	metrics.ObserveSince(metrics.ResolutionDuration.WithLabelValues("failed"), start)
	if err != nil {
		s.log.Warn(msg, "name_en", sg.NameEN, "provider", s.resolver.Name(), "error", err)
		tracing.RecordError(span, err)
		return
	}
	s.log.Warn(msg, "name_en", sg.NameEN, "provider", s.resolver.Name())
	tracing.AddSpanAttributes(span, attribute.String("resolve.outcome", outcome))
}

// aggregate keeps the resolved games in suggestion order.
func aggregate(results []*catalog.Game) Batch {
	batch := make(Batch, 0, len(results))
	for _, g := range results {
		if g != nil {
			batch = append(batch, *g)
		}
	}
	return batch
}

// SweepExpiredCache removes expired cache rows and reports how many went.
func (s *Service) SweepExpiredCache(ctx context.Context) (int64, error) {
	n, err := s.cache.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info("swept expired cache entries", "removed", n)
	return n, nil
}

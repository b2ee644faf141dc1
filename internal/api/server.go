// Package api exposes the recommendation service over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ryanm101/ziyou/internal/cache"
	"github.com/ryanm101/ziyou/internal/catalog"
	"github.com/ryanm101/ziyou/internal/recommend"
	"github.com/ryanm101/ziyou/internal/suggest"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// User-facing error details.
const (
	detailSuggestUnavailable = "AI 推荐服务暂时不可用，请稍后重试"
	detailNoSuggestions      = "AI 未返回任何推荐结果"
	detailNoGames            = "未能获取任何游戏数据，请稍后重试"
	detailInternal           = "服务器内部错误"
	detailInvalidBody        = "请求体格式错误"
	detailRateLimited        = "请求过于频繁，请稍后再试"
)

// maxBodyBytes caps the profile payload.
const maxBodyBytes = 1 << 20

// Recommender is what the handlers need from the recommendation service.
type Recommender interface {
	Recommend(ctx context.Context, p suggest.Profile) (recommend.Batch, error)
	SweepExpiredCache(ctx context.Context) (int64, error)
}

// StatsSource reports cache occupancy.
type StatsSource interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

// Options configures the server.
type Options struct {
	AllowedOrigins []string
	// RateLimit caps recommendation requests per client IP per minute. 0 disables it.
	RateLimit int
}

// Server handles HTTP requests.
type Server struct {
	svc    Recommender
	stats  StatsSource
	log    *slog.Logger
	router chi.Router
}

// NewServer creates a new API server.
func NewServer(svc Recommender, stats StatsSource, logger *slog.Logger, opts Options) *Server {
	s := &Server{
		svc:    svc,
		stats:  stats,
		log:    logger,
		router: chi.NewRouter(),
	}
	s.setupRoutes(opts)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler wraps the router with inbound tracing.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s, "ziyou.api")
}

func (s *Server) setupRoutes(opts Options) {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.With(recommendLimiter(opts.RateLimit)).Post("/recommend", s.handleRecommend)
		r.Get("/health", s.handleHealth)
		r.Post("/cache/sweep", s.handleSweep)
		r.Get("/cache/stats", s.handleStats)
	})
	r.Handle("/metrics", promhttp.Handler())
}

// recommendLimiter guards the endpoint that spends model quota.
func recommendLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusTooManyRequests, detailRateLimited)
		}),
	)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var profile suggest.Profile
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&profile); err != nil {
		writeError(w, http.StatusUnprocessableEntity, detailInvalidBody)
		return
	}
	if err := profile.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationDetail(err))
		return
	}

	start := time.Now()
	games, err := s.svc.Recommend(r.Context(), profile)
	if err != nil {
		status, detail := errorStatus(err)
		if status >= http.StatusInternalServerError {
			s.log.Error("recommendation failed", "error", err, "status", status)
		}
		writeError(w, status, detail)
		return
	}

	s.log.Info("recommendation served",
		"games", len(games),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	writeJSON(w, http.StatusOK, struct {
		Games []catalog.Game `json:"games"`
	}{Games: games})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.SweepExpiredCache(r.Context())
	if err != nil {
		s.log.Error("cache sweep failed", "error", err)
		writeError(w, http.StatusInternalServerError, detailInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.Stats(r.Context())
	if err != nil {
		s.log.Error("cache stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, detailInternal)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// errorStatus maps a service error to an HTTP status and user-facing detail.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, recommend.ErrSuggestionSourceUnavailable):
		return http.StatusBadGateway, detailSuggestUnavailable
	case errors.Is(err, recommend.ErrNoSuggestions):
		return http.StatusInternalServerError, detailNoSuggestions
	case errors.Is(err, recommend.ErrNoResolvableGames):
		return http.StatusInternalServerError, detailNoGames
	default:
		return http.StatusInternalServerError, detailInternal
	}
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fe.Field() + ": failed '" + fe.Tag() + "' validation"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

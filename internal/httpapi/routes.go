// Package httpapi exposes the aggregation service over HTTP: chi
// routing, API-key auth, and the mapping from pipeline errors to
// response codes. All handlers go through the orchestrator; none of
// them talk to upstreams directly.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/rainmanjam/social-flood/autocomplete"
	"github.com/rainmanjam/social-flood/cache"
	"github.com/rainmanjam/social-flood/gnews"
	"github.com/rainmanjam/social-flood/internal/config"
	"github.com/rainmanjam/social-flood/orchestrate"
	"github.com/rainmanjam/social-flood/transcripts"
	"github.com/rainmanjam/social-flood/trends"
)

// Operation names registered with the orchestrator. Each carries its
// own cache namespace and TTL.
const (
	OpNewsSearch = "news.search"
	OpNewsDecode = "news.decode"
	OpSuggest    = "autocomplete.suggest"
	OpVariations = "autocomplete.variations"
	OpTrending   = "trends.trending"
	OpTranscript = "transcripts.fetch"
)

type Server struct {
	Router *chi.Mux

	orch        *orchestrate.Orchestrator
	news        *gnews.Client
	suggest     *autocomplete.Client
	trending    *trends.Client
	transcripts *transcripts.Client
	maxParallel int
	log         zerolog.Logger
}

type ServerOptions struct {
	Cfg         *config.Config
	Orch        *orchestrate.Orchestrator
	News        *gnews.Client
	Suggest     *autocomplete.Client
	Trending    *trends.Client
	Transcripts *transcripts.Client
	Log         zerolog.Logger
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	s := &Server{
		Router:      r,
		orch:        opts.Orch,
		news:        opts.News,
		suggest:     opts.Suggest,
		trending:    opts.Trending,
		transcripts: opts.Transcripts,
		maxParallel: opts.Cfg.Fanout.MaxParallel,
		log:         opts.Log,
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(ar chi.Router) {
		ar.Use(RequireAPIKey(opts.Cfg.APIKeys))
		ar.Get("/news/search", s.handleNewsSearch)
		ar.Get("/news/decode", s.handleNewsDecode)
		ar.Get("/autocomplete", s.handleSuggest)
		ar.Get("/autocomplete/variations", s.handleVariations)
		ar.Get("/trends", s.handleTrending)
		ar.Get("/transcripts/{videoID}", s.handleTranscript)
	})

	return s
}

func (s *Server) handleNewsSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	lang := r.URL.Query().Get("lang")

	params := []cache.Param{cache.String("q", q), cache.String("lang", lang)}
	body, err := s.orch.Execute(r.Context(), identity(r.Context()), OpNewsSearch, params, func(ctx context.Context) ([]byte, error) {
		articles, err := s.news.Search(ctx, q, lang)
		if err != nil {
			return nil, err
		}
		return json.Marshal(articles)
	})
	s.respond(w, body, err)
}

func (s *Server) handleNewsDecode(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("urls"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "urls is required")
		return
	}
	urls := strings.Split(raw, ",")
	if len(urls) > 50 {
		writeError(w, http.StatusBadRequest, "at most 50 urls per request")
		return
	}

	params := []cache.Param{cache.String("urls", raw)}
	body, err := s.orch.Execute(r.Context(), identity(r.Context()), OpNewsDecode, params, func(ctx context.Context) ([]byte, error) {
		return json.Marshal(s.news.DecodeURLs(ctx, urls, s.maxParallel))
	})
	s.respond(w, body, err)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	lang := r.URL.Query().Get("lang")

	params := []cache.Param{cache.String("q", q), cache.String("lang", lang)}
	body, err := s.orch.Execute(r.Context(), identity(r.Context()), OpSuggest, params, func(ctx context.Context) ([]byte, error) {
		suggestions, err := s.suggest.Suggest(ctx, q, lang)
		if err != nil {
			return nil, err
		}
		return json.Marshal(suggestions)
	})
	s.respond(w, body, err)
}

func (s *Server) handleVariations(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	lang := r.URL.Query().Get("lang")

	params := []cache.Param{cache.String("q", q), cache.String("lang", lang)}
	body, err := s.orch.Execute(r.Context(), identity(r.Context()), OpVariations, params, func(ctx context.Context) ([]byte, error) {
		variations, err := s.suggest.Variations(ctx, q, lang, s.maxParallel)
		if err != nil {
			return nil, err
		}
		return json.Marshal(variations)
	})
	s.respond(w, body, err)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	geo := r.URL.Query().Get("geo")
	lang := r.URL.Query().Get("lang")

	params := []cache.Param{cache.String("geo", geo), cache.String("lang", lang)}
	body, err := s.orch.Execute(r.Context(), identity(r.Context()), OpTrending, params, func(ctx context.Context) ([]byte, error) {
		searches, err := s.trending.Trending(ctx, geo, lang)
		if err != nil {
			return nil, err
		}
		return json.Marshal(searches)
	})
	s.respond(w, body, err)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	lang := r.URL.Query().Get("lang")

	params := []cache.Param{cache.String("video_id", videoID), cache.String("lang", lang)}
	body, err := s.orch.Execute(r.Context(), identity(r.Context()), OpTranscript, params, func(ctx context.Context) ([]byte, error) {
		segments, err := s.transcripts.Fetch(ctx, videoID, lang)
		if err != nil {
			return nil, err
		}
		return json.Marshal(segments)
	})
	s.respond(w, body, err)
}

// respond writes the cached/fetched JSON payload or maps a pipeline
// error to its response code: RateLimited to 429 with a Retry-After
// hint, Timeout to 504, upstream failures to 502.
func (s *Server) respond(w http.ResponseWriter, body []byte, err error) {
	if err == nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(body)
		return
	}

	var rl *orchestrate.RateLimitedError
	switch {
	case errors.As(err, &rl):
		secs := int(rl.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	case errors.Is(err, orchestrate.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "upstream timed out")
	case errors.Is(err, orchestrate.ErrUnknownOperation):
		s.log.Error().Err(err).Msg("handler used unregistered operation")
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		s.log.Warn().Err(err).Msg("upstream fetch failed")
		writeError(w, http.StatusBadGateway, "upstream error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// cmd/api/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/rainmanjam/social-flood/autocomplete"
	"github.com/rainmanjam/social-flood/cache"
	"github.com/rainmanjam/social-flood/gnews"
	"github.com/rainmanjam/social-flood/internal/config"
	"github.com/rainmanjam/social-flood/internal/httpapi"
	"github.com/rainmanjam/social-flood/orchestrate"
	"github.com/rainmanjam/social-flood/ratelimit"
	"github.com/rainmanjam/social-flood/transcripts"
	"github.com/rainmanjam/social-flood/transport"
	"github.com/rainmanjam/social-flood/trends"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load failed")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}

	// Shared cache tier; a missing or unreachable Redis degrades to
	// local-only rather than failing startup.
	var shared cache.SharedStore
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb = redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, running with local cache only")
		} else {
			shared = cache.NewRedis(rdb, cfg.Cache.RedisPrefix)
		}
		cancel()
	}

	local := cache.NewMemory(cfg.Cache.Capacity)
	store := cache.NewTiered(local, shared, logger)

	// One pooled transport shared by every upstream client.
	tc := transport.New(transport.Config{
		MaxConnsPerHost:       cfg.Upstream.MaxConnsPerHost,
		MaxIdleConns:          cfg.Upstream.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.Upstream.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.Upstream.IdleConnTimeout,
		DialTimeout:           cfg.Upstream.DialTimeout,
		TLSHandshakeTimeout:   cfg.Upstream.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.Upstream.ResponseHeaderTimeout,
		RequestTimeout:        cfg.Upstream.RequestTimeout,
		MaxAttempts:           cfg.Upstream.MaxAttempts,
		UserAgent:             cfg.Upstream.UserAgent,
	}, logger)

	limiter := ratelimit.New(cfg.RateLimit.Limit, cfg.RateLimit.Window)

	orch := orchestrate.New(limiter, store, map[string]orchestrate.Operation{
		httpapi.OpNewsSearch: {Namespace: "gnews", TTL: cfg.TTL.News},
		httpapi.OpNewsDecode: {Namespace: "gnews", TTL: cfg.TTL.News},
		httpapi.OpSuggest:    {Namespace: "autocomplete", TTL: cfg.TTL.Autocomplete},
		httpapi.OpVariations: {Namespace: "autocomplete", TTL: cfg.TTL.Autocomplete},
		httpapi.OpTrending:   {Namespace: "trends", TTL: cfg.TTL.Trends},
		httpapi.OpTranscript: {Namespace: "transcripts", TTL: cfg.TTL.Transcripts},
	}, logger)

	s := httpapi.New(httpapi.ServerOptions{
		Cfg:         cfg,
		Orch:        orch,
		News:        gnews.New(tc),
		Suggest:     autocomplete.New(tc),
		Trending:    trends.New(tc),
		Transcripts: transcripts.New(tc),
		Log:         logger,
	})
	h := hlog.NewHandler(logger)(s.Router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting api server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	tc.Close()
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close failed")
		}
	}
}

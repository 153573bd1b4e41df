// Package app assembles the sync pipeline from configuration. Both the HTTP
// server and the CLI build their services here.
package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"

	"artistsync/internal/cache"
	"artistsync/internal/command"
	"artistsync/internal/config"
	"artistsync/internal/handlers"
	"artistsync/internal/metrics"
	"artistsync/internal/scoring"
	"artistsync/internal/services"
	"artistsync/internal/session"
	"artistsync/internal/tagging"
)

// App holds the wired services
type App struct {
	Config    *config.Config
	Cache     cache.Cache
	Metrics   *metrics.Metrics
	Netease   *services.NeteaseService
	QQMusic   *services.QQMusicService
	YouTube   *services.YouTubeService
	Streaming *services.StreamingCatalogSource
	Resolver  *services.SourceResolutionService
	Sync      *services.SyncService
	Batch     *services.ArtistSyncService
	Codec     *session.TokenCodec
}

// New builds every service described by cfg. runner executes yt-dlp and
// ffmpeg; reg receives the pipeline metrics and may be nil.
func New(cfg *config.Config, runner command.Runner, reg prometheus.Registerer) (*App, error) {
	if err := os.MkdirAll(cfg.ScratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir %s: %w", cfg.ScratchDir, err)
	}

	c, err := cache.New(cfg.ValkeyURL, cfg.L1CacheItems)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	codec, err := session.NewTokenCodec(cfg.SessionSecret)
	if err != nil {
		c.Close()
		return nil, err
	}

	netease := services.NewNeteaseService(services.NeteaseOptions{
		BaseURL:           cfg.NeteaseAPIURL,
		Timeout:           cfg.HTTPTimeout,
		UploadTimeout:     cfg.UploadTimeout,
		UploadRetries:     cfg.UploadRetries,
		UploadRetryBase:   cfg.UploadRetryBase,
		PlaylistRetries:   cfg.PlaylistRetries,
		PlaylistRetryBase: cfg.PlaylistRetryBase,
	}, m)

	qq := services.NewQQMusicService(services.QQMusicOptions{
		BaseURL:        cfg.QQMusicAPIURL,
		Timeout:        cfg.HTTPTimeout,
		SearchCacheTTL: cfg.SearchCacheTTL,
		LyricsCacheTTL: cfg.LyricsCacheTTL,
	}, c)

	yt := services.NewYouTubeService(runner, services.YouTubeOptions{
		YtDlpPath:      cfg.YtDlpPath,
		FFmpegPath:     cfg.FFmpegPath,
		ScratchDir:     cfg.ScratchDir,
		Retries:        cfg.DownloadRetries,
		RetryDelay:     cfg.DownloadRetryDelay,
		SearchCacheTTL: cfg.SearchCacheTTL,
	}, c, m)

	scorer := scoring.NewConfiguredMatchScorer()
	streaming := services.NewStreamingCatalogSource(qq, yt, scorer, cfg.SearchLimit)
	registry := services.NewSourceRegistry(yt, streaming)
	resolver := services.NewSourceResolutionService(scorer, registry).
		WithSearchLimit(cfg.SearchLimit).
		WithMetrics(m)

	embedder := tagging.NewEmbedder(runner, cfg.FFmpegPath, resty.New().SetTimeout(cfg.HTTPTimeout))

	syncService := services.NewSyncService(services.SyncDeps{
		Resolver: resolver,
		Primary:  netease,
		Lyrics:   qq,
		Embedder: embedder,
		Metrics:  m,
	}, services.SyncOptions{
		ScratchDir:      cfg.ScratchDir,
		KeepDownloads:   cfg.KeepDownloads,
		MinLyricsLength: cfg.MinLyricsLength,
	})

	batch := services.NewArtistSyncService(syncService, netease, m, services.BatchOptions{
		Timeout:      cfg.BatchTimeout,
		MaxBatchSize: cfg.MaxBatchSize,
	})

	slog.Info("Sync pipeline ready",
		"providers", registry.Providers(),
		"scratchDir", cfg.ScratchDir,
		"sharedCache", cfg.ValkeyURL != "")

	return &App{
		Config:    cfg,
		Cache:     c,
		Metrics:   m,
		Netease:   netease,
		QQMusic:   qq,
		YouTube:   yt,
		Streaming: streaming,
		Resolver:  resolver,
		Sync:      syncService,
		Batch:     batch,
		Codec:     codec,
	}, nil
}

// RouterDeps builds the HTTP handlers on the wired services
func (a *App) RouterDeps(gatherer prometheus.Gatherer) handlers.RouterDeps {
	checks := map[string]handlers.HealthChecker{
		"cache":   a.Cache,
		"netease": a.Netease,
	}
	return handlers.RouterDeps{
		Auth:      handlers.NewAuthHandler(a.Netease, a.Codec, a.Config.SessionTTL),
		Artists:   handlers.NewArtistHandler(a.Netease, a.QQMusic, a.Batch, a.Config.MaxBatchSize),
		Songs:     handlers.NewSongHandler(a.Streaming, a.Sync),
		Admin:     handlers.NewAdminHandler(gatherer, checks),
		Codec:     a.Codec,
		CookieTTL: a.Config.SessionTTL,
	}
}

// Close releases the cache connection
func (a *App) Close() error {
	return a.Cache.Close()
}

// CookieCredential wraps a raw cookie for CLI use
func (a *App) CookieCredential(cookie string) *session.Credential {
	if cookie == "" {
		return nil
	}
	return session.NewCredential(cookie, a.Config.SessionTTL)
}

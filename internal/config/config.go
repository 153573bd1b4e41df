package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Application settings
	Port     string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	GinMode  string `envconfig:"GIN_MODE" default:"release" validate:"oneof=debug release test"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Optional Valkey cache; an in-process cache is used when unset
	ValkeyURL    string `envconfig:"VALKEY_URL" validate:"omitempty,url"`
	L1CacheItems int    `envconfig:"L1_CACHE_ITEMS" default:"1000" validate:"gte=0"`

	// Remote collaborators
	NeteaseAPIURL string        `envconfig:"NETEASE_API_URL" default:"http://localhost:3000" validate:"required,url"`
	QQMusicAPIURL string        `envconfig:"QQMUSIC_API_URL" default:"http://localhost:3300" validate:"required,url"`
	HTTPTimeout   time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s" validate:"gt=0"`
	UploadTimeout time.Duration `envconfig:"UPLOAD_TIMEOUT" default:"5m" validate:"gt=0"`

	// Local tools and scratch space
	YtDlpPath     string `envconfig:"YTDLP_PATH" default:"yt-dlp" validate:"required"`
	FFmpegPath    string `envconfig:"FFMPEG_PATH" default:"ffmpeg" validate:"required"`
	ScratchDir    string `envconfig:"SCRATCH_DIR"`
	KeepDownloads bool   `envconfig:"KEEP_DOWNLOADS" default:"true"`

	// Session tokens wrapping the streaming-service cookie
	SessionSecret string        `envconfig:"SESSION_SECRET"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"72h" validate:"gt=0"`

	// Pipeline behaviour
	BatchTimeout       time.Duration `envconfig:"BATCH_TIMEOUT" default:"30m" validate:"gt=0"`
	DownloadRetries    int           `envconfig:"DOWNLOAD_RETRIES" default:"3" validate:"gte=1,lte=10"`
	DownloadRetryDelay time.Duration `envconfig:"DOWNLOAD_RETRY_DELAY" default:"2s" validate:"gte=0"`
	UploadRetries      int           `envconfig:"UPLOAD_RETRIES" default:"5" validate:"gte=1,lte=10"`
	UploadRetryBase    time.Duration `envconfig:"UPLOAD_RETRY_BASE" default:"2s" validate:"gte=0"`
	PlaylistRetries    int           `envconfig:"PLAYLIST_RETRIES" default:"3" validate:"gte=1,lte=10"`
	PlaylistRetryBase  time.Duration `envconfig:"PLAYLIST_RETRY_BASE" default:"1500ms" validate:"gte=0"`
	MinLyricsLength    int           `envconfig:"MIN_LYRICS_LENGTH" default:"200" validate:"gte=0"`
	SearchLimit        int           `envconfig:"SEARCH_LIMIT" default:"5" validate:"gte=1,lte=50"`
	MaxBatchSize       int           `envconfig:"MAX_BATCH_SIZE" default:"50" validate:"gte=1"`
	SearchCacheTTL     time.Duration `envconfig:"SEARCH_CACHE_TTL" default:"6h" validate:"gte=0"`
	LyricsCacheTTL     time.Duration `envconfig:"LYRICS_CACHE_TTL" default:"24h" validate:"gte=0"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if cfg.ScratchDir == "" {
		cfg.ScratchDir = DefaultScratchDir()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.SessionSecret == "" {
		slog.Warn("SESSION_SECRET not set, session tokens will not survive a restart")
	}

	return &cfg, nil
}

// Validate checks field constraints declared in the struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DefaultScratchDir is the download cache under the user's XDG cache home
func DefaultScratchDir() string {
	return filepath.Join(xdg.CacheHome, "artistsync", "downloads")
}

// SlogLevel maps LogLevel onto slog levels
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

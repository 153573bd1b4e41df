package services

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gosimple/slug"

	"artistsync/internal/cache"
	"artistsync/internal/command"
	"artistsync/internal/metrics"
	"artistsync/internal/models"
)

const youtubePlatform = "youtube"

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// YouTubeOptions configures the yt-dlp backed source
type YouTubeOptions struct {
	YtDlpPath      string
	FFmpegPath     string
	ScratchDir     string
	Retries        int
	RetryDelay     time.Duration
	SearchCacheTTL time.Duration
}

// YouTubeService searches and downloads from the video platform through yt-dlp
type YouTubeService struct {
	runner     command.Runner
	ytDlp      string
	ffmpeg     string
	scratchDir string
	retry      retryPolicy
	cache      cache.Cache
	searchTTL  time.Duration
}

// NewYouTubeService creates the video-platform audio source
func NewYouTubeService(runner command.Runner, opts YouTubeOptions, c cache.Cache, m *metrics.Metrics) *YouTubeService {
	ytDlp := opts.YtDlpPath
	if ytDlp == "" {
		ytDlp = "yt-dlp"
	}
	return &YouTubeService{
		runner:     runner,
		ytDlp:      ytDlp,
		ffmpeg:     opts.FFmpegPath,
		scratchDir: opts.ScratchDir,
		retry:      newRetryPolicy("download", opts.Retries, FixedBackoff(opts.RetryDelay), m),
		cache:      c,
		searchTTL:  opts.SearchCacheTTL,
	}
}

// Provider implements AudioSource
func (s *YouTubeService) Provider() models.Provider {
	return models.ProviderVideoPlatform
}

// ytEntry is one line of yt-dlp --dump-json output
type ytEntry struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Channel   string  `json:"channel"`
	Uploader  string  `json:"uploader"`
	Duration  float64 `json:"duration"`
	ViewCount int64   `json:"view_count"`
	Thumbnail string  `json:"thumbnail"`
}

func (e ytEntry) toCandidate() models.Candidate {
	uploader := e.Channel
	if uploader == "" {
		uploader = e.Uploader
	}
	return models.Candidate{
		Title:           e.Title,
		Uploader:        uploader,
		DurationSeconds: int(math.Round(e.Duration)),
		Popularity:      e.ViewCount,
		TechnicalID:     e.ID,
		CatalogRef:      models.ProviderVideoPlatform,
		CoverURL:        e.Thumbnail,
	}
}

// Search runs a yt-dlp search and returns up to limit candidates with view counts
func (s *YouTubeService) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		limit = 5
	}
	cacheKey := fmt.Sprintf("api:youtube:search:%s:limit:%d", query, limit)
	var candidates []models.Candidate
	if cache.GetJSON(ctx, s.cache, cacheKey, &candidates) {
		slog.Debug("YouTube search cache hit", "query", query)
		return candidates, nil
	}

	out, err := s.runner.Run(ctx, s.ytDlp,
		"--dump-json",
		"--flat-playlist",
		"--no-warnings",
		fmt.Sprintf("ytsearch%d:%s", limit, query),
	)
	if err != nil {
		return nil, &PlatformError{Platform: youtubePlatform, Operation: "search", Message: query, Err: err}
	}

	candidates, err = parseSearchOutput(out)
	if err != nil {
		return nil, &PlatformError{Platform: youtubePlatform, Operation: "search", Message: "malformed yt-dlp output", Err: err}
	}

	if err := cache.SetJSON(ctx, s.cache, cacheKey, candidates, s.searchTTL); err != nil {
		slog.Warn("Failed to cache YouTube search", "query", query, "error", err)
	}
	return candidates, nil
}

// parseSearchOutput decodes one JSON object per line, skipping entries without an id
func parseSearchOutput(out []byte) ([]models.Candidate, error) {
	candidates := make([]models.Candidate, 0)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var entry ytEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, err
		}
		if entry.ID == "" {
			continue
		}
		candidates = append(candidates, entry.toCandidate())
	}
	return candidates, scanner.Err()
}

// Download extracts the candidate's audio as mp3 into the scratch directory.
// A non-empty file already cached for the same video is reused.
func (s *YouTubeService) Download(ctx context.Context, candidate models.Candidate) (string, error) {
	if candidate.TechnicalID == "" {
		return "", fmt.Errorf("%w: candidate has no technical id", ErrDownloadFailed)
	}
	if err := os.MkdirAll(s.scratchDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	stem := filepath.Join(s.scratchDir, cacheFileStem(candidate.TechnicalID))
	path := stem + ".mp3"
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		slog.Info("Using cached download", "path", path, "id", candidate.TechnicalID)
		return path, nil
	}

	args := []string{
		"--format", "bestaudio",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"--no-playlist",
		"--no-warnings",
		"--output", stem + ".%(ext)s",
	}
	if s.ffmpeg != "" {
		args = append(args, "--ffmpeg-location", s.ffmpeg)
	}
	args = append(args, "https://www.youtube.com/watch?v="+candidate.TechnicalID)

	err := s.retry.do(ctx, func(attempt int) error {
		slog.Info("Downloading audio", "id", candidate.TechnicalID, "title", candidate.Title, "attempt", attempt)
		if _, err := s.runner.Run(ctx, s.ytDlp, args...); err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("yt-dlp produced no file at %s: %w", path, err)
		}
		if info.Size() == 0 {
			return errors.New("yt-dlp produced an empty file")
		}
		return nil
	})
	if err != nil {
		_ = os.Remove(path)
		if command.IsNotFound(err) {
			return "", fmt.Errorf("%w: %s is not installed: %w", ErrDownloadFailed, s.ytDlp, err)
		}
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	return path, nil
}

// cacheFileStem keys the download cache by video id. Ids outside the usual
// alphabet are slugged so they stay filesystem safe.
func cacheFileStem(id string) string {
	if videoIDPattern.MatchString(id) {
		return id
	}
	if s := slug.Make(id); s != "" {
		return s
	}
	return "video"
}

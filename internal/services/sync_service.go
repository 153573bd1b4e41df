package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/tidwall/gjson"

	"artistsync/internal/config"
	"artistsync/internal/metrics"
	"artistsync/internal/models"
	"artistsync/internal/normalize"
	"artistsync/internal/scoring"
	"artistsync/internal/session"
	"artistsync/internal/tagging"
)

// Lyrics sources reported in SyncResult.LyricsSource
const (
	LyricsFromIntermediate = "qqmusic"
	LyricsFromPrimary      = "netease"
)

// uploadIDPaths are tried in order; the private-cloud id is authoritative
var uploadIDPaths = []string{
	"privateCloud.songId",
	"privateCloud.simpleSong.id",
	"songId",
	"id",
}

// SyncOptions tunes the per-song pipeline
type SyncOptions struct {
	ScratchDir      string
	KeepDownloads   bool
	MinLyricsLength int
	// CatalogSearchLimit bounds lyric and metadata searches
	CatalogSearchLimit int
}

// SyncDeps are the collaborators of the per-song pipeline.
// Lyrics may be nil to skip pre-resolution.
type SyncDeps struct {
	Resolver *SourceResolutionService
	Primary  PrimaryCatalog
	Lyrics   LyricsCatalog
	Embedder Embedder
	Metrics  *metrics.Metrics
}

// ProcessOptions are per-call switches
type ProcessOptions struct {
	// SkipUpload stops after tagging and reports the song as skipped
	SkipUpload bool
}

// SyncService runs one song through prefetch, resolve, download, lyrics,
// tag and upload
type SyncService struct {
	resolver *SourceResolutionService
	primary  PrimaryCatalog
	lyrics   LyricsCatalog
	embedder Embedder
	metrics  *metrics.Metrics
	opts     SyncOptions
	now      func() time.Time
}

// NewSyncService creates the per-song orchestrator
func NewSyncService(deps SyncDeps, opts SyncOptions) *SyncService {
	if opts.CatalogSearchLimit <= 0 {
		opts.CatalogSearchLimit = 10
	}
	return &SyncService{
		resolver: deps.Resolver,
		primary:  deps.Primary,
		lyrics:   deps.Lyrics,
		embedder: deps.Embedder,
		metrics:  deps.Metrics,
		opts:     opts,
		now:      time.Now,
	}
}

// songRun carries the state of one ProcessSong call
type songRun struct {
	sink    models.EventSink
	result  models.SyncResult
	rawPath string
	tagged  string
	failed  bool
}

// ProcessSong runs the pipeline for one song. It never returns an error:
// any failing step is reported in the result, tagged with the step name.
// Temporary files are removed on every exit path.
func (s *SyncService) ProcessSong(ctx context.Context, cred *session.Credential, track models.CanonicalTrack, sink models.EventSink, opts ProcessOptions) models.SyncResult {
	run := &songRun{sink: sink, result: models.SyncResult{Track: track}}
	defer s.cleanup(run)

	models.Logf(sink, "[Processing] %s - %s", track.Name, track.Artist)

	// Uploading needs a live session; fail before spending a download on it
	if !opts.SkipUpload {
		if err := cred.Validate(s.now()); err != nil {
			return s.fail(run, StepAuth, err)
		}
	}
	if err := track.Validate(); err != nil {
		return s.fail(run, StepResolve, err)
	}

	// 1. Lyrics and metadata pre-resolution, best effort
	start := time.Now()
	enriched, match, lyrics := s.prefetch(ctx, track, sink)
	if lyrics != "" {
		run.result.LyricsSource = LyricsFromIntermediate
	}
	s.metrics.ObserveStep(StepPrefetch, time.Since(start).Seconds())

	// 2. Resolve and download
	start = time.Now()
	resolution, err := s.resolver.Resolve(ctx, enriched)
	if err != nil {
		return s.fail(run, StepResolve, err)
	}
	winner := resolution.Winner.Candidate
	run.result.Source = &winner
	models.LogWithData(sink, fmt.Sprintf("[Source] Stage %d picked: %s (score %.1f)", resolution.Stage, winner.Title, resolution.Winner.Score), resolution.Winner.Breakdown)
	s.metrics.ObserveStep(StepResolve, time.Since(start).Seconds())

	start = time.Now()
	source, err := s.resolver.Source()
	if err != nil {
		return s.fail(run, StepDownload, err)
	}
	rawPath, err := source.Download(ctx, winner)
	if err != nil {
		if !errors.Is(err, ErrDownloadFailed) {
			err = fmt.Errorf("%w: %w", ErrDownloadFailed, err)
		}
		return s.fail(run, StepDownload, err)
	}
	run.rawPath = rawPath
	if info, statErr := os.Stat(rawPath); statErr == nil {
		models.Logf(sink, "Download complete: %s (%.2f MB)", filepath.Base(rawPath), float64(info.Size())/(1024*1024))
	}
	s.metrics.ObserveStep(StepDownload, time.Since(start).Seconds())

	// 3. Lyrics fallback on the primary catalog
	if lyrics == "" {
		start = time.Now()
		lyrics = s.primaryLyrics(ctx, cred, track, sink)
		if lyrics != "" {
			run.result.LyricsSource = LyricsFromPrimary
		}
		s.metrics.ObserveStep(StepLyrics, time.Since(start).Seconds())
	}
	if lyrics != "" {
		models.Logf(sink, "[Lyrics] Ready to embed (%d chars)", utf8.RuneCountInString(lyrics))
	} else {
		models.Logf(sink, "[Lyrics] No lyrics found.")
	}

	// 4. Tagging
	start = time.Now()
	run.tagged = filepath.Join(s.opts.ScratchDir, tagging.SafeFileName(track.Name, "mp3"))
	meta := tagging.Metadata{
		Title:    track.Name,
		Artist:   track.Artist,
		Album:    firstNonEmpty(enriched.Album, track.Album),
		CoverURL: firstNonEmpty(track.CoverURL, match.CoverURL, winner.CoverURL),
		Lyrics:   lyrics,
	}
	models.Logf(sink, "Embedding metadata...")
	if err := s.embedder.Embed(ctx, rawPath, run.tagged, meta); err != nil {
		return s.fail(run, StepTag, fmt.Errorf("%w: %w", ErrTaggingFailed, err))
	}
	s.metrics.ObserveStep(StepTag, time.Since(start).Seconds())

	if opts.SkipUpload {
		models.Logf(sink, "[Upload] Skipped (Dry Run)")
		run.result.Status = models.StatusSkipped
		s.metrics.SongProcessed(string(models.StatusSkipped), "")
		return run.result
	}

	// 5. Upload
	start = time.Now()
	models.Logf(sink, "Uploading to cloud library...")
	uploaded, err := s.primary.UploadAudioFile(ctx, cred, run.tagged)
	if err != nil {
		if !errors.Is(err, ErrUploadFailed) && !errors.Is(err, ErrNotAuthenticated) {
			err = fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}
		return s.fail(run, StepUpload, err)
	}
	trackID, err := ExtractUploadedTrackID(uploaded.Body)
	if err != nil {
		return s.fail(run, StepUpload, err)
	}
	s.metrics.ObserveStep(StepUpload, time.Since(start).Seconds())

	models.Logf(sink, "[Upload] Success! Cloud ID: %s", trackID)
	run.result.Status = models.StatusSuccess
	run.result.UploadedTrackID = trackID
	s.metrics.SongProcessed(string(models.StatusSuccess), "")
	slog.Info("Song synced", "name", track.Name, "artist", track.Artist, "cloudId", trackID, "source", winner.TechnicalID)
	return run.result
}

func (s *SyncService) fail(run *songRun, step string, err error) models.SyncResult {
	stepErr := &StepError{Step: step, Err: err}
	kind := Kind(err)

	run.failed = true
	run.result.Status = models.StatusFailed
	run.result.FailedStep = step
	run.result.FailureKind = kind
	run.result.FailureReason = stepErr.Error()

	slog.Error("Song sync failed", "name", run.result.Track.Name, "step", step, "kind", kind, "error", err)
	models.Logf(run.sink, "Error processing %s (step: %s): %v", run.result.Track.Name, step, err)
	s.metrics.SongProcessed(string(models.StatusFailed), kind)
	return run.result
}

// cleanup removes the tagged file always, and the raw download unless the
// song succeeded and downloads are kept as a cache
func (s *SyncService) cleanup(run *songRun) {
	if run.tagged != "" && run.tagged != run.rawPath {
		removeIfExists(run.tagged)
	}
	if run.rawPath != "" && (run.failed || !s.opts.KeepDownloads) {
		removeIfExists(run.rawPath)
	}
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to remove temp file", "path", path, "error", err)
	}
}

// prefetch looks for the song on the intermediate catalog with substantial
// lyrics, preferring entries that agree with the target on live/studio.
// It returns the enriched track, the matched entry and its lyrics.
func (s *SyncService) prefetch(ctx context.Context, track models.CanonicalTrack, sink models.EventSink) (models.CanonicalTrack, models.CatalogTrack, string) {
	if s.lyrics == nil {
		return track, models.CatalogTrack{}, ""
	}

	models.Logf(sink, "[Strategy] Pre-fetching lyrics/info from the lyrics catalog...")
	results, err := s.lyrics.Search(ctx, joinQuery(track.Name, track.Artist), s.opts.CatalogSearchLimit)
	if err != nil {
		slog.Warn("Lyrics catalog pre-fetch failed", "name", track.Name, "error", err)
		return track, models.CatalogTrack{}, ""
	}

	threshold := config.GetMatchingConfig().Prefetch.NameSimilarity
	targetLive := scoring.IsLive(track.Name)
	var fallback *models.CatalogTrack

	for i := range results {
		entry := results[i]
		if !namesSimilar(track.Name, entry.Name, threshold) {
			continue
		}
		if scoring.IsLive(entry.Name) != targetLive {
			if fallback == nil {
				fallback = &results[i]
			}
			continue
		}
		if lyrics := s.substantialLyrics(ctx, entry.ID); lyrics != "" {
			models.Logf(sink, "[Strategy] Locked target via lyrics: %s", entry.Name)
			return s.enrichFrom(track, entry, sink), entry, lyrics
		}
	}

	if fallback != nil {
		if lyrics := s.substantialLyrics(ctx, fallback.ID); lyrics != "" {
			models.Logf(sink, "[Strategy] Using fallback target via lyrics: %s", fallback.Name)
			return s.enrichFrom(track, *fallback, sink), *fallback, lyrics
		}
	}

	models.Logf(sink, "[Strategy] No suitable lyrics catalog match found. Using original info.")
	return track, models.CatalogTrack{}, ""
}

func (s *SyncService) enrichFrom(track models.CanonicalTrack, entry models.CatalogTrack, sink models.EventSink) models.CanonicalTrack {
	enriched := track.Enrich(entry.DurationSeconds, entry.Album, entry.Artist)
	models.Logf(sink, "[Strategy] Updated info from lyrics catalog: Duration=%ds", enriched.DurationSeconds)
	return enriched
}

func (s *SyncService) substantialLyrics(ctx context.Context, id string) string {
	lyrics, err := s.lyrics.GetLyrics(ctx, id)
	if err != nil {
		slog.Warn("Lyrics lookup failed", "id", id, "error", err)
		return ""
	}
	if utf8.RuneCountInString(lyrics) > s.opts.MinLyricsLength {
		return lyrics
	}
	return ""
}

// primaryLyrics searches the primary catalog for lyrics, retrying with
// qualifier words when the first hit is short and keeping the longest
func (s *SyncService) primaryLyrics(ctx context.Context, cred *session.Credential, track models.CanonicalTrack, sink models.EventSink) string {
	models.Logf(sink, "[Lyrics] Searching primary catalog fallback...")
	query := joinQuery(track.Name, track.Artist)
	lyrics := s.firstHitLyrics(ctx, cred, query)

	if length := utf8.RuneCountInString(lyrics); length > 0 && length < s.opts.MinLyricsLength {
		models.Logf(sink, "[Lyrics] Lyrics short (%d), retrying with qualifiers...", length)
		for _, qualifier := range config.GetMatchingConfig().Prefetch.LyricsQualifiers {
			candidate := s.firstHitLyrics(ctx, cred, joinQuery(query, qualifier))
			if utf8.RuneCountInString(candidate) > utf8.RuneCountInString(lyrics) {
				lyrics = candidate
				models.Logf(sink, "[Lyrics] Found better lyrics (%d chars)", utf8.RuneCountInString(candidate))
				break
			}
		}
	}
	return lyrics
}

func (s *SyncService) firstHitLyrics(ctx context.Context, cred *session.Credential, query string) string {
	hits, err := s.primary.SearchTrack(ctx, cred, query, defaultSearchLimit)
	if err != nil || len(hits) == 0 {
		if err != nil {
			slog.Warn("Primary catalog lyric search failed", "query", query, "error", err)
		}
		return ""
	}
	lyrics, err := s.primary.GetLyrics(ctx, cred, hits[0].ID)
	if err != nil {
		slog.Warn("Primary catalog lyric lookup failed", "id", hits[0].ID, "error", err)
		return ""
	}
	return lyrics
}

// namesSimilar gates intermediate catalog hits: the core titles must
// contain one another or be close by edit distance, in either script
func namesSimilar(want, got string, threshold float64) bool {
	wantForms := normalize.Variants(normalize.StripParentheticals(want))
	gotForms := normalize.Variants(normalize.StripParentheticals(got))
	for _, a := range wantForms {
		for _, b := range gotForms {
			if strings.Contains(a, b) || strings.Contains(b, a) || nameSimilarity(a, b) >= threshold {
				return true
			}
		}
	}
	return false
}

// nameSimilarity is 1 minus the rune edit distance over the longer length
func nameSimilarity(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// ExtractUploadedTrackID pulls the new track id out of an upload response,
// trying the known field paths in priority order
func ExtractUploadedTrackID(body []byte) (string, error) {
	for _, path := range uploadIDPaths {
		v := gjson.GetBytes(body, path)
		if !v.Exists() {
			continue
		}
		switch v.Type {
		case gjson.Number:
			if v.Int() != 0 {
				return v.Raw, nil
			}
		case gjson.String:
			if v.String() != "" && v.String() != "0" {
				return v.String(), nil
			}
		}
	}
	return "", ErrUploadIDAmbiguous
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

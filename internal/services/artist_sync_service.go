package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"artistsync/internal/metrics"
	"artistsync/internal/models"
	"artistsync/internal/session"
)

const defaultBatchCount = 10

// SongProcessor runs one song through the sync pipeline
type SongProcessor interface {
	ProcessSong(ctx context.Context, cred *session.Credential, track models.CanonicalTrack, sink models.EventSink, opts ProcessOptions) models.SyncResult
}

// BatchRequest describes one batch run. Songs, when set, are processed as
// given; otherwise the artist's top tracks are loaded from the primary catalog.
type BatchRequest struct {
	ArtistID       string                  `json:"artistId"`
	ArtistName     string                  `json:"artistName"`
	Count          int                     `json:"count"`
	Songs          []models.CanonicalTrack `json:"songs"`
	CreatePlaylist bool                    `json:"createPlaylist"`
	PlaylistName   string                  `json:"playlistName"`
	SkipUpload     bool                    `json:"skipUpload"`
}

// BatchOptions bounds a batch run
type BatchOptions struct {
	// Timeout is the wall-clock deadline for the song loop; 0 disables it
	Timeout      time.Duration
	MaxBatchSize int
}

// ArtistSyncService drives a batch of songs through a SongProcessor and
// optionally collects the uploads into a new playlist
type ArtistSyncService struct {
	processor SongProcessor
	primary   PrimaryCatalog
	metrics   *metrics.Metrics
	opts      BatchOptions
	newRunID  func() string
}

// NewArtistSyncService creates the batch driver
func NewArtistSyncService(processor SongProcessor, primary PrimaryCatalog, m *metrics.Metrics, opts BatchOptions) *ArtistSyncService {
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 50
	}
	return &ArtistSyncService{
		processor: processor,
		primary:   primary,
		metrics:   m,
		opts:      opts,
		newRunID:  uuid.NewString,
	}
}

// Run processes every song of the batch in order. A failing song never stops
// the batch. The summary is always returned; when the song list cannot be
// loaded its Error is set and nothing is processed.
func (s *ArtistSyncService) Run(ctx context.Context, cred *session.Credential, req BatchRequest, sink models.EventSink) *models.BatchSummary {
	summary := models.NewBatchSummary(s.newRunID(), req.ArtistName)
	s.metrics.BatchStarted()
	logger := slog.With("runId", summary.RunID)

	defer func() {
		summary.Finish()
		logger.Info("Sync completed!", "artist", summary.Artist, "success", summary.Succeeded, "failed", summary.Failed, "skipped", summary.Skipped)
		models.Logf(sink, "Sync completed! Success: %d, Failed: %d", summary.Succeeded, summary.Failed)
		models.Summary(sink, summary)
	}()

	songs, artistName, err := s.loadSongs(ctx, cred, req)
	if err != nil {
		summary.Error = err.Error()
		logger.Error("Failed to load songs", "artistId", req.ArtistID, "error", err)
		models.Logf(sink, "Failed to load songs: %v", err)
		return summary
	}
	summary.Artist = artistName
	models.Logf(sink, "Processing %d songs for %s", len(songs), artistName)

	loopCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		loopCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	opts := ProcessOptions{SkipUpload: req.SkipUpload}
	for i, track := range songs {
		if err := loopCtx.Err(); err != nil {
			for _, rest := range songs[i:] {
				summary.Record(cancelledResult(rest, err))
			}
			models.Logf(sink, "Batch stopped: %v (%d songs not processed)", err, len(songs)-i)
			break
		}
		models.Logf(sink, "[%d/%d] %s", i+1, len(songs), track.Name)
		summary.Record(s.processor.ProcessSong(loopCtx, cred, track, sink, opts))
	}

	if req.CreatePlaylist && !req.SkipUpload && len(summary.UploadedTrackIDs) > 0 {
		s.createPlaylist(ctx, cred, req, summary, sink)
	}
	return summary
}

func (s *ArtistSyncService) loadSongs(ctx context.Context, cred *session.Credential, req BatchRequest) ([]models.CanonicalTrack, string, error) {
	artistName := req.ArtistName
	if len(req.Songs) > 0 {
		songs := req.Songs
		if len(songs) > s.opts.MaxBatchSize {
			songs = songs[:s.opts.MaxBatchSize]
		}
		return songs, artistName, nil
	}
	if req.ArtistID == "" {
		return nil, artistName, errors.New("either songs or an artist id is required")
	}

	if artistName == "" {
		artist, err := s.primary.GetArtistDetail(ctx, cred, req.ArtistID)
		if err != nil {
			return nil, artistName, err
		}
		artistName = artist.Name
	}

	top, err := s.primary.GetArtistTopTracks(ctx, cred, req.ArtistID)
	if err != nil {
		return nil, artistName, err
	}

	count := req.Count
	if count <= 0 {
		count = defaultBatchCount
	}
	if count > s.opts.MaxBatchSize {
		count = s.opts.MaxBatchSize
	}
	if count > len(top) {
		count = len(top)
	}

	songs := make([]models.CanonicalTrack, 0, count)
	for _, t := range top[:count] {
		songs = append(songs, t.ToCanonical())
	}
	return songs, artistName, nil
}

// createPlaylist runs on the caller's context so a batch that hit its own
// deadline still gets its playlist. Failures only produce a warning.
func (s *ArtistSyncService) createPlaylist(ctx context.Context, cred *session.Credential, req BatchRequest, summary *models.BatchSummary, sink models.EventSink) {
	name := req.PlaylistName
	if name == "" {
		name = fmt.Sprintf("%s Top %d", summary.Artist, summary.Succeeded)
	}
	trackIDs := PlaylistTrackOrder(summary.UploadedTrackIDs)
	models.Logf(sink, "Creating playlist: %s", name)

	playlistID, err := s.primary.CreatePlaylist(ctx, cred, name)
	if err == nil {
		summary.PlaylistID = playlistID
		summary.PlaylistName = name
		err = s.primary.AddTracksToPlaylist(ctx, cred, playlistID, trackIDs)
	}
	if err != nil {
		if !errors.Is(err, ErrPlaylistOperationFailed) {
			err = fmt.Errorf("%w: %w", ErrPlaylistOperationFailed, err)
		}
		summary.PlaylistWarning = err.Error()
		slog.Warn("Playlist creation failed", "runId", summary.RunID, "name", name, "error", err)
		models.Logf(sink, "Warning: %v", err)
		return
	}
	models.Logf(sink, "Playlist created with %d songs!", len(trackIDs))
}

// PlaylistTrackOrder reverses the upload order, so the first song synced
// ends up on top of the playlist, and drops repeated ids
func PlaylistTrackOrder(uploaded []string) []string {
	seen := make(map[string]bool, len(uploaded))
	ordered := make([]string, 0, len(uploaded))
	for i := len(uploaded) - 1; i >= 0; i-- {
		id := uploaded[i]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ordered = append(ordered, id)
	}
	return ordered
}

func cancelledResult(track models.CanonicalTrack, err error) models.SyncResult {
	return models.SyncResult{
		Track:         track,
		Status:        models.StatusFailed,
		FailureReason: fmt.Sprintf("not processed: %v", err),
		FailureKind:   Kind(err),
	}
}

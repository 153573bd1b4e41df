package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"artistsync/internal/app"
	"artistsync/internal/models"
	"artistsync/internal/services"
	"artistsync/internal/session"
)

type fakeBatch struct {
	summary *models.BatchSummary
	got     services.BatchRequest
}

func (f *fakeBatch) Run(_ context.Context, _ *session.Credential, req services.BatchRequest, sink models.EventSink) *models.BatchSummary {
	f.got = req
	models.Logf(sink, "Processing %s", "Blue")
	models.Summary(sink, f.summary)
	return f.summary
}

type resolverFunc func(ctx context.Context, track models.CanonicalTrack) (*services.Resolution, error)

func (f resolverFunc) Resolve(ctx context.Context, track models.CanonicalTrack) (*services.Resolution, error) {
	return f(ctx, track)
}

func TestRunSync(t *testing.T) {
	summary := models.NewBatchSummary("run-1", "Band")
	summary.Record(models.SyncResult{Status: models.StatusSuccess, UploadedTrackID: "5"})
	summary.Record(models.SyncResult{
		Track:         models.CanonicalTrack{Name: "Red"},
		Status:        models.StatusFailed,
		FailureKind:   "DownloadFailed",
		FailureReason: "download: download failed",
	})
	summary.PlaylistID = "900"
	summary.PlaylistName = "Band Top 1"

	batch := &fakeBatch{summary: summary}
	req := services.BatchRequest{ArtistID: "7", Count: 2, CreatePlaylist: true}
	var out bytes.Buffer

	err := runSync(context.Background(), &out, batch, session.NewCredential("MUSIC_U=x", time.Hour), req)
	require.NoError(t, err)

	assert.Equal(t, req, batch.got)
	assert.Contains(t, out.String(), "Processing Blue\n")
	assert.Contains(t, out.String(), "Run run-1: 1 succeeded, 1 failed, 0 skipped of 2")
	assert.Contains(t, out.String(), "FAILED Red [DownloadFailed] download: download failed")
	assert.Contains(t, out.String(), `Playlist "Band Top 1" created (900)`)
}

func TestRunSync_Errors(t *testing.T) {
	t.Run("no credential", func(t *testing.T) {
		batch := &fakeBatch{}
		err := runSync(context.Background(), &bytes.Buffer{}, batch, nil, services.BatchRequest{ArtistID: "7"})
		assert.ErrorIs(t, err, services.ErrNotAuthenticated)
		assert.Empty(t, batch.got.ArtistID)
	})

	t.Run("batch could not load songs", func(t *testing.T) {
		summary := models.NewBatchSummary("run-2", "")
		summary.Error = "failed to load top tracks"
		err := runSync(context.Background(), &bytes.Buffer{}, &fakeBatch{summary: summary},
			session.NewCredential("MUSIC_U=x", time.Hour), services.BatchRequest{ArtistID: "7"})
		assert.EqualError(t, err, "failed to load top tracks")
	})
}

func TestRunResolve(t *testing.T) {
	winner := models.ScoredCandidate{Candidate: models.Candidate{TechnicalID: "vid1", Title: "Blue (Official Audio)"}, Score: 87.5, Eligible: true}
	resolver := resolverFunc(func(_ context.Context, track models.CanonicalTrack) (*services.Resolution, error) {
		assert.Equal(t, "Blue", track.Name)
		return &services.Resolution{
			Track:  track,
			Winner: winner,
			Stage:  1,
			Query:  "Blue Artist A audio",
			Ranked: []models.ScoredCandidate{winner, {Candidate: models.Candidate{TechnicalID: "vid2", Title: "Blue Remix"}, Score: -40}},
		}, nil
	})

	var out bytes.Buffer
	require.NoError(t, runResolve(context.Background(), &out, resolver, models.CanonicalTrack{Name: "Blue", Artist: "Artist A"}))

	assert.Contains(t, out.String(), `Stage 1 ("Blue Artist A audio") accepted vid1: Blue (Official Audio) [score 87.5]`)
	assert.Contains(t, out.String(), "Blue Remix (vid2)")
}

func TestRunResolve_NoMatch(t *testing.T) {
	resolver := resolverFunc(func(context.Context, models.CanonicalTrack) (*services.Resolution, error) {
		return nil, fmt.Errorf("all stages exhausted: %w", services.ErrNoMatchFound)
	})

	var out bytes.Buffer
	err := runResolve(context.Background(), &out, resolver, models.CanonicalTrack{Name: "Obscure"})
	assert.ErrorIs(t, err, services.ErrNoMatchFound)
	assert.Contains(t, out.String(), `No acceptable source for "Obscure"`)
}

func TestRunSearch(t *testing.T) {
	source := new(services.MockAudioSource)
	source.On("Search", mock.Anything, "十年", 3).Return([]models.Candidate{
		{TechnicalID: "004Z8Ihr0JIu5s", Title: "十年", Uploader: "陈奕迅", DurationSeconds: 205},
	}, nil)
	source.On("Search", mock.Anything, "nothing", 3).Return(nil, nil)
	source.On("Search", mock.Anything, "broken", 3).Return(nil, errors.New("qq down"))

	var out bytes.Buffer
	require.NoError(t, runSearch(context.Background(), &out, source, "十年", 3))
	assert.Contains(t, out.String(), "004Z8Ihr0JIu5s")
	assert.Contains(t, out.String(), "205s")

	out.Reset()
	require.NoError(t, runSearch(context.Background(), &out, source, "nothing", 3))
	assert.Equal(t, "No results for \"nothing\"\n", out.String())

	assert.EqualError(t, runSearch(context.Background(), &out, source, "broken", 3), "qq down")
	source.AssertExpectations(t)
}

func TestSetupLogger(t *testing.T) {
	for _, format := range []string{"text", "logfmt", "json", ""} {
		logger, err := setupLogger("debug", format)
		require.NoError(t, err, format)
		assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug), format)
	}

	_, err := setupLogger("info", "xml")
	assert.ErrorContains(t, err, "unknown log format")

	_, err = setupLogger("loud", "text")
	assert.ErrorContains(t, err, "unknown log level")
}

func TestSyncCommand_RequiresArtist(t *testing.T) {
	called := false
	original := loadApp
	t.Cleanup(func() { loadApp = original })
	loadApp = func() (*app.App, error) {
		called = true
		return nil, errors.New("not reached")
	}

	cmd := cmdSync()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()

	assert.EqualError(t, err, "--artist-id is required")
	assert.False(t, called)
}

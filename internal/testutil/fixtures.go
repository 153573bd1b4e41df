package testutil

import (
	"time"

	"artistsync/internal/models"
	"artistsync/internal/session"
)

// TrackBuilder provides a fluent interface for creating test tracks
type TrackBuilder struct {
	track models.CanonicalTrack
}

// NewTrackBuilder creates a new track builder with default values
func NewTrackBuilder() *TrackBuilder {
	return &TrackBuilder{
		track: models.CanonicalTrack{Name: "Test Song", Artist: "Test Artist", DurationSeconds: 200},
	}
}

// WithName sets the track title
func (b *TrackBuilder) WithName(name string) *TrackBuilder {
	b.track.Name = name
	return b
}

// WithArtist sets the track artist
func (b *TrackBuilder) WithArtist(artist string) *TrackBuilder {
	b.track.Artist = artist
	return b
}

// WithAlbum sets the track album
func (b *TrackBuilder) WithAlbum(album string) *TrackBuilder {
	b.track.Album = album
	return b
}

// WithDuration sets the duration in seconds
func (b *TrackBuilder) WithDuration(seconds int) *TrackBuilder {
	b.track.DurationSeconds = seconds
	return b
}

// WithID sets the originating catalog id
func (b *TrackBuilder) WithID(id string) *TrackBuilder {
	b.track.SourceCatalogID = id
	return b
}

// Build returns the constructed track
func (b *TrackBuilder) Build() models.CanonicalTrack {
	return b.track
}

// Common test fixtures
var (
	// BlueTrack is a fully described target track
	BlueTrack = models.CanonicalTrack{
		Name:            "Blue",
		Artist:          "Artist A",
		Album:           "Colors",
		DurationSeconds: 200,
		SourceCatalogID: "1001",
	}

	// BlueCandidates pairs an official upload with a remix
	BlueCandidates = []models.Candidate{
		{
			CatalogRef:      models.ProviderVideoPlatform,
			TechnicalID:     "vid-official",
			Title:           "Blue - Artist A (Official Audio)",
			Uploader:        "Artist A",
			DurationSeconds: 202,
			Popularity:      5_000_000,
		},
		{
			CatalogRef:      models.ProviderVideoPlatform,
			TechnicalID:     "vid-remix",
			Title:           "Blue Remix",
			DurationSeconds: 190,
			Popularity:      100,
		},
	}
)

// SuccessResult is a successful sync of track
func SuccessResult(track models.CanonicalTrack, uploadedID string) models.SyncResult {
	return models.SyncResult{Track: track, Status: models.StatusSuccess, UploadedTrackID: uploadedID}
}

// FailedResult is a failed sync of track
func FailedResult(track models.CanonicalTrack, step, kind, reason string) models.SyncResult {
	return models.SyncResult{
		Track:         track,
		Status:        models.StatusFailed,
		FailedStep:    step,
		FailureKind:   kind,
		FailureReason: reason,
	}
}

// ValidCredential is a credential that stays valid for an hour
func ValidCredential() *session.Credential {
	return session.NewCredential("MUSIC_U=test-cookie", time.Hour)
}

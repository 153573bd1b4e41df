package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"artistsync/internal/models"
	"artistsync/internal/session"
	"artistsync/internal/tagging"
)

// MockAudioSource is a mock implementation of AudioSource for testing
type MockAudioSource struct {
	mock.Mock
	ProviderTag models.Provider
}

func (m *MockAudioSource) Provider() models.Provider {
	if m.ProviderTag == "" {
		return models.ProviderVideoPlatform
	}
	return m.ProviderTag
}

func (m *MockAudioSource) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Candidate), args.Error(1)
}

func (m *MockAudioSource) Download(ctx context.Context, candidate models.Candidate) (string, error) {
	args := m.Called(ctx, candidate)
	return args.String(0), args.Error(1)
}

// MockPrimaryCatalog is a mock implementation of PrimaryCatalog for testing
type MockPrimaryCatalog struct {
	mock.Mock
}

func (m *MockPrimaryCatalog) SearchArtist(ctx context.Context, cred *session.Credential, keyword string, limit int) ([]models.Artist, error) {
	args := m.Called(ctx, cred, keyword, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Artist), args.Error(1)
}

func (m *MockPrimaryCatalog) GetArtistDetail(ctx context.Context, cred *session.Credential, artistID string) (*models.Artist, error) {
	args := m.Called(ctx, cred, artistID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Artist), args.Error(1)
}

func (m *MockPrimaryCatalog) GetArtistTopTracks(ctx context.Context, cred *session.Credential, artistID string) ([]models.CatalogTrack, error) {
	args := m.Called(ctx, cred, artistID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CatalogTrack), args.Error(1)
}

func (m *MockPrimaryCatalog) SearchTrack(ctx context.Context, cred *session.Credential, query string, limit int) ([]models.CatalogTrack, error) {
	args := m.Called(ctx, cred, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CatalogTrack), args.Error(1)
}

func (m *MockPrimaryCatalog) GetLyrics(ctx context.Context, cred *session.Credential, trackID string) (string, error) {
	args := m.Called(ctx, cred, trackID)
	return args.String(0), args.Error(1)
}

func (m *MockPrimaryCatalog) UploadAudioFile(ctx context.Context, cred *session.Credential, localPath string) (*UploadResult, error) {
	args := m.Called(ctx, cred, localPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*UploadResult), args.Error(1)
}

func (m *MockPrimaryCatalog) CreatePlaylist(ctx context.Context, cred *session.Credential, name string) (string, error) {
	args := m.Called(ctx, cred, name)
	return args.String(0), args.Error(1)
}

func (m *MockPrimaryCatalog) AddTracksToPlaylist(ctx context.Context, cred *session.Credential, playlistID string, trackIDs []string) error {
	args := m.Called(ctx, cred, playlistID, trackIDs)
	return args.Error(0)
}

// MockLyricsCatalog is a mock implementation of LyricsCatalog for testing
type MockLyricsCatalog struct {
	mock.Mock
}

func (m *MockLyricsCatalog) Search(ctx context.Context, query string, limit int) ([]models.CatalogTrack, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CatalogTrack), args.Error(1)
}

func (m *MockLyricsCatalog) GetLyrics(ctx context.Context, trackID string) (string, error) {
	args := m.Called(ctx, trackID)
	return args.String(0), args.Error(1)
}

// MockEmbedder is a mock implementation of Embedder for testing
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, inputPath, outputPath string, meta tagging.Metadata) error {
	args := m.Called(ctx, inputPath, outputPath, meta)
	return args.Error(0)
}

// MockSongProcessor is a mock implementation of SongProcessor for testing
type MockSongProcessor struct {
	mock.Mock
}

func (m *MockSongProcessor) ProcessSong(ctx context.Context, cred *session.Credential, track models.CanonicalTrack, sink models.EventSink, opts ProcessOptions) models.SyncResult {
	args := m.Called(ctx, cred, track, sink, opts)
	return args.Get(0).(models.SyncResult)
}

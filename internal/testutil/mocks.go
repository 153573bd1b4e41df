package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"artistsync/internal/models"
	"artistsync/internal/services"
	"artistsync/internal/session"
)

// MockLoginProvider is a mock implementation of services.LoginProvider
type MockLoginProvider struct {
	mock.Mock
}

func (m *MockLoginProvider) LoginQRKey(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockLoginProvider) LoginQRCreate(ctx context.Context, key string) (*services.QRCode, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.QRCode), args.Error(1)
}

func (m *MockLoginProvider) LoginQRCheck(ctx context.Context, key string) (*services.QRCheckResult, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.QRCheckResult), args.Error(1)
}

func (m *MockLoginProvider) GetUserAccount(ctx context.Context, cred *session.Credential) (*services.UserAccount, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.UserAccount), args.Error(1)
}

// MockHotSongsCatalog is a mock of the intermediate catalog's hot-songs lookup
type MockHotSongsCatalog struct {
	mock.Mock
}

func (m *MockHotSongsCatalog) GetArtistHotSongs(ctx context.Context, artistName string, limit int) ([]models.CatalogTrack, error) {
	args := m.Called(ctx, artistName, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CatalogTrack), args.Error(1)
}

// MockBatchRunner is a mock batch driver. Events passed to EmitEvents are
// pushed into the sink before the summary is returned.
type MockBatchRunner struct {
	mock.Mock
	EmitEvents []models.LogEvent
}

func (m *MockBatchRunner) Run(ctx context.Context, cred *session.Credential, req services.BatchRequest, sink models.EventSink) *models.BatchSummary {
	args := m.Called(ctx, cred, req, sink)
	for _, event := range m.EmitEvents {
		sink.OnEvent(event)
	}
	summary, _ := args.Get(0).(*models.BatchSummary)
	if summary != nil {
		models.Summary(sink, summary)
	}
	return summary
}

// MockHealthChecker is a mock dependency health probe
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) Health(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

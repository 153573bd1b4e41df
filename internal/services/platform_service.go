package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"artistsync/internal/models"
	"artistsync/internal/session"
	"artistsync/internal/tagging"
)

// AudioSource is a catalog that can search for and download audio
type AudioSource interface {
	// Provider returns the tag this source is registered under
	Provider() models.Provider

	// Search returns up to limit candidates for a free-form query
	Search(ctx context.Context, query string, limit int) ([]models.Candidate, error)

	// Download fetches the candidate's audio to a local file and returns its path.
	// Candidate.TechnicalID identifies what to fetch.
	Download(ctx context.Context, candidate models.Candidate) (string, error)
}

// PrimaryCatalog is the streaming service the user syncs into.
// Calls other than public search and lyric lookups need a valid credential.
type PrimaryCatalog interface {
	SearchArtist(ctx context.Context, cred *session.Credential, keyword string, limit int) ([]models.Artist, error)
	GetArtistDetail(ctx context.Context, cred *session.Credential, artistID string) (*models.Artist, error)
	GetArtistTopTracks(ctx context.Context, cred *session.Credential, artistID string) ([]models.CatalogTrack, error)
	SearchTrack(ctx context.Context, cred *session.Credential, query string, limit int) ([]models.CatalogTrack, error)
	GetLyrics(ctx context.Context, cred *session.Credential, trackID string) (string, error)
	UploadAudioFile(ctx context.Context, cred *session.Credential, localPath string) (*UploadResult, error)
	CreatePlaylist(ctx context.Context, cred *session.Credential, name string) (string, error)
	AddTracksToPlaylist(ctx context.Context, cred *session.Credential, playlistID string, trackIDs []string) error
}

// LoginProvider runs the streaming service's QR login flow
type LoginProvider interface {
	LoginQRKey(ctx context.Context) (string, error)
	LoginQRCreate(ctx context.Context, key string) (*QRCode, error)
	LoginQRCheck(ctx context.Context, key string) (*QRCheckResult, error)
	GetUserAccount(ctx context.Context, cred *session.Credential) (*UserAccount, error)
}

// LyricsCatalog is the intermediate catalog used for lyrics and metadata
type LyricsCatalog interface {
	Search(ctx context.Context, query string, limit int) ([]models.CatalogTrack, error)
	GetLyrics(ctx context.Context, trackID string) (string, error)
}

// Embedder writes metadata into an audio file
type Embedder interface {
	Embed(ctx context.Context, inputPath, outputPath string, meta tagging.Metadata) error
}

// UploadResult is the raw response of a cloud upload. The new track's id
// lives under one of several field paths; see ExtractUploadedTrackID.
type UploadResult struct {
	Code int    `json:"code"`
	Body []byte `json:"-"`
}

// QRCode is a login QR code
type QRCode struct {
	Key   string `json:"key"`
	Image string `json:"qrimg"`
	URL   string `json:"qrurl,omitempty"`
}

// QR login states reported by the streaming service
const (
	QRStatusExpired   = 800
	QRStatusWaiting   = 801
	QRStatusScanned   = 802
	QRStatusConfirmed = 803
)

// QRCheckResult is one poll of the QR login state.
// Cookie is only set once the login is confirmed.
type QRCheckResult struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Cookie  string `json:"cookie,omitempty"`
}

// UserAccount is the logged-in user's profile
type UserAccount struct {
	UserID    string `json:"userId"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	VIPType   int    `json:"vipType,omitempty"`
}

// SourceRegistry maps provider tags to audio sources
type SourceRegistry struct {
	sources map[models.Provider]AudioSource
	mu      sync.RWMutex
}

// NewSourceRegistry creates a registry holding the given sources
func NewSourceRegistry(sources ...AudioSource) *SourceRegistry {
	r := &SourceRegistry{sources: make(map[models.Provider]AudioSource)}
	for _, s := range sources {
		r.Register(s)
	}
	return r
}

// Register adds a source, replacing any source with the same provider tag
func (r *SourceRegistry) Register(source AudioSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.Provider()] = source
}

// Get returns the source registered for provider
func (r *SourceRegistry) Get(provider models.Provider) (AudioSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	source, ok := r.sources[provider]
	if !ok {
		return nil, fmt.Errorf("no audio source registered for %q", provider)
	}
	return source, nil
}

// Providers lists the registered provider tags in sorted order
func (r *SourceRegistry) Providers() []models.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	providers := make([]models.Provider, 0, len(r.sources))
	for p := range r.sources {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers
}

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"artistsync/internal/handlers/render"
	"artistsync/internal/models"
	"artistsync/internal/services"
	"artistsync/internal/session"
)

const (
	artistSearchLimit = 10
	defaultTopSongs   = 10
)

// HotSongsCatalog lists an artist's popular songs by name
type HotSongsCatalog interface {
	GetArtistHotSongs(ctx context.Context, artistName string, limit int) ([]models.CatalogTrack, error)
}

// BatchRunner runs an artist sync batch
type BatchRunner interface {
	Run(ctx context.Context, cred *session.Credential, req services.BatchRequest, sink models.EventSink) *models.BatchSummary
}

// ArtistHandler handles artist lookup and batch sync requests
type ArtistHandler struct {
	primary      services.PrimaryCatalog
	hotSongs     HotSongsCatalog
	batch        BatchRunner
	maxBatchSize int
}

// NewArtistHandler creates a new artist handler; hotSongs may be nil
func NewArtistHandler(primary services.PrimaryCatalog, hotSongs HotSongsCatalog, batch BatchRunner, maxBatchSize int) *ArtistHandler {
	if maxBatchSize <= 0 {
		maxBatchSize = 50
	}
	return &ArtistHandler{primary: primary, hotSongs: hotSongs, batch: batch, maxBatchSize: maxBatchSize}
}

// TopSongsResponse lists an artist's songs and which catalog supplied them
type TopSongsResponse struct {
	Artist *models.Artist         `json:"artist"`
	Songs  []models.CatalogTrack `json:"songs"`
	Source string                `json:"source"`
}

// SearchArtists handles GET /api/artist/search?q=
func (h *ArtistHandler) SearchArtists(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		render.BadRequest(c, "Query parameter 'q' is required", nil)
		return
	}

	artists, err := h.primary.SearchArtist(c.Request.Context(), credentialFrom(c), query, artistSearchLimit)
	if err != nil {
		render.ServiceError(c, "Artist search failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"artists": artists})
}

// TopSongs handles GET /api/artist/top-songs?id=&limit=
func (h *ArtistHandler) TopSongs(c *gin.Context) {
	artistID := c.Query("id")
	if artistID == "" {
		render.BadRequest(c, "Query parameter 'id' is required", nil)
		return
	}
	limit := defaultTopSongs
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			render.BadRequest(c, "Query parameter 'limit' must be a positive integer", err)
			return
		}
		limit = min(n, h.maxBatchSize)
	}

	ctx := c.Request.Context()
	cred := credentialFrom(c)
	artist, err := h.primary.GetArtistDetail(ctx, cred, artistID)
	if err != nil {
		render.ServiceError(c, "Failed to load artist", err)
		return
	}

	resp := TopSongsResponse{Artist: artist, Source: services.LyricsFromIntermediate}
	if h.hotSongs != nil {
		resp.Songs, err = h.hotSongs.GetArtistHotSongs(ctx, artist.Name, limit)
		if err != nil {
			resp.Songs = nil
		}
	}

	// The lyrics catalog knows nothing about this artist; use the primary catalog's own list
	if len(resp.Songs) == 0 {
		top, err := h.primary.GetArtistTopTracks(ctx, cred, artistID)
		if err != nil {
			render.ServiceError(c, "Failed to load top songs", err)
			return
		}
		if len(top) > limit {
			top = top[:limit]
		}
		resp.Songs = top
		resp.Source = services.LyricsFromPrimary
	}
	c.JSON(http.StatusOK, resp)
}

// SyncArtist handles POST /api/artist/sync. Progress streams back as NDJSON
// and ends with a summary event.
func (h *ArtistHandler) SyncArtist(c *gin.Context) {
	var req services.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		render.BadRequest(c, "Invalid request body", err)
		return
	}
	if req.ArtistID == "" && len(req.Songs) == 0 {
		render.BadRequest(c, "Either 'artistId' or 'songs' is required", nil)
		return
	}
	for _, song := range req.Songs {
		if err := song.Validate(); err != nil {
			render.BadRequest(c, "Invalid song in request", err)
			return
		}
	}

	cred := credentialFrom(c)
	// Dry runs of an explicit song list never touch the account
	needsLogin := !req.SkipUpload || len(req.Songs) == 0
	if err := cred.Validate(time.Now()); needsLogin && err != nil {
		render.Unauthorized(c, "Login required")
		return
	}

	sink := render.NewNDJSONSink(c)
	h.batch.Run(c.Request.Context(), cred, req, sink)
}

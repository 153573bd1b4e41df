package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"artistsync/internal/handlers/render"
	"artistsync/internal/models"
	"artistsync/internal/services"
)

const defaultSongSearchLimit = 10

// SyncSongRequest is the body of POST /api/sync
type SyncSongRequest struct {
	Track      models.CanonicalTrack `json:"track"`
	SkipUpload bool                  `json:"skipUpload"`
}

// SyncSongResponse carries the song's outcome and the progress log
type SyncSongResponse struct {
	Result models.SyncResult `json:"result"`
	Logs   []string          `json:"logs"`
}

// SongHandler handles single-song search and sync requests
type SongHandler struct {
	catalog   services.AudioSource
	processor services.SongProcessor
}

// NewSongHandler creates a new song handler
func NewSongHandler(catalog services.AudioSource, processor services.SongProcessor) *SongHandler {
	return &SongHandler{catalog: catalog, processor: processor}
}

// Search handles GET /api/search?q=&limit=
func (h *SongHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		render.BadRequest(c, "Query parameter 'q' is required", nil)
		return
	}
	limit := defaultSongSearchLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	candidates, err := h.catalog.Search(c.Request.Context(), query, limit)
	if err != nil {
		render.ServiceError(c, "Search failed", err)
		return
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	c.JSON(http.StatusOK, gin.H{"results": candidates, "provider": h.catalog.Provider()})
}

// Sync handles POST /api/sync. The result is always 200; a failed song is
// reported through its status and failure kind.
func (h *SongHandler) Sync(c *gin.Context) {
	var req SyncSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		render.BadRequest(c, "Invalid request body", err)
		return
	}
	if err := req.Track.Validate(); err != nil {
		render.BadRequest(c, "Invalid track", err)
		return
	}

	sink := &render.CollectingSink{}
	result := h.processor.ProcessSong(c.Request.Context(), credentialFrom(c), req.Track, sink,
		services.ProcessOptions{SkipUpload: req.SkipUpload})

	slog.Info("Single song sync finished", "song", req.Track.Name, "status", result.Status, "kind", result.FailureKind)
	logs := sink.Messages
	if logs == nil {
		logs = []string{}
	}
	c.JSON(http.StatusOK, SyncSongResponse{Result: result, Logs: logs})
}

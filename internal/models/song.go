package models

import (
	"errors"
	"strings"
)

// Provider tags the catalog that produced a candidate
type Provider string

const (
	// ProviderVideoPlatform is the video platform searched through yt-dlp
	ProviderVideoPlatform Provider = "video_platform"
	// ProviderStreamingCatalog is the intermediate streaming catalog
	ProviderStreamingCatalog Provider = "streaming_catalog"
)

// ErrMissingName is returned when a track has no title
var ErrMissingName = errors.New("track name is required")

// CanonicalTrack is the song to be resolved, as described by the originating catalog
type CanonicalTrack struct {
	Name            string `json:"name" binding:"required"`
	Artist          string `json:"artist"`
	Album           string `json:"album,omitempty"`
	DurationSeconds int    `json:"duration,omitempty"` // 0 means unknown
	CoverURL        string `json:"coverUrl,omitempty"`
	SourceCatalogID string `json:"id,omitempty"`
}

// Validate checks the fields a resolution attempt cannot do without
func (t CanonicalTrack) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrMissingName
	}
	return nil
}

// Enrich returns a copy of the track with the non-empty values applied.
// The receiver is never modified.
func (t CanonicalTrack) Enrich(durationSeconds int, album, artist string) CanonicalTrack {
	enriched := t
	if durationSeconds > 0 {
		enriched.DurationSeconds = durationSeconds
	}
	if album != "" {
		enriched.Album = album
	}
	if artist != "" {
		enriched.Artist = artist
	}
	return enriched
}

// Candidate is one search hit returned by a download-capable catalog
type Candidate struct {
	Title           string   `json:"title"`
	Uploader        string   `json:"uploader,omitempty"`
	DurationSeconds int      `json:"duration,omitempty"`
	Popularity      int64    `json:"popularity,omitempty"` // view count, 0 = unranked
	TechnicalID     string   `json:"technicalId"`
	CatalogRef      Provider `json:"catalogRef"`
	Album           string   `json:"album,omitempty"`
	CoverURL        string   `json:"coverUrl,omitempty"`
}

// ScoreBreakdown records every additive term of a match score
type ScoreBreakdown struct {
	Containment  float64 `json:"containment"`
	Exact        float64 `json:"exact"`
	Artist       float64 `json:"artist"`
	Live         float64 `json:"live"`
	Remix        float64 `json:"remix"`
	Instrumental float64 `json:"instrumental"`
	Medley       float64 `json:"medley"`
	Preview      float64 `json:"preview"`
	Duration     float64 `json:"duration"`
	TitleLength  float64 `json:"titleLength"`
	Popularity   float64 `json:"popularity"`
	Override     bool    `json:"override,omitempty"`
	Total        float64 `json:"total"`
}

// ScoredCandidate is a candidate with its computed score.
// Eligible is false when the name-containment precondition failed and
// no popularity override applied; Score is then negative infinity.
type ScoredCandidate struct {
	Candidate
	Score     float64        `json:"score"`
	Eligible  bool           `json:"eligible"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// Artist is a primary-catalog artist search hit
type Artist struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PicURL    string `json:"picUrl,omitempty"`
	AlbumSize int    `json:"albumSize,omitempty"`
	MusicSize int    `json:"musicSize,omitempty"`
}

// CatalogTrack is a track as listed by a catalog that can serve lyrics
type CatalogTrack struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Artist          string `json:"artist"`
	Album           string `json:"album,omitempty"`
	DurationSeconds int    `json:"duration,omitempty"`
	CoverURL        string `json:"coverUrl,omitempty"`
}

// ToCanonical converts a catalog listing into a resolvable track
func (c CatalogTrack) ToCanonical() CanonicalTrack {
	return CanonicalTrack{
		Name:            c.Name,
		Artist:          c.Artist,
		Album:           c.Album,
		DurationSeconds: c.DurationSeconds,
		CoverURL:        c.CoverURL,
		SourceCatalogID: c.ID,
	}
}

// JoinArtists joins artist names with the separator the catalogs display
func JoinArtists(names []string) string {
	filtered := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			filtered = append(filtered, n)
		}
	}
	return strings.Join(filtered, "/")
}

package services

import (
	"context"
	"fmt"

	"artistsync/internal/config"
	"artistsync/internal/models"
	"artistsync/internal/scoring"
)

// StreamingCatalogSource lists tracks from the intermediate catalog and
// fetches their audio from the video platform, since the catalog itself
// serves no downloadable files.
type StreamingCatalogSource struct {
	catalog LyricsCatalog
	video   AudioSource
	scorer  *scoring.MatchScorer
	limit   int
}

// NewStreamingCatalogSource creates the proxying source
func NewStreamingCatalogSource(catalog LyricsCatalog, video AudioSource, scorer *scoring.MatchScorer, limit int) *StreamingCatalogSource {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return &StreamingCatalogSource{catalog: catalog, video: video, scorer: scorer, limit: limit}
}

// Provider implements AudioSource
func (s *StreamingCatalogSource) Provider() models.Provider {
	return models.ProviderStreamingCatalog
}

// Search lists catalog entries as candidates. TechnicalID is the catalog id.
func (s *StreamingCatalogSource) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	tracks, err := s.catalog.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	candidates := make([]models.Candidate, 0, len(tracks))
	for _, t := range tracks {
		candidates = append(candidates, models.Candidate{
			Title:           t.Name,
			Uploader:        t.Artist,
			DurationSeconds: t.DurationSeconds,
			TechnicalID:     t.ID,
			CatalogRef:      models.ProviderStreamingCatalog,
			Album:           t.Album,
			CoverURL:        t.CoverURL,
		})
	}
	return candidates, nil
}

// Download finds the entry on the video platform and downloads the best
// accepted match
func (s *StreamingCatalogSource) Download(ctx context.Context, candidate models.Candidate) (string, error) {
	target := models.CanonicalTrack{
		Name:            candidate.Title,
		Artist:          candidate.Uploader,
		Album:           candidate.Album,
		DurationSeconds: candidate.DurationSeconds,
		SourceCatalogID: candidate.TechnicalID,
	}
	ladder := config.GetMatchingConfig().Ladder

	found, err := s.video.Search(ctx, joinQuery(target.Name, target.Artist, ladder.StudioQualifier), s.limit)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	winner, ok := scoring.Accept(s.scorer.Rank(target, found), ladder.MinAcceptScore)
	if !ok {
		return "", fmt.Errorf("%w: %w for %q on the video platform", ErrDownloadFailed, ErrNoMatchFound, target.Name)
	}
	return s.video.Download(ctx, winner.Candidate)
}

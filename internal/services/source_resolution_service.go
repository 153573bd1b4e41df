package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"artistsync/internal/config"
	"artistsync/internal/metrics"
	"artistsync/internal/models"
	"artistsync/internal/normalize"
	"artistsync/internal/scoring"
)

const defaultSearchLimit = 5

// QueryStage is one step of the query ladder
type QueryStage struct {
	Name string
	// Query builds the search string; "" means the stage does not apply
	Query func(track models.CanonicalTrack, ladder config.LadderConfig) string
}

// DefaultStages returns the ladder from the most specific query to the loosest
func DefaultStages() []QueryStage {
	return []QueryStage{
		{Name: "full", Query: fullQuery},
		{Name: "name_artist", Query: func(t models.CanonicalTrack, _ config.LadderConfig) string {
			return joinQuery(t.Name, t.Artist)
		}},
		{Name: "script_variant", Query: scriptVariantQuery},
		{Name: "name_only", Query: func(t models.CanonicalTrack, _ config.LadderConfig) string {
			return joinQuery(t.Name)
		}},
	}
}

// fullQuery is name, artist, the album when it differs from the name, and a
// qualifier for live or studio intent
func fullQuery(t models.CanonicalTrack, ladder config.LadderConfig) string {
	album := ""
	if t.Album != "" && normalize.Normalize(t.Album) != normalize.Normalize(t.Name) {
		album = t.Album
	}
	qualifier := ladder.StudioQualifier
	if scoring.IsLive(t.Name) {
		qualifier = ladder.LiveQualifier
	}
	return joinQuery(t.Name, t.Artist, album, qualifier)
}

// scriptVariantQuery applies only when conversion changes the text
func scriptVariantQuery(t models.CanonicalTrack, _ config.LadderConfig) string {
	original := joinQuery(t.Name, t.Artist)
	converted := joinQuery(normalize.ToScriptVariant(t.Name), normalize.ToScriptVariant(t.Artist))
	if converted == original {
		return ""
	}
	return converted
}

func joinQuery(parts ...string) string {
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// Resolution is the outcome of a successful ladder run
type Resolution struct {
	Track     models.CanonicalTrack    `json:"track"`
	Winner    models.ScoredCandidate   `json:"winner"`
	Stage     int                      `json:"stage"`
	StageName string                   `json:"stageName"`
	Query     string                   `json:"query"`
	Ranked    []models.ScoredCandidate `json:"ranked"`
}

// SourceResolutionService runs the query ladder against one audio source
type SourceResolutionService struct {
	scorer   *scoring.MatchScorer
	registry *SourceRegistry
	provider models.Provider
	stages   []QueryStage
	limit    int
	metrics  *metrics.Metrics
}

// NewSourceResolutionService creates a resolver searching the video platform
func NewSourceResolutionService(scorer *scoring.MatchScorer, registry *SourceRegistry) *SourceResolutionService {
	return &SourceResolutionService{
		scorer:   scorer,
		registry: registry,
		provider: models.ProviderVideoPlatform,
		stages:   DefaultStages(),
		limit:    defaultSearchLimit,
	}
}

// WithSearchLimit sets how many candidates each stage asks for
func (s *SourceResolutionService) WithSearchLimit(limit int) *SourceResolutionService {
	if limit > 0 {
		s.limit = limit
	}
	return s
}

// WithMetrics records stage outcomes to m
func (s *SourceResolutionService) WithMetrics(m *metrics.Metrics) *SourceResolutionService {
	s.metrics = m
	return s
}

// WithProvider resolves against a different registered source
func (s *SourceResolutionService) WithProvider(p models.Provider) *SourceResolutionService {
	s.provider = p
	return s
}

// Source returns the audio source the ladder searches
func (s *SourceResolutionService) Source() (AudioSource, error) {
	return s.registry.Get(s.provider)
}

// Resolve tries each stage in order and returns the first accepted
// candidate. Later stages never run once one accepts. Search errors count
// as a stage with no candidates.
func (s *SourceResolutionService) Resolve(ctx context.Context, track models.CanonicalTrack) (*Resolution, error) {
	if err := track.Validate(); err != nil {
		return nil, err
	}
	source, err := s.Source()
	if err != nil {
		return nil, err
	}

	ladder := config.GetMatchingConfig().Ladder
	tried := make(map[string]bool, len(s.stages))

	for i, stage := range s.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stageNum := strconv.Itoa(i + 1)

		query := stage.Query(track, ladder)
		if query == "" || tried[query] {
			s.metrics.LadderStage(stageNum, "skipped")
			continue
		}
		tried[query] = true

		candidates, err := source.Search(ctx, query, s.limit)
		if err != nil {
			slog.Warn("Ladder stage search failed", "stage", i+1, "name", stage.Name, "query", query, "error", err)
			candidates = nil
		}

		ranked := s.scorer.Rank(track, candidates)
		winner, ok := scoring.Accept(ranked, ladder.MinAcceptScore)
		if !ok {
			slog.Debug("Ladder stage found no acceptable candidate", "stage", i+1, "query", query, "candidates", len(candidates))
			s.metrics.LadderStage(stageNum, "rejected")
			continue
		}

		s.metrics.LadderStage(stageNum, "accepted")
		slog.Info("Resolved source",
			"track", track.Name,
			"stage", i+1,
			"query", query,
			"title", winner.Title,
			"id", winner.TechnicalID,
			"score", winner.Score)
		return &Resolution{
			Track:     track,
			Winner:    winner,
			Stage:     i + 1,
			StageName: stage.Name,
			Query:     query,
			Ranked:    ranked,
		}, nil
	}

	return nil, fmt.Errorf("%w for %q by %q", ErrNoMatchFound, track.Name, track.Artist)
}

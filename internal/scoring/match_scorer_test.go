package scoring

import (
	"math"
	"testing"

	"artistsync/internal/config"
	"artistsync/internal/models"
	"artistsync/internal/normalize"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScorer() *MatchScorer {
	return NewMatchScorer(config.DefaultMatchingWeights())
}

func TestMatchScorer_ExactMatchScenario(t *testing.T) {
	scorer := newTestScorer()
	target := models.CanonicalTrack{Name: "Blue", Artist: "Artist A", DurationSeconds: 200}
	candidates := []models.Candidate{
		{Title: "Blue - Artist A (Official Audio)", Uploader: "Artist A", DurationSeconds: 202, Popularity: 5_000_000, TechnicalID: "vid-official"},
		{Title: "Blue Remix", DurationSeconds: 190, Popularity: 100, TechnicalID: "vid-remix"},
	}

	ranked := scorer.Rank(target, candidates)
	best, accepted := Accept(ranked, 0)

	require.True(t, accepted)
	assert.Equal(t, "vid-official", best.TechnicalID)
	assert.Greater(t, best.Breakdown.Artist, 0.0)
	assert.Greater(t, best.Breakdown.Duration, 0.0)
	assert.Zero(t, best.Breakdown.Remix)
	assert.Less(t, ranked[1].Breakdown.Remix, 0.0)
}

func TestMatchScorer_LiveFilteringScenario(t *testing.T) {
	scorer := newTestScorer()
	target := models.CanonicalTrack{Name: "Concert Live 2019", DurationSeconds: 240}
	liveCandidate := models.Candidate{Title: "Song Live", DurationSeconds: 238}
	studioCandidate := models.Candidate{Title: "Song (Studio)", DurationSeconds: 241}

	a := scorer.Score(target, liveCandidate)
	b := scorer.Score(target, studioCandidate)

	assert.Greater(t, a.Breakdown.Live, 0.0)
	assert.Less(t, b.Breakdown.Live, 0.0)
	assert.Greater(t, a.Breakdown.Total, b.Breakdown.Total)

	// With the popularity override both become eligible and the order holds
	liveCandidate.Popularity = 20_000_000
	studioCandidate.Popularity = 20_000_000
	a = scorer.Score(target, liveCandidate)
	b = scorer.Score(target, studioCandidate)
	require.True(t, a.Eligible)
	require.True(t, b.Eligible)
	assert.Greater(t, a.Score, b.Score)
}

func TestMatchScorer_ContainmentPrecondition(t *testing.T) {
	scorer := newTestScorer()
	names := []string{"Blue", "后来", "後來", "十年", "Love Story", "Blue (feat. X)"}
	titles := []string{
		"Blue", "Blue (Live)", "Bleu", "后来 - 刘若英", "後來 (Live)", "十年 陈奕迅",
		"Love Story (Taylor's Version)", "Story of Love", "Blue (feat. X) Official",
	}
	popularity := []int64{0, 1_000, 50_000_000}

	for _, name := range names {
		for _, title := range titles {
			for _, pop := range popularity {
				target := models.CanonicalTrack{Name: name}
				c := models.Candidate{Title: title, Popularity: pop}
				scored := scorer.Score(target, c)
				if !scored.Eligible {
					assert.True(t, math.IsInf(scored.Score, -1))
					continue
				}
				contains := false
				for _, tf := range normalize.Variants(title) {
					for _, nf := range normalize.Variants(name) {
						if nf != "" && containsAny([]string{tf}, []string{nf}) {
							contains = true
						}
					}
				}
				override := pop >= config.DefaultMatchingWeights().PopularityOverride
				assert.True(t, contains || override, "name %q title %q pop %d", name, title, pop)
			}
		}
	}
}

func TestMatchScorer_ScriptVariantContainment(t *testing.T) {
	scorer := newTestScorer()
	target := models.CanonicalTrack{Name: "后来", Artist: "刘若英"}

	scored := scorer.Score(target, models.Candidate{Title: "劉若英 - 後來", Uploader: "Rene Liu"})

	assert.True(t, scored.Eligible)
	assert.Greater(t, scored.Breakdown.Containment, 0.0)
	assert.Greater(t, scored.Breakdown.Artist, 0.0)
}

func TestMatchScorer_RejectsWithoutContainment(t *testing.T) {
	scorer := newTestScorer()
	target := models.CanonicalTrack{Name: "Blue", Artist: "Artist A"}

	scored := scorer.Score(target, models.Candidate{Title: "Completely Different", Uploader: "Artist A", Popularity: 1_000})

	assert.False(t, scored.Eligible)
	assert.True(t, math.IsInf(scored.Score, -1))
	assert.False(t, scored.Breakdown.Override)
}

func TestMatchScorer_PopularityOverride(t *testing.T) {
	scorer := newTestScorer()
	target := models.CanonicalTrack{Name: "Blue", Artist: "Artist A"}

	scored := scorer.Score(target, models.Candidate{Title: "Artist A - Official MV", Popularity: 80_000_000})

	assert.True(t, scored.Eligible)
	assert.True(t, scored.Breakdown.Override)
	assert.Zero(t, scored.Breakdown.Containment)
}

func TestMatchScorer_RemixMonotonicity(t *testing.T) {
	scorer := newTestScorer()
	targets := []models.CanonicalTrack{
		{Name: "Blue", Artist: "Artist A", DurationSeconds: 200},
		{Name: "后来", Artist: "刘若英"},
	}
	for _, target := range targets {
		plain := models.Candidate{Title: target.Name + " Rexim", Uploader: "x", DurationSeconds: 201, Popularity: 1_000}
		remix := models.Candidate{Title: target.Name + " Remix", Uploader: "x", DurationSeconds: 201, Popularity: 1_000}

		plainScore := scorer.Score(target, plain)
		remixScore := scorer.Score(target, remix)

		require.True(t, plainScore.Eligible)
		require.True(t, remixScore.Eligible)
		assert.Less(t, remixScore.Score, plainScore.Score, "target %q", target.Name)
	}
}

func TestMatchScorer_RemixRequestedIsNotPenalised(t *testing.T) {
	scorer := newTestScorer()
	target := models.CanonicalTrack{Name: "Blue Remix"}

	scored := scorer.Score(target, models.Candidate{Title: "Blue Remix"})

	assert.Zero(t, scored.Breakdown.Remix)
	assert.Greater(t, scored.Breakdown.Exact, 0.0)
}

func TestMatchScorer_CategoryPenalties(t *testing.T) {
	scorer := newTestScorer()
	target := models.CanonicalTrack{Name: "Blue"}

	testCases := []struct {
		title string
		field func(models.ScoreBreakdown) float64
	}{
		{title: "Blue (Instrumental)", field: func(b models.ScoreBreakdown) float64 { return b.Instrumental }},
		{title: "Blue 伴奏", field: func(b models.ScoreBreakdown) float64 { return b.Instrumental }},
		{title: "Blue Medley", field: func(b models.ScoreBreakdown) float64 { return b.Medley }},
		{title: "Blue 串烧", field: func(b models.ScoreBreakdown) float64 { return b.Medley }},
		{title: "Blue (Preview)", field: func(b models.ScoreBreakdown) float64 { return b.Preview }},
		{title: "Blue 试听", field: func(b models.ScoreBreakdown) float64 { return b.Preview }},
	}
	for _, tc := range testCases {
		t.Run(tc.title, func(t *testing.T) {
			scored := scorer.Score(target, models.Candidate{Title: tc.title})
			assert.Less(t, tc.field(scored.Breakdown), 0.0)
		})
	}
}

func TestMatchScorer_DurationOrdering(t *testing.T) {
	scorer := newTestScorer()
	const d = 240
	target := models.CanonicalTrack{Name: "Blue", Artist: "Artist A", DurationSeconds: d}

	score := func(duration int) float64 {
		return scorer.Score(target, models.Candidate{Title: "Blue", Uploader: "Artist A", DurationSeconds: duration}).Score
	}

	near := []int{d, d - 10, d + 10, d + 3}
	medium := []int{d + 61, d - 100, d + 180}
	far := []int{d + 181, d - 230, d + 600}

	for _, c := range near {
		for _, m := range medium {
			assert.Greater(t, score(c), score(m), "near %d vs medium %d", c, m)
		}
	}
	for _, m := range medium {
		for _, f := range far {
			assert.Greater(t, score(m), score(f), "medium %d vs far %d", m, f)
		}
	}
}

func TestMatchScorer_UnknownDurationIgnored(t *testing.T) {
	scorer := newTestScorer()

	scored := scorer.Score(models.CanonicalTrack{Name: "Blue"}, models.Candidate{Title: "Blue", DurationSeconds: 999})
	assert.Zero(t, scored.Breakdown.Duration)

	scored = scorer.Score(models.CanonicalTrack{Name: "Blue", DurationSeconds: 200}, models.Candidate{Title: "Blue"})
	assert.Zero(t, scored.Breakdown.Duration)
}

func TestMatchScorer_TitleLengthPenalty(t *testing.T) {
	scorer := newTestScorer()
	target := models.CanonicalTrack{Name: "Blue", Artist: "Artist A"}

	short := scorer.Score(target, models.Candidate{Title: "Blue - Artist A (Official Video)"})
	long := scorer.Score(target, models.Candidate{Title: "Blue and twelve other greatest hits"})

	assert.Zero(t, short.Breakdown.TitleLength)
	assert.Less(t, long.Breakdown.TitleLength, 0.0)
	assert.GreaterOrEqual(t, long.Breakdown.TitleLength, -config.DefaultMatchingWeights().TitleLengthCap)
}

func TestMatchScorer_PopularityCapped(t *testing.T) {
	scorer := newTestScorer()
	target := models.CanonicalTrack{Name: "Blue"}
	w := config.DefaultMatchingWeights()

	small := scorer.Score(target, models.Candidate{Title: "Blue", Popularity: 10})
	huge := scorer.Score(target, models.Candidate{Title: "Blue", Popularity: 1e15})
	none := scorer.Score(target, models.Candidate{Title: "Blue"})

	assert.InDelta(t, w.PopularityLogWeight, small.Breakdown.Popularity, 1e-9)
	assert.Equal(t, w.PopularityCap, huge.Breakdown.Popularity)
	assert.Zero(t, none.Breakdown.Popularity)
}

func TestMatchScorer_ExactMatchIgnoresParentheticals(t *testing.T) {
	scorer := newTestScorer()
	target := models.CanonicalTrack{Name: "Blue"}

	scored := scorer.Score(target, models.Candidate{Title: "Blue (feat. Someone)"})

	assert.Greater(t, scored.Breakdown.Exact, 0.0)
}

func TestMatchScorer_MultipleArtists(t *testing.T) {
	scorer := newTestScorer()
	target := models.CanonicalTrack{Name: "Blue", Artist: "Artist A/Artist B"}

	scored := scorer.Score(target, models.Candidate{Title: "Blue", Uploader: "Artist B Official"})

	assert.Greater(t, scored.Breakdown.Artist, 0.0)
}

func TestAccept(t *testing.T) {
	t.Run("empty stage", func(t *testing.T) {
		_, ok := Accept(nil, 0)
		assert.False(t, ok)
	})

	t.Run("only negative scores", func(t *testing.T) {
		ranked := []models.ScoredCandidate{{Score: -5, Eligible: true}, {Score: -20, Eligible: true}}
		_, ok := Accept(ranked, 0)
		assert.False(t, ok)
	})

	t.Run("zero is not strictly positive", func(t *testing.T) {
		_, ok := Accept([]models.ScoredCandidate{{Score: 0, Eligible: true}}, 0)
		assert.False(t, ok)
	})

	t.Run("ineligible top", func(t *testing.T) {
		_, ok := Accept([]models.ScoredCandidate{{Score: math.Inf(-1)}}, 0)
		assert.False(t, ok)
	})

	t.Run("positive maximum", func(t *testing.T) {
		best, ok := Accept([]models.ScoredCandidate{{Score: 12, Eligible: true}, {Score: 3, Eligible: true}}, 0)
		assert.True(t, ok)
		assert.Equal(t, 12.0, best.Score)
	})

	t.Run("custom threshold", func(t *testing.T) {
		_, ok := Accept([]models.ScoredCandidate{{Score: 12, Eligible: true}}, 50)
		assert.False(t, ok)
	})
}

func TestRank_StableForTies(t *testing.T) {
	scorer := newTestScorer()
	target := models.CanonicalTrack{Name: "Blue"}

	ranked := scorer.Rank(target, []models.Candidate{
		{Title: "Blue", TechnicalID: "first"},
		{Title: "Blue", TechnicalID: "second"},
		{Title: "Nope", TechnicalID: "rejected"},
	})

	require.Len(t, ranked, 3)
	assert.Equal(t, "first", ranked[0].TechnicalID)
	assert.Equal(t, "second", ranked[1].TechnicalID)
	assert.Equal(t, "rejected", ranked[2].TechnicalID)
}

func TestNewConfiguredMatchScorer_UsesActiveConfig(t *testing.T) {
	original := config.GetMatchingConfig()
	t.Cleanup(func() { config.SetMatchingConfig(original) })

	custom := config.DefaultMatchingConfig()
	custom.Weights.ExactName = 500
	config.SetMatchingConfig(custom)

	scored := NewConfiguredMatchScorer().Score(models.CanonicalTrack{Name: "Blue"}, models.Candidate{Title: "Blue"})
	assert.Equal(t, 500.0, scored.Breakdown.Exact)
}

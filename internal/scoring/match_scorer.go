package scoring

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"artistsync/internal/config"
	"artistsync/internal/models"
	"artistsync/internal/normalize"
)

// MatchScorer scores download candidates against a canonical track
type MatchScorer struct {
	weights func() config.MatchingWeights
}

// NewMatchScorer creates a scorer with fixed weights
func NewMatchScorer(w config.MatchingWeights) *MatchScorer {
	return &MatchScorer{weights: func() config.MatchingWeights { return w }}
}

// NewConfiguredMatchScorer creates a scorer that reads the active matching
// config on every call, so reloaded weights apply immediately.
func NewConfiguredMatchScorer() *MatchScorer {
	return &MatchScorer{weights: func() config.MatchingWeights {
		return config.GetMatchingConfig().Weights
	}}
}

// Score computes the additive match score of one candidate.
// A candidate whose title does not contain the target name in either script
// is ineligible (score -Inf) unless its popularity reaches the override.
func (s *MatchScorer) Score(target models.CanonicalTrack, c models.Candidate) models.ScoredCandidate {
	w := s.weights()
	var b models.ScoreBreakdown

	nameForms := normalize.Variants(target.Name)
	titleForms := normalize.Variants(c.Title)

	contained := containsAny(titleForms, nameForms)
	switch {
	case contained:
		b.Containment = w.NameContainment
	case w.PopularityOverride > 0 && c.Popularity >= w.PopularityOverride:
		b.Override = true
	}

	coreTitle := normalize.StripParentheticals(c.Title)
	if equalsAny(titleForms, nameForms) || equalsAny(normalize.Variants(coreTitle), nameForms) {
		b.Exact = w.ExactName
	}

	artists := artistForms(target.Artist)
	if len(artists) > 0 && (containsAny(titleForms, artists) || containsAny(normalize.Variants(c.Uploader), artists)) {
		b.Artist = w.ArtistPresence
	}

	want := Classify(target.Name)
	got := Classify(c.Title)
	if want.Live == got.Live {
		b.Live = w.LiveAgreement
	} else {
		b.Live = w.LiveMismatch
	}
	if !want.Remix && got.Remix {
		b.Remix = w.Remix
	}
	if !want.Instrumental && got.Instrumental {
		b.Instrumental = w.Instrumental
	}
	if !want.Medley && got.Medley {
		b.Medley = w.Medley
	}
	if got.Preview {
		b.Preview = w.Preview
	}

	b.Duration = durationTerm(w, target.DurationSeconds, c.DurationSeconds)
	b.TitleLength = titleLengthTerm(w, target.Name, coreTitle, artists)

	if c.Popularity > 0 {
		b.Popularity = math.Min(math.Log10(float64(c.Popularity))*w.PopularityLogWeight, w.PopularityCap)
	}

	b.Total = b.Containment + b.Exact + b.Artist + b.Live + b.Remix + b.Instrumental +
		b.Medley + b.Preview + b.Duration + b.TitleLength + b.Popularity

	scored := models.ScoredCandidate{
		Candidate: c,
		Eligible:  contained || b.Override,
		Breakdown: b,
		Score:     b.Total,
	}
	if !scored.Eligible {
		scored.Score = math.Inf(-1)
	}
	return scored
}

// Rank scores every candidate and orders them best first. Ties keep the
// provider's order.
func (s *MatchScorer) Rank(target models.CanonicalTrack, candidates []models.Candidate) []models.ScoredCandidate {
	ranked := make([]models.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, s.Score(target, c))
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Accept applies the acceptance rule to a ranked list: the top candidate must
// be eligible and score strictly above minScore.
func Accept(ranked []models.ScoredCandidate, minScore float64) (models.ScoredCandidate, bool) {
	if len(ranked) == 0 {
		return models.ScoredCandidate{}, false
	}
	best := ranked[0]
	if !best.Eligible || best.Score <= minScore {
		return best, false
	}
	return best, true
}

func durationTerm(w config.MatchingWeights, want, got int) float64 {
	if want <= 0 || got <= 0 {
		return 0
	}
	delta := want - got
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta > w.DurationLargeThreshold:
		return w.DurationLargePenalty
	case delta > w.DurationMediumThreshold:
		return w.DurationMediumPenalty
	case delta <= w.DurationCloseWindow:
		return w.DurationCloseBonus
	}
	return 0
}

// titleLengthTerm penalises candidates whose core title (parentheticals and
// artist names removed) is much longer or shorter than the target name.
func titleLengthTerm(w config.MatchingWeights, name, coreTitle string, artists []string) float64 {
	target := normalize.Normalize(normalize.StripParentheticals(name))
	if target == "" {
		target = normalize.Normalize(name)
	}
	core := normalize.Normalize(coreTitle)
	for _, a := range artists {
		if trimmed := strings.ReplaceAll(core, a, ""); strings.Contains(trimmed, target) {
			core = trimmed
		}
	}
	delta := utf8.RuneCountInString(core) - utf8.RuneCountInString(target)
	if delta < 0 {
		delta = -delta
	}
	return -math.Min(float64(delta)*w.TitleLengthPerRune, w.TitleLengthCap)
}

func isArtistSeparator(r rune) bool {
	switch r {
	case '/', ',', '，', '&', '、', ';', '；':
		return true
	}
	return false
}

// artistForms splits a joined artist string and returns the normalized forms
// of every name in both scripts.
func artistForms(artist string) []string {
	var forms []string
	for _, part := range strings.FieldsFunc(artist, isArtistSeparator) {
		forms = append(forms, normalize.Variants(part)...)
	}
	return forms
}

func containsAny(haystacks, needles []string) bool {
	for _, h := range haystacks {
		for _, n := range needles {
			if n != "" && strings.Contains(h, n) {
				return true
			}
		}
	}
	return false
}

func equalsAny(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

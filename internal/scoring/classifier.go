package scoring

import "regexp"

// Keyword sets match the raw title case-insensitively. Every category carries
// English and Chinese terms in both scripts.
var (
	liveRegex = regexp.MustCompile(`(?i)\blive\b|concert|unplugged|\btour\b|现场|現場|演唱会|演唱會|巡演|巡回|巡迴`)

	remixRegex = regexp.MustCompile(`(?i)remix|\bdj\b|\bmix\b|\bedm\b|混音|重混|慢摇|慢搖|电音|電音`)

	instrumentalRegex = regexp.MustCompile(`(?i)instrumental|karaoke|\bcover\b|off vocal|\binst\b|\bktv\b|伴奏|纯音乐|純音樂|翻唱|卡拉ok`)

	medleyRegex = regexp.MustCompile(`(?i)medley|mash-?up|compilation|non-?stop|full album|串烧|串燒|联唱|聯唱|合集|合辑|合輯`)

	previewRegex = regexp.MustCompile(`(?i)preview|snippet|teaser|\bclip\b|试听|試聽|片段|预告|預告`)
)

// IsLive reports a live or concert recording
func IsLive(title string) bool { return liveRegex.MatchString(title) }

// IsRemix reports a remix, DJ edit or mix
func IsRemix(title string) bool { return remixRegex.MatchString(title) }

// IsInstrumentalOrCover reports instrumental, karaoke or cover versions
func IsInstrumentalOrCover(title string) bool { return instrumentalRegex.MatchString(title) }

// IsMedley reports medleys and compilations
func IsMedley(title string) bool { return medleyRegex.MatchString(title) }

// IsPreviewOrSnippet reports previews, teasers and snippets
func IsPreviewOrSnippet(title string) bool { return previewRegex.MatchString(title) }

// Categories is the full classification of one title
type Categories struct {
	Live         bool `json:"live"`
	Remix        bool `json:"remix"`
	Instrumental bool `json:"instrumental"`
	Medley       bool `json:"medley"`
	Preview      bool `json:"preview"`
}

// Classify evaluates every predicate against title
func Classify(title string) Categories {
	return Categories{
		Live:         IsLive(title),
		Remix:        IsRemix(title),
		Instrumental: IsInstrumentalOrCover(title),
		Medley:       IsMedley(title),
		Preview:      IsPreviewOrSnippet(title),
	}
}

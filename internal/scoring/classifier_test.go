package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifierPredicates(t *testing.T) {
	testCases := []struct {
		name      string
		predicate func(string) bool
		positive  []string
		negative  []string
	}{
		{
			name:      "live",
			predicate: IsLive,
			positive:  []string{"Blue (Live at Wembley)", "Concert Live 2019", "MTV Unplugged", "后来 现场版", "十年 演唱會", "演唱会 2019", "現場"},
			negative:  []string{"Olive Tree", "Lively Up Yourself", "Blue (Official Audio)", "后来"},
		},
		{
			name:      "remix",
			predicate: IsRemix,
			positive:  []string{"Blue Remix", "Blue (DJ版)", "Blue [Club Mix]", "后来 混音版", "慢摇 版本", "電音版"},
			negative:  []string{"Mixed Feelings", "Blue", "Djinn"},
		},
		{
			name:      "instrumental or cover",
			predicate: IsInstrumentalOrCover,
			positive:  []string{"Blue (Instrumental)", "Blue Karaoke Version", "Blue - cover by Someone", "后来 伴奏", "翻唱 后来", "純音樂", "卡拉OK版"},
			negative:  []string{"Coverage", "Blue (Official Video)", "Install"},
		},
		{
			name:      "medley",
			predicate: IsMedley,
			positive:  []string{"90s Medley", "Mashup 2020", "Nonstop hits", "经典串烧", "串燒", "热门歌曲合集"},
			negative:  []string{"Blue", "Melody"},
		},
		{
			name:      "preview",
			predicate: IsPreviewOrSnippet,
			positive:  []string{"Blue (Preview)", "Blue snippet", "Official Teaser", "后来 试听版", "試聽", "新歌预告"},
			negative:  []string{"Blue", "Eclipse"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for _, title := range tc.positive {
				assert.True(t, tc.predicate(title), "expected %q to match", title)
			}
			for _, title := range tc.negative {
				assert.False(t, tc.predicate(title), "expected %q not to match", title)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	cats := Classify("后来 (Live Remix Preview)")
	assert.True(t, cats.Live)
	assert.True(t, cats.Remix)
	assert.True(t, cats.Preview)
	assert.False(t, cats.Instrumental)
	assert.False(t, cats.Medley)

	assert.Equal(t, Categories{}, Classify("Blue"))
}

func TestClassify_Deterministic(t *testing.T) {
	title := "十年 演唱会 伴奏"
	first := Classify(title)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(title))
	}
}

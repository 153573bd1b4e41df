package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artistsync/internal/cache"
)

const qqSearchBody = `{"data":{"list":[
	{"songmid":"0039MnYb0qxYhV","songname":"晴天","singer":[{"mid":"0025NhlN2yWrP4","name":"周杰伦"}],"albummid":"000MkMni19ClKG","albumname":"叶惠美","interval":269},
	{"songmid":"002abc","songname":"晴天 (翻唱)","singer":[{"mid":"x","name":"Someone Else"}],"albumname":"Covers","interval":250}
]}}`

func newTestQQMusic(t *testing.T, handler http.Handler, c cache.Cache) *QQMusicService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewQQMusicService(QQMusicOptions{
		BaseURL:        server.URL,
		Timeout:        5 * time.Second,
		SearchCacheTTL: time.Hour,
		LyricsCacheTTL: time.Hour,
	}, c)
}

func TestQQMusic_SearchIsCached(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "晴天 周杰伦", r.URL.Query().Get("key"))
		assert.Equal(t, "10", r.URL.Query().Get("pageSize"))
		writeJSON(w, http.StatusOK, qqSearchBody)
	})
	s := newTestQQMusic(t, mux, cache.NewMemoryCache(10))

	for i := 0; i < 2; i++ {
		tracks, err := s.Search(context.Background(), "晴天 周杰伦", 10)
		require.NoError(t, err)
		require.Len(t, tracks, 2)
		assert.Equal(t, "0039MnYb0qxYhV", tracks[0].ID)
		assert.Equal(t, "周杰伦", tracks[0].Artist)
		assert.Equal(t, 269, tracks[0].DurationSeconds)
		assert.Equal(t, "https://y.gtimg.cn/music/photo_new/T002R300x300M000000MkMni19ClKG.jpg", tracks[0].CoverURL)
		assert.Empty(t, tracks[1].CoverURL)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestQQMusic_SearchLegacyShapeAndLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"list":[{"songmid":"a","songname":"A"},{"songmid":"b","songname":"B"},{"songmid":"c","songname":"C"}]}`)
	})

	tracks, err := newTestQQMusic(t, mux, nil).Search(context.Background(), "x", 2)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "b", tracks[1].ID)
}

func TestQQMusic_SearchErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, `{}`)
	})

	_, err := newTestQQMusic(t, mux, nil).Search(context.Background(), "x", 2)
	var platformErr *PlatformError
	require.ErrorAs(t, err, &platformErr)
	assert.Equal(t, "qqmusic", platformErr.Platform)
}

func TestQQMusic_ArtistHotSongsFiltersSingers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, qqSearchBody)
	})

	tracks, err := newTestQQMusic(t, mux, nil).GetArtistHotSongs(context.Background(), "周杰伦", 10)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "晴天", tracks[0].Name)
}

func TestQQMusic_GetLyrics(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/lyric", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "0039MnYb0qxYhV", r.URL.Query().Get("songmid"))
		writeJSON(w, http.StatusOK, `{"data":{"lyric":"[00:01.00]故事的小黄花"}}`)
	})
	s := newTestQQMusic(t, mux, cache.NewMemoryCache(10))

	for i := 0; i < 2; i++ {
		lyrics, err := s.GetLyrics(context.Background(), "0039MnYb0qxYhV")
		require.NoError(t, err)
		assert.Equal(t, "[00:01.00]故事的小黄花", lyrics)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestSingerMatches(t *testing.T) {
	assert.True(t, singerMatches([]string{"周杰伦"}, "周杰伦"))
	assert.True(t, singerMatches([]string{"周杰伦", "费玉清"}, "费玉清"))
	assert.True(t, singerMatches([]string{"Jay Chou"}, "Jay"))
	assert.False(t, singerMatches([]string{""}, "周杰伦"))
	assert.False(t, singerMatches([]string{"林俊杰"}, "周杰伦"))
}

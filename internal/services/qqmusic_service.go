package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"

	"artistsync/internal/cache"
	"artistsync/internal/models"
)

const qqMusicPlatform = "qqmusic"

// qqCoverURL builds an album cover URL from an album mid
const qqCoverURL = "https://y.gtimg.cn/music/photo_new/T002R300x300M000%s.jpg"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// QQMusicOptions configures the QQ Music client
type QQMusicOptions struct {
	BaseURL        string
	Timeout        time.Duration
	SearchCacheTTL time.Duration
	LyricsCacheTTL time.Duration
}

// QQMusicService talks to a QQMusicApi server. It is the intermediate
// catalog used for lyrics and authoritative durations.
type QQMusicService struct {
	client    *resty.Client
	cache     cache.Cache
	searchTTL time.Duration
	lyricsTTL time.Duration
}

// NewQQMusicService creates a client; c may be nil to disable caching
func NewQQMusicService(opts QQMusicOptions, c cache.Cache) *QQMusicService {
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond)

	return &QQMusicService{
		client:    client,
		cache:     c,
		searchTTL: opts.SearchCacheTTL,
		lyricsTTL: opts.LyricsCacheTTL,
	}
}

type qqSong struct {
	SongMid  string `json:"songmid"`
	SongName string `json:"songname"`
	Singers  []struct {
		Mid  string `json:"mid"`
		Name string `json:"name"`
	} `json:"singer"`
	AlbumMid  string `json:"albummid"`
	AlbumName string `json:"albumname"`
	Interval  int    `json:"interval"` // seconds
}

func (s qqSong) toCatalogTrack() models.CatalogTrack {
	names := make([]string, 0, len(s.Singers))
	for _, singer := range s.Singers {
		names = append(names, singer.Name)
	}
	track := models.CatalogTrack{
		ID:              s.SongMid,
		Name:            s.SongName,
		Artist:          models.JoinArtists(names),
		Album:           s.AlbumName,
		DurationSeconds: s.Interval,
	}
	if s.AlbumMid != "" {
		track.CoverURL = fmt.Sprintf(qqCoverURL, s.AlbumMid)
	}
	return track
}

func (s qqSong) singerNames() []string {
	names := make([]string, 0, len(s.Singers))
	for _, singer := range s.Singers {
		names = append(names, singer.Name)
	}
	return names
}

// Search returns catalog tracks matching query
func (s *QQMusicService) Search(ctx context.Context, query string, limit int) ([]models.CatalogTrack, error) {
	songs, err := s.searchSongs(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	tracks := make([]models.CatalogTrack, 0, len(songs))
	for _, song := range songs {
		tracks = append(tracks, song.toCatalogTrack())
	}
	return tracks, nil
}

// GetArtistHotSongs returns popular songs whose singer list matches artistName
func (s *QQMusicService) GetArtistHotSongs(ctx context.Context, artistName string, limit int) ([]models.CatalogTrack, error) {
	songs, err := s.searchSongs(ctx, artistName, limit)
	if err != nil {
		return nil, err
	}

	tracks := make([]models.CatalogTrack, 0, len(songs))
	for _, song := range songs {
		if singerMatches(song.singerNames(), artistName) {
			tracks = append(tracks, song.toCatalogTrack())
		}
	}
	slog.Info("Fetched artist hot songs", "platform", qqMusicPlatform, "artist", artistName, "count", len(tracks))
	return tracks, nil
}

func singerMatches(singers []string, artistName string) bool {
	for _, name := range singers {
		if name == "" {
			continue
		}
		if strings.Contains(name, artistName) || strings.Contains(artistName, name) {
			return true
		}
	}
	return false
}

func (s *QQMusicService) searchSongs(ctx context.Context, query string, limit int) ([]qqSong, error) {
	cacheKey := fmt.Sprintf("api:qqmusic:search:%s:limit:%d", query, limit)
	var songs []qqSong
	if cache.GetJSON(ctx, s.cache, cacheKey, &songs) {
		slog.Debug("QQ Music search cache hit", "query", query)
		return songs, nil
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":      query,
			"pageSize": strconv.Itoa(limit),
		}).
		Get("/search")
	if err != nil {
		return nil, &PlatformError{Platform: qqMusicPlatform, Operation: "search", Message: "request failed", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{
			Platform:  qqMusicPlatform,
			Operation: "search",
			Message:   fmt.Sprintf("unexpected status code: %d", resp.StatusCode()),
		}
	}

	// Older server versions return the list at the top level
	list := gjson.GetBytes(resp.Body(), "data.list")
	if !list.Exists() {
		list = gjson.GetBytes(resp.Body(), "list")
	}
	songs = make([]qqSong, 0)
	if list.IsArray() {
		if err := json.Unmarshal([]byte(list.Raw), &songs); err != nil {
			return nil, &PlatformError{Platform: qqMusicPlatform, Operation: "search", Message: "malformed response", Err: err}
		}
	}
	if limit > 0 && len(songs) > limit {
		songs = songs[:limit]
	}

	if err := cache.SetJSON(ctx, s.cache, cacheKey, songs, s.searchTTL); err != nil {
		slog.Warn("Failed to cache QQ Music search", "query", query, "error", err)
	}
	return songs, nil
}

// GetLyrics returns the LRC lyrics of a song, or "" when it has none
func (s *QQMusicService) GetLyrics(ctx context.Context, trackID string) (string, error) {
	cacheKey := fmt.Sprintf("api:qqmusic:lyric:%s", trackID)
	var lyric string
	if cache.GetJSON(ctx, s.cache, cacheKey, &lyric) {
		return lyric, nil
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("songmid", trackID).
		Get("/lyric")
	if err != nil {
		return "", &PlatformError{Platform: qqMusicPlatform, Operation: "lyric", Message: "request failed", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return "", &PlatformError{
			Platform:  qqMusicPlatform,
			Operation: "lyric",
			Message:   fmt.Sprintf("unexpected status code: %d", resp.StatusCode()),
		}
	}

	lyric = gjson.GetBytes(resp.Body(), "data.lyric").String()
	if err := cache.SetJSON(ctx, s.cache, cacheKey, lyric, s.lyricsTTL); err != nil {
		slog.Warn("Failed to cache QQ Music lyric", "songmid", trackID, "error", err)
	}
	return lyric, nil
}

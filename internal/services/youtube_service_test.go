package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artistsync/internal/cache"
	"artistsync/internal/models"
)

// scriptedRunner answers runs from a queue of handlers and records the args
type scriptedRunner struct {
	mu    sync.Mutex
	calls [][]string
	steps []func(args []string) ([]byte, error)
}

func (r *scriptedRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
	if len(r.steps) == 0 {
		return nil, fmt.Errorf("unexpected call to %s", name)
	}
	step := r.steps[0]
	if len(r.steps) > 1 {
		r.steps = r.steps[1:]
	}
	return step(args)
}

// writeOutput creates the file yt-dlp would have produced for --output
func writeOutput(content string) func(args []string) ([]byte, error) {
	return func(args []string) ([]byte, error) {
		for i, a := range args {
			if a == "--output" {
				path := strings.Replace(args[i+1], ".%(ext)s", ".mp3", 1)
				return nil, os.WriteFile(path, []byte(content), 0o644)
			}
		}
		return nil, fmt.Errorf("no --output flag")
	}
}

func failWith(err error) func([]string) ([]byte, error) {
	return func([]string) ([]byte, error) { return []byte("ERROR: Video unavailable"), err }
}

func newTestYouTube(runner *scriptedRunner, scratch string, c cache.Cache) *YouTubeService {
	s := NewYouTubeService(runner, YouTubeOptions{
		YtDlpPath:  "yt-dlp",
		FFmpegPath: "/usr/bin/ffmpeg",
		ScratchDir: scratch,
		Retries:    3,
	}, c, nil)
	s.retry.sleep = noSleep
	return s
}

func TestYouTube_Search(t *testing.T) {
	output := strings.Join([]string{
		`{"id":"abc123","title":"后来 - 刘若英","channel":"刘若英 Official","duration":341.4,"view_count":12000000,"thumbnail":"https://i.ytimg.com/vi/abc123/hq.jpg"}`,
		`WARNING: ignored line`,
		`{"id":"","title":"no id"}`,
		`{"id":"def_456","title":"后来 Live","uploader":"fan","duration":360}`,
	}, "\n")
	runner := &scriptedRunner{steps: []func([]string) ([]byte, error){
		func([]string) ([]byte, error) { return []byte(output), nil },
	}}
	s := newTestYouTube(runner, t.TempDir(), cache.NewMemoryCache(10))

	for i := 0; i < 2; i++ {
		candidates, err := s.Search(context.Background(), "后来 刘若英", 5)
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, models.Candidate{
			Title:           "后来 - 刘若英",
			Uploader:        "刘若英 Official",
			DurationSeconds: 341,
			Popularity:      12000000,
			TechnicalID:     "abc123",
			CatalogRef:      models.ProviderVideoPlatform,
			CoverURL:        "https://i.ytimg.com/vi/abc123/hq.jpg",
		}, candidates[0])
		assert.Equal(t, "fan", candidates[1].Uploader)
	}

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"yt-dlp", "--dump-json", "--flat-playlist", "--no-warnings", "ytsearch5:后来 刘若英"}, runner.calls[0])
}

func TestYouTube_SearchFailure(t *testing.T) {
	runner := &scriptedRunner{steps: []func([]string) ([]byte, error){failWith(assert.AnError)}}
	_, err := newTestYouTube(runner, t.TempDir(), nil).Search(context.Background(), "x", 5)

	var platformErr *PlatformError
	require.ErrorAs(t, err, &platformErr)
	assert.Equal(t, "youtube", platformErr.Platform)
}

func TestYouTube_DownloadRetries(t *testing.T) {
	scratch := t.TempDir()
	runner := &scriptedRunner{steps: []func([]string) ([]byte, error){
		failWith(assert.AnError),
		writeOutput(""),
		writeOutput("mp3 data"),
	}}
	s := newTestYouTube(runner, scratch, nil)

	path, err := s.Download(context.Background(), models.Candidate{TechnicalID: "abc123", Title: "后来"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(scratch, "abc123.mp3"), path)
	assert.Len(t, runner.calls, 3)

	args := runner.calls[0]
	assert.Contains(t, args, "--extract-audio")
	assert.Contains(t, args, "--ffmpeg-location")
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", args[len(args)-1])

	// A second download reuses the cached file
	again, err := s.Download(context.Background(), models.Candidate{TechnicalID: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Len(t, runner.calls, 3)
}

func TestYouTube_DownloadGivesUp(t *testing.T) {
	scratch := t.TempDir()
	runner := &scriptedRunner{steps: []func([]string) ([]byte, error){failWith(assert.AnError)}}

	_, err := newTestYouTube(runner, scratch, nil).Download(context.Background(), models.Candidate{TechnicalID: "abc123"})
	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.Len(t, runner.calls, 3)
	assert.NoFileExists(t, filepath.Join(scratch, "abc123.mp3"))
}

func TestYouTube_DownloadMissingTool(t *testing.T) {
	runner := &scriptedRunner{steps: []func([]string) ([]byte, error){failWith(exec.ErrNotFound)}}

	_, err := newTestYouTube(runner, t.TempDir(), nil).Download(context.Background(), models.Candidate{TechnicalID: "abc123"})
	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.ErrorContains(t, err, "not installed")
}

func TestYouTube_DownloadNeedsID(t *testing.T) {
	_, err := newTestYouTube(&scriptedRunner{}, t.TempDir(), nil).Download(context.Background(), models.Candidate{})
	assert.ErrorIs(t, err, ErrDownloadFailed)
}

func TestCacheFileStem(t *testing.T) {
	assert.Equal(t, "dQw4w9WgXcQ", cacheFileStem("dQw4w9WgXcQ"))
	assert.Equal(t, "a-b_c", cacheFileStem("a-b_c"))
	assert.Equal(t, "some-id-with-spaces", cacheFileStem("some id/with spaces"))
	assert.Equal(t, "video", cacheFileStem("///"))
}

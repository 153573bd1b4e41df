package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/fsnotify/fsnotify"
	toml "github.com/pelletier/go-toml/v2"
)

// MatchingConfig holds the tunable constants of source matching
type MatchingConfig struct {
	Weights  MatchingWeights `toml:"weights"`
	Ladder   LadderConfig    `toml:"ladder"`
	Prefetch PrefetchConfig  `toml:"prefetch"`
}

// MatchingWeights are the signed contributions of each scoring term.
// Penalties are stored as negative numbers.
type MatchingWeights struct {
	NameContainment float64 `toml:"name_containment"`
	ExactName       float64 `toml:"exact_name"`
	ArtistPresence  float64 `toml:"artist_presence"`
	LiveAgreement   float64 `toml:"live_agreement"`
	LiveMismatch    float64 `toml:"live_mismatch"`
	Remix           float64 `toml:"remix"`
	Instrumental    float64 `toml:"instrumental"`
	Medley          float64 `toml:"medley"`
	Preview         float64 `toml:"preview"`

	// Duration tiers, thresholds in seconds
	DurationCloseWindow     int     `toml:"duration_close_window"`
	DurationCloseBonus      float64 `toml:"duration_close_bonus"`
	DurationMediumThreshold int     `toml:"duration_medium_threshold"`
	DurationMediumPenalty   float64 `toml:"duration_medium_penalty"`
	DurationLargeThreshold  int     `toml:"duration_large_threshold"`
	DurationLargePenalty    float64 `toml:"duration_large_penalty"`

	TitleLengthPerRune float64 `toml:"title_length_per_rune"`
	TitleLengthCap     float64 `toml:"title_length_cap"`

	PopularityLogWeight float64 `toml:"popularity_log_weight"`
	PopularityCap       float64 `toml:"popularity_cap"`
	// Candidates at or above this popularity skip the name-containment precondition
	PopularityOverride int64 `toml:"popularity_override"`
}

// LadderConfig controls the query ladder
type LadderConfig struct {
	// A stage accepts only when its best score is strictly greater than this
	MinAcceptScore  float64 `toml:"min_accept_score"`
	LiveQualifier   string  `toml:"live_qualifier"`
	StudioQualifier string  `toml:"studio_qualifier"`
}

// PrefetchConfig controls lyric/metadata pre-resolution
type PrefetchConfig struct {
	// Minimum normalized-name similarity (0-1) for an intermediate catalog hit
	NameSimilarity   float64  `toml:"name_similarity"`
	LyricsQualifiers []string `toml:"lyrics_qualifiers"`
}

// DefaultMatchingConfig returns hard-coded defaults
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Weights: DefaultMatchingWeights(),
		Ladder: LadderConfig{
			MinAcceptScore:  0,
			LiveQualifier:   "live",
			StudioQualifier: "audio",
		},
		Prefetch: PrefetchConfig{
			NameSimilarity:   0.8,
			LyricsQualifiers: []string{"原版", "官方"},
		},
	}
}

// DefaultMatchingWeights returns the default scoring weights
func DefaultMatchingWeights() MatchingWeights {
	return MatchingWeights{
		NameContainment:         50,
		ExactName:               30,
		ArtistPresence:          40,
		LiveAgreement:           10,
		LiveMismatch:            -50,
		Remix:                   -80,
		Instrumental:            -80,
		Medley:                  -40,
		Preview:                 -15,
		DurationCloseWindow:     10,
		DurationCloseBonus:      30,
		DurationMediumThreshold: 60,
		DurationMediumPenalty:   -40,
		DurationLargeThreshold:  180,
		DurationLargePenalty:    -100,
		TitleLengthPerRune:      1,
		TitleLengthCap:          30,
		PopularityLogWeight:     4,
		PopularityCap:           30,
		PopularityOverride:      10_000_000,
	}
}

var (
	matchingCfg     *MatchingConfig
	matchingCfgOnce sync.Once
	matchingCfgMu   sync.RWMutex
)

// GetMatchingConfig returns the active matching config, loading it on first use
// from MATCHING_CONFIG_PATH or the first well-known location that exists.
func GetMatchingConfig() *MatchingConfig {
	matchingCfgOnce.Do(func() {
		cfg := DefaultMatchingConfig()
		if path := findMatchingConfigPath(); path != "" {
			if fileCfg, err := loadMatchingConfigFromPath(path); err != nil {
				slog.Warn("Ignoring invalid matching config", "path", path, "error", err)
			} else if fileCfg != nil {
				cfg = fileCfg
				slog.Info("Loaded matching config", "path", path)
			}
		}
		matchingCfgMu.Lock()
		if matchingCfg == nil {
			matchingCfg = cfg
		}
		matchingCfgMu.Unlock()
	})
	matchingCfgMu.RLock()
	defer matchingCfgMu.RUnlock()
	return matchingCfg
}

// SetMatchingConfig replaces the active matching config
func SetMatchingConfig(cfg *MatchingConfig) {
	matchingCfgOnce.Do(func() {})
	matchingCfgMu.Lock()
	matchingCfg = cfg
	matchingCfgMu.Unlock()
}

// LoadMatchingConfig reads a TOML file over the defaults; keys absent from
// the file keep their default values.
func LoadMatchingConfig(path string) (*MatchingConfig, error) {
	cfg, err := loadMatchingConfigFromPath(path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("matching config %s: %w", path, fs.ErrNotExist)
	}
	return cfg, nil
}

func loadMatchingConfigFromPath(path string) (*MatchingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	cfg := DefaultMatchingConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findMatchingConfigPath() string {
	if explicit := os.Getenv("MATCHING_CONFIG_PATH"); explicit != "" {
		return explicit
	}
	for _, p := range candidateMatchingConfigPaths() {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

// candidateMatchingConfigPaths returns common locations to auto-discover the matching config
func candidateMatchingConfigPaths() []string {
	paths := []string{
		"matching.toml",
		filepath.Join("config", "matching.toml"),
		filepath.Join(xdg.ConfigHome, "artistsync", "matching.toml"),
	}
	for _, dir := range xdg.ConfigDirs {
		paths = append(paths, filepath.Join(dir, "artistsync", "matching.toml"))
	}
	return append(paths, filepath.Join(string(os.PathSeparator), "etc", "artistsync", "matching.toml"))
}

// StartMatchingConfigWatcher reloads the matching config whenever its file is
// written. Without a config file the watcher is a no-op.
func StartMatchingConfigWatcher(ctx context.Context) error {
	path := findMatchingConfigPath()
	if path == "" {
		slog.Info("Matching config watcher: no config file found, using defaults")
		return nil
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are still seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	slog.Info("Matching config watcher: watching file", "path", path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				slog.Info("Matching config watcher: stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := loadMatchingConfigFromPath(path)
				if err != nil || cfg == nil {
					slog.Warn("Matching config reload failed", "path", path, "error", err)
					continue
				}
				SetMatchingConfig(cfg)
				slog.Info("Matching config reloaded", "path", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Matching config watcher error", "error", err)
			}
		}
	}()
	return nil
}

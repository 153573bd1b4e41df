package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"artistsync/internal/models"
	"artistsync/internal/services"
)

type trackResolver interface {
	Resolve(ctx context.Context, track models.CanonicalTrack) (*services.Resolution, error)
}

func init() {
	cmdRoot.AddCommand(cmdResolve())
}

func cmdResolve() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "resolve",
		Short:        "Find the best download candidate for one song",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				name, _     = cmd.Flags().GetString("name")
				artist, _   = cmd.Flags().GetString("artist")
				album, _    = cmd.Flags().GetString("album")
				duration, _ = cmd.Flags().GetInt("duration")
				provider, _ = cmd.Flags().GetString("provider")
			)

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			track := models.CanonicalTrack{Name: name, Artist: artist, Album: album, DurationSeconds: duration}
			resolver := a.Resolver
			if provider != "" {
				resolver = resolver.WithProvider(models.Provider(provider))
			}
			return runResolve(cmd.Context(), cmd.OutOrStdout(), resolver, track)
		},
	}
	cmd.Flags().String("name", "", "song title")
	cmd.Flags().String("artist", "", "artist name")
	cmd.Flags().String("album", "", "album name")
	cmd.Flags().Int("duration", 0, "duration in seconds (0 if unknown)")
	cmd.Flags().String("provider", "", "audio source (video_platform, streaming_catalog)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// runResolve prints the accepted candidate and the ranking that chose it
func runResolve(ctx context.Context, out io.Writer, resolver trackResolver, track models.CanonicalTrack) error {
	res, err := resolver.Resolve(ctx, track)
	if errors.Is(err, services.ErrNoMatchFound) {
		fmt.Fprintf(out, "No acceptable source for %q\n", track.Name)
		return err
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Stage %d (%q) accepted %s: %s [score %.1f]\n",
		res.Stage, res.Query, res.Winner.Candidate.TechnicalID, res.Winner.Candidate.Title, res.Winner.Score)
	for i, sc := range res.Ranked {
		fmt.Fprintf(out, "%2d. %7.1f  %s (%s)\n", i+1, sc.Score, sc.Candidate.Title, sc.Candidate.TechnicalID)
	}
	return nil
}

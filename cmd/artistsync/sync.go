package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"artistsync/internal/models"
	"artistsync/internal/services"
	"artistsync/internal/session"
)

var timeNow = time.Now

type batchRunner interface {
	Run(ctx context.Context, cred *session.Credential, req services.BatchRequest, sink models.EventSink) *models.BatchSummary
}

func init() {
	cmdRoot.AddCommand(cmdSync())
}

func cmdSync() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "sync",
		Short:        "Sync an artist's top songs into the cloud library",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				artistID, _     = cmd.Flags().GetString("artist-id")
				count, _        = cmd.Flags().GetInt("count")
				playlist, _     = cmd.Flags().GetBool("playlist")
				playlistName, _ = cmd.Flags().GetString("playlist-name")
				cookie, _       = cmd.Flags().GetString("cookie")
				dryRun, _       = cmd.Flags().GetBool("dry-run")
			)
			if artistID == "" {
				return errors.New("--artist-id is required")
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			req := services.BatchRequest{
				ArtistID:       artistID,
				Count:          count,
				CreatePlaylist: playlist,
				PlaylistName:   playlistName,
				SkipUpload:     dryRun,
			}
			return runSync(ctx, cmd.OutOrStdout(), a.Batch, a.CookieCredential(cookie), req)
		},
	}
	cmd.Flags().String("artist-id", "", "artist id in the primary catalog")
	cmd.Flags().Int("count", 10, "number of top songs to sync")
	cmd.Flags().Bool("playlist", false, "collect uploaded songs into a new playlist")
	cmd.Flags().String("playlist-name", "", "playlist name (default \"<artist> Top <N>\")")
	cmd.Flags().String("cookie", os.Getenv("NETEASE_COOKIE"), "streaming service cookie")
	cmd.Flags().Bool("dry-run", false, "resolve, download and tag without uploading")
	return cmd
}

// runSync prints progress as it arrives and fails when the batch could not run
func runSync(ctx context.Context, out io.Writer, batch batchRunner, cred *session.Credential, req services.BatchRequest) error {
	if err := cred.Validate(timeNow()); err != nil {
		return fmt.Errorf("a valid --cookie is required: %w", err)
	}

	sink := models.EventSinkFunc(func(event models.LogEvent) {
		if event.Type == models.EventTypeLog {
			fmt.Fprintln(out, event.Message)
		}
	})
	summary := batch.Run(ctx, cred, req, sink)

	printSummary(out, summary)
	if summary.Error != "" {
		return errors.New(summary.Error)
	}
	return nil
}

func printSummary(out io.Writer, s *models.BatchSummary) {
	fmt.Fprintf(out, "\nRun %s: %d succeeded, %d failed, %d skipped of %d\n", s.RunID, s.Succeeded, s.Failed, s.Skipped, s.Total)
	for _, f := range s.Failures {
		fmt.Fprintf(out, "  FAILED %s [%s] %s\n", f.Name, f.Kind, f.Reason)
	}
	if s.PlaylistID != "" {
		fmt.Fprintf(out, "Playlist %q created (%s)\n", s.PlaylistName, s.PlaylistID)
	}
	if s.PlaylistWarning != "" {
		fmt.Fprintf(out, "Playlist warning: %s\n", s.PlaylistWarning)
	}
}

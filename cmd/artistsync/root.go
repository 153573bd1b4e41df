package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"artistsync/internal/app"
	"artistsync/internal/command"
	"artistsync/internal/config"
)

var cmdRoot = &cobra.Command{
	Use:   "artistsync",
	Short: "Copy an artist's top songs into a cloud music library from a video platform",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")
		logger, err := setupLogger(level, format)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	cmdRoot.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmdRoot.PersistentFlags().String("log-format", "text", "log format (text, logfmt, json)")
}

// Execute runs the CLI
func Execute() {
	_ = godotenv.Load()
	if err := cmdRoot.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogger builds a charmbracelet slog handler writing to stderr
func setupLogger(level, format string) (*slog.Logger, error) {
	var formatter log.Formatter
	switch format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	case "text", "":
		formatter = log.TextFormatter
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	handler := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "artistsync",
		Formatter:       formatter,
		Level:           lvl,
	})
	return slog.New(handler), nil
}

// loadApp wires the pipeline from the environment. Tests replace it.
var loadApp = func() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, command.ExecRunner{}, nil)
}

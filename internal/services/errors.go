package services

import (
	"context"
	"errors"

	"artistsync/internal/session"
)

// Failure taxonomy. Per-song failures are reported under these names.
var (
	ErrNotAuthenticated        = session.ErrNotAuthenticated
	ErrNoMatchFound            = errors.New("no match found")
	ErrDownloadFailed          = errors.New("download failed")
	ErrTaggingFailed           = errors.New("tagging failed")
	ErrUploadFailed            = errors.New("upload failed")
	ErrUploadIDAmbiguous       = errors.New("upload response carried no track id")
	ErrPlaylistOperationFailed = errors.New("playlist operation failed")
)

// Pipeline step names
const (
	StepAuth     = "auth"
	StepPrefetch = "prefetch"
	StepResolve  = "resolve"
	StepDownload = "download"
	StepLyrics   = "lyrics"
	StepTag      = "tag"
	StepUpload   = "upload"
	StepPlaylist = "playlist"
)

// StepError tags an error with the pipeline step that produced it
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Kind returns the taxonomy name of the first sentinel found in err's chain
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotAuthenticated):
		return "NotAuthenticated"
	case errors.Is(err, ErrNoMatchFound):
		return "NoMatchFound"
	case errors.Is(err, ErrDownloadFailed):
		return "DownloadFailed"
	case errors.Is(err, ErrTaggingFailed):
		return "TaggingFailed"
	case errors.Is(err, ErrUploadIDAmbiguous):
		return "UploadIdAmbiguous"
	case errors.Is(err, ErrUploadFailed):
		return "UploadFailed"
	case errors.Is(err, ErrPlaylistOperationFailed):
		return "PlaylistOperationFailed"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "Cancelled"
	default:
		return "Internal"
	}
}

// StepOf returns the step recorded in err's chain, if any
func StepOf(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step
	}
	return ""
}

// PlatformError represents an error from a remote catalog or tool
type PlatformError struct {
	Platform  string
	Operation string
	Message   string
	URL       string
	Err       error
}

func (e *PlatformError) Error() string {
	msg := e.Platform + " " + e.Operation + " failed"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.URL != "" {
		msg += " (URL: " + e.URL + ")"
	}
	if e.Err != nil {
		msg += " - " + e.Err.Error()
	}
	return msg
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

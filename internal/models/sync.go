package models

import "time"

// SyncStatus is the outcome of one song's pipeline
type SyncStatus string

const (
	StatusSuccess SyncStatus = "success"
	StatusFailed  SyncStatus = "failed"
	// StatusSkipped marks a dry run that stopped before upload
	StatusSkipped SyncStatus = "skipped"
)

// SyncResult is the per-song outcome.
// FailureReason is set iff Status is failed; UploadedTrackID iff success.
type SyncResult struct {
	Track           CanonicalTrack `json:"track"`
	Status          SyncStatus     `json:"status"`
	FailureReason   string         `json:"failureReason,omitempty"`
	FailureKind     string         `json:"failureKind,omitempty"`
	FailedStep      string         `json:"failedStep,omitempty"`
	UploadedTrackID string         `json:"uploadedTrackId,omitempty"`
	Source          *Candidate     `json:"source,omitempty"`
	LyricsSource    string         `json:"lyricsSource,omitempty"`
}

// FailureRecord describes one failed song in a batch summary
type FailureRecord struct {
	Name   string `json:"name"`
	Artist string `json:"artist,omitempty"`
	Step   string `json:"step,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason"`
}

// BatchSummary aggregates a batch run. The batch driver is its only writer.
type BatchSummary struct {
	RunID            string          `json:"runId"`
	Artist           string          `json:"artist,omitempty"`
	Total            int             `json:"total"`
	Succeeded        int             `json:"success"`
	Failed           int             `json:"failed"`
	Skipped          int             `json:"skipped,omitempty"`
	Failures         []FailureRecord `json:"failures"`
	UploadedTrackIDs []string        `json:"uploadedTrackIds"`
	PlaylistID       string          `json:"playlistId,omitempty"`
	PlaylistName     string          `json:"playlistName,omitempty"`
	PlaylistWarning  string          `json:"playlistWarning,omitempty"`
	// Error is set when the batch could not start, e.g. the song list failed to load
	Error            string          `json:"error,omitempty"`
	StartedAt        time.Time       `json:"startedAt"`
	FinishedAt       time.Time       `json:"finishedAt"`
}

// NewBatchSummary creates an empty summary for a run
func NewBatchSummary(runID, artist string) *BatchSummary {
	return &BatchSummary{
		RunID:            runID,
		Artist:           artist,
		Failures:         make([]FailureRecord, 0),
		UploadedTrackIDs: make([]string, 0),
		StartedAt:        time.Now(),
	}
}

// Record folds one song's result into the summary
func (s *BatchSummary) Record(result SyncResult) {
	s.Total++
	switch result.Status {
	case StatusSuccess:
		s.Succeeded++
		s.UploadedTrackIDs = append(s.UploadedTrackIDs, result.UploadedTrackID)
	case StatusSkipped:
		s.Skipped++
	default:
		s.Failed++
		s.Failures = append(s.Failures, FailureRecord{
			Name:   result.Track.Name,
			Artist: result.Track.Artist,
			Step:   result.FailedStep,
			Kind:   result.FailureKind,
			Reason: result.FailureReason,
		})
	}
}

// Finish stamps the end time
func (s *BatchSummary) Finish() {
	s.FinishedAt = time.Now()
}

package models

import "time"

// ChapterRef is one chapter entry extracted from a series source page,
// before it has been persisted.
type ChapterRef struct {
	Number float64 `json:"number"`
	Title  string  `json:"title"`
	URL    string  `json:"url"`
}

// ReconcileReport summarizes one reconciliation pass for a series.
type ReconcileReport struct {
	SeriesID int64     `json:"series_id"`
	Added    []float64 `json:"added"`
	Skipped  []float64 `json:"skipped"`
	Failed   []float64 `json:"failed"`
}

// ProgressUpdate is broadcast over the websocket hub while a series is
// being ingested, so the admin dashboard can follow along.
type ProgressUpdate struct {
	JobID    string  `json:"job_id"`
	SeriesID int64   `json:"series_id,omitempty"`
	Chapter  float64 `json:"chapter,omitempty"`
	Message  string  `json:"message"`
	Progress float64 `json:"progress"`
	Done     bool    `json:"done"`
}

// StoredImage is the result of pushing one re-encoded page image to object
// storage.
type StoredImage struct {
	SourceURL  string
	StorageKey string
	PublicURL  string
	Order      int
}

// JobStatus reports the state of a background job to the admin surface.
type JobStatus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"` // "idle", "running", "success", "failed"
	Message   string    `json:"message"`
	StartTime time.Time `json:"start_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`
}

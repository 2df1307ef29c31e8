// This file defines the core data structures (models) for the ingestion
// pipeline: tracked series, their chapters, and the stored page images.

package models

import "time"

// SeriesStatus is the lifecycle status of a tracked series.
type SeriesStatus string

const (
	StatusPending        SeriesStatus = "pending"
	StatusProcessing     SeriesStatus = "processing"
	StatusAvailable      SeriesStatus = "available"
	StatusOngoing        SeriesStatus = "ongoing"
	StatusCompleted      SeriesStatus = "completed"
	StatusHiatus         SeriesStatus = "hiatus"
	StatusDiscontinued   SeriesStatus = "discontinued"
	StatusError          SeriesStatus = "error"
	StatusPendingDelete  SeriesStatus = "pending_deletion"
	StatusDeleting       SeriesStatus = "deleting"
	StatusDeleteFailed   SeriesStatus = "deletion_failed"
)

// Series represents a single tracked manga/webtoon title with one canonical
// source URL.
type Series struct {
	ID                 int64        `json:"id"`
	Title              string       `json:"title"`
	OriginalTitle      string       `json:"original_title,omitempty"`
	Description        string       `json:"description,omitempty"`
	CoverImageURL      string       `json:"cover_image_url,omitempty"`
	CurrentSourceURL   string       `json:"current_source_url"`
	SourceWebsiteHost  string       `json:"source_website_host"`
	ViewsCount         int64        `json:"views_count"`
	BookmarksCount     int64        `json:"bookmarks_count"`
	LastChapterFound   float64      `json:"last_chapter_found_in_storage"`
	ProcessingStatus   SeriesStatus `json:"processing_status"`
	CheckIntervalMins  int          `json:"check_interval_minutes"`
	LastCheckedAt      *time.Time   `json:"last_checked_at,omitempty"`
	NextCheckedAt      *time.Time   `json:"next_checked_at,omitempty"`
	Chapters           []*Chapter   `json:"chapters,omitempty"` // omitempty hides it when not loaded
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Chapter represents a single numbered chapter of a series. Fractional
// numbers (10.5) are allowed; the number is unique per series.
type Chapter struct {
	ID            int64           `json:"id"`
	SeriesID      int64           `json:"series_id"`
	ChapterNumber float64         `json:"chapter_number"`
	Title         string          `json:"title,omitempty"`
	SourceURL     string          `json:"source_url"`
	Images        []*ChapterImage `json:"images,omitempty"`
	CreatedAt     time.Time       `json:"-"` // Hide from JSON responses
	UpdatedAt     time.Time       `json:"-"` // Hide from JSON responses
}

// ChapterImage is a single stored page of a chapter. ImageOrder is a 1-based
// contiguous sequence; a chapter is never visible with a partial set.
type ChapterImage struct {
	ID         int64  `json:"id"`
	ChapterID  int64  `json:"chapter_id"`
	ImageOrder int    `json:"image_order"`
	ImageURL   string `json:"image_url"`
	StorageKey string `json:"-"`
}

package testutil

import (
	"database/sql"
	"testing"
	"time"
)

// InsertSeries inserts a series row directly and returns its ID.
func InsertSeries(t *testing.T, db *sql.DB, title, sourceURL, status string, nextChecked time.Time) int64 {
	t.Helper()
	res, err := db.Exec(`
		INSERT INTO series (title, current_source_url, source_website_host, processing_status,
			check_interval_minutes, next_checked_at, created_at, updated_at)
		VALUES (?, ?, 'source.test', ?, 60, ?, ?, ?)`,
		title, sourceURL, status, nextChecked.UTC().Format("2006-01-02 15:04:05"), time.Now(), time.Now())
	if err != nil {
		t.Fatalf("Failed to insert series: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

// InsertChapter inserts a chapter row directly and returns its ID.
func InsertChapter(t *testing.T, db *sql.DB, seriesID int64, number float64, sourceURL string) int64 {
	t.Helper()
	res, err := db.Exec(`
		INSERT INTO series_chapters (series_id, chapter_number, source_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		seriesID, number, sourceURL, time.Now(), time.Now())
	if err != nil {
		t.Fatalf("Failed to insert chapter: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

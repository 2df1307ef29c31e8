package reconcile

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/corvida/mangrove/internal/extract"
	"github.com/corvida/mangrove/internal/models"
	"github.com/corvida/mangrove/internal/storage"
)

// RepairParams describes an administrator-initiated single-chapter override.
type RepairParams struct {
	ChapterNumber float64
	ChapterURL    string
	ChapterTitle  string
}

// ValidationError marks operator errors that must be rejected synchronously
// with a descriptive message and no state mutation.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// Repair synchronously ingests exactly one chapter, bypassing discovery.
// If a chapter already exists at the given number its source URL and images
// are replaced transactionally; duplicates are impossible because the
// (series_id, chapter_number) constraint is the authoritative guard.
func (r *Reconciler) Repair(ctx context.Context, seriesID int64, params RepairParams, backend storage.Backend) (*models.Chapter, error) {
	if params.ChapterNumber < 0 {
		return nil, &ValidationError{Msg: "chapter number must not be negative"}
	}
	u, err := url.Parse(params.ChapterURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &ValidationError{Msg: "chapter URL must be an absolute http(s) URL"}
	}

	series, err := r.st.GetSeriesByID(seriesID)
	if err != nil {
		return nil, err
	}

	html, err := r.fetcher.Fetch(ctx, params.ChapterURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chapter page: %w", err)
	}

	ex, err := extract.New(params.ChapterURL)
	if err != nil {
		return nil, err
	}
	imageURLs, err := ex.ChapterPages(html)
	if err != nil {
		return nil, fmt.Errorf("failed to extract page images: %w", err)
	}

	stored, err := r.pipeline.ProcessChapter(ctx, imageURLs)
	if err != nil {
		return nil, err
	}

	chapter, oldKeys, err := r.st.ReplaceChapter(series.ID, params.ChapterNumber, params.ChapterTitle, params.ChapterURL, stored)
	if err != nil {
		return nil, fmt.Errorf("failed to persist repaired chapter: %w", err)
	}

	if err := r.st.AdvanceLastChapterFound(series.ID, params.ChapterNumber); err != nil {
		log.Printf("Warning: failed to advance chapter counter for series %d: %v", series.ID, err)
	}

	// The new image set is committed; removing the replaced objects is
	// best-effort cleanup.
	newKeys := make(map[string]bool, len(stored))
	for _, img := range stored {
		newKeys[img.StorageKey] = true
	}
	for _, key := range oldKeys {
		if newKeys[key] {
			continue
		}
		if err := backend.Delete(key); err != nil {
			log.Printf("Warning: failed to delete replaced object %s: %v", key, err)
		}
	}

	return chapter, nil
}

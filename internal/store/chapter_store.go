package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/corvida/mangrove/internal/models"
)

// GetChapterNumbers returns the set of chapter numbers already persisted for
// a series. This is the reconciler's "what do we already have" input.
func (s *Store) GetChapterNumbers(seriesID int64) (map[float64]bool, error) {
	rows, err := s.db.Query("SELECT chapter_number FROM series_chapters WHERE series_id = ?", seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	numbers := make(map[float64]bool)
	for rows.Next() {
		var n float64
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers[n] = true
	}
	return numbers, rows.Err()
}

// CreateChapterWithImages inserts a chapter row and its full image set in one
// transaction. A chapter is never visible with a partial image set: if any
// insert fails the whole transaction rolls back.
func (s *Store) CreateChapterWithImages(seriesID int64, number float64, title, sourceURL string, images []*models.StoredImage) (*models.Chapter, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.Exec(`
		INSERT INTO series_chapters (series_id, chapter_number, title, source_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		seriesID, number, title, sourceURL, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chapter %g: %w", number, err)
	}
	chapterID, _ := res.LastInsertId()

	if err := insertImages(tx, chapterID, images); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	chapter := &models.Chapter{
		ID: chapterID, SeriesID: seriesID, ChapterNumber: number,
		Title: title, SourceURL: sourceURL, CreatedAt: now, UpdatedAt: now,
	}
	for _, img := range images {
		chapter.Images = append(chapter.Images, &models.ChapterImage{
			ChapterID: chapterID, ImageOrder: img.Order,
			ImageURL: img.PublicURL, StorageKey: img.StorageKey,
		})
	}
	return chapter, nil
}

// ReplaceChapter is the repair path. If a chapter exists at (seriesID,
// number) its source_url/title are updated, its old image rows deleted and
// the new set inserted, all in one transaction; otherwise the chapter is
// created. It returns the storage keys of the replaced images so the caller
// can clean up the old objects.
func (s *Store) ReplaceChapter(seriesID int64, number float64, title, sourceURL string, images []*models.StoredImage) (*models.Chapter, []string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	var chapterID int64
	var oldKeys []string
	err = tx.QueryRow("SELECT id FROM series_chapters WHERE series_id = ? AND chapter_number = ?",
		seriesID, number).Scan(&chapterID)
	switch {
	case err == sql.ErrNoRows:
		res, err := tx.Exec(`
			INSERT INTO series_chapters (series_id, chapter_number, title, source_url, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			seriesID, number, title, sourceURL, now, now)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to insert chapter %g: %w", number, err)
		}
		chapterID, _ = res.LastInsertId()
	case err != nil:
		return nil, nil, err
	default:
		rows, err := tx.Query("SELECT storage_key FROM chapter_images WHERE chapter_id = ? AND storage_key != ''", chapterID)
		if err != nil {
			return nil, nil, err
		}
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				rows.Close()
				return nil, nil, err
			}
			oldKeys = append(oldKeys, key)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, nil, err
		}

		if _, err := tx.Exec("DELETE FROM chapter_images WHERE chapter_id = ?", chapterID); err != nil {
			return nil, nil, fmt.Errorf("failed to delete old images: %w", err)
		}
		if _, err := tx.Exec("UPDATE series_chapters SET title = ?, source_url = ?, updated_at = ? WHERE id = ?",
			title, sourceURL, now, chapterID); err != nil {
			return nil, nil, fmt.Errorf("failed to update chapter %g: %w", number, err)
		}
	}

	if err := insertImages(tx, chapterID, images); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	chapter := &models.Chapter{
		ID: chapterID, SeriesID: seriesID, ChapterNumber: number,
		Title: title, SourceURL: sourceURL, UpdatedAt: now,
	}
	for _, img := range images {
		chapter.Images = append(chapter.Images, &models.ChapterImage{
			ChapterID: chapterID, ImageOrder: img.Order,
			ImageURL: img.PublicURL, StorageKey: img.StorageKey,
		})
	}
	return chapter, oldKeys, nil
}

func insertImages(tx *sql.Tx, chapterID int64, images []*models.StoredImage) error {
	stmt, err := tx.Prepare("INSERT INTO chapter_images (chapter_id, image_order, image_url, storage_key) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, img := range images {
		if _, err := stmt.Exec(chapterID, img.Order, img.PublicURL, img.StorageKey); err != nil {
			return fmt.Errorf("failed to insert image %d: %w", img.Order, err)
		}
	}
	return nil
}

// GetChaptersBySeries returns a series' chapters in ascending number order,
// without their image sets.
func (s *Store) GetChaptersBySeries(seriesID int64) ([]*models.Chapter, error) {
	rows, err := s.db.Query(`
		SELECT id, series_id, chapter_number, title, source_url, created_at, updated_at
		FROM series_chapters WHERE series_id = ? ORDER BY chapter_number`, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Chapter
	for rows.Next() {
		var c models.Chapter
		if err := rows.Scan(&c.ID, &c.SeriesID, &c.ChapterNumber, &c.Title, &c.SourceURL, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// GetChapterByNumber fetches one chapter and its ordered image set.
func (s *Store) GetChapterByNumber(seriesID int64, number float64) (*models.Chapter, error) {
	var c models.Chapter
	err := s.db.QueryRow(`
		SELECT id, series_id, chapter_number, title, source_url, created_at, updated_at
		FROM series_chapters WHERE series_id = ? AND chapter_number = ?`,
		seriesID, number).Scan(&c.ID, &c.SeriesID, &c.ChapterNumber, &c.Title, &c.SourceURL, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrChapterNotFound
	}
	if err != nil {
		return nil, err
	}

	images, err := s.GetChapterImages(c.ID)
	if err != nil {
		return nil, err
	}
	c.Images = images
	return &c, nil
}

// GetChapterImages returns a chapter's images ordered by image_order.
func (s *Store) GetChapterImages(chapterID int64) ([]*models.ChapterImage, error) {
	rows, err := s.db.Query(`
		SELECT id, chapter_id, image_order, image_url, storage_key
		FROM chapter_images WHERE chapter_id = ? ORDER BY image_order`, chapterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ChapterImage
	for rows.Next() {
		var img models.ChapterImage
		if err := rows.Scan(&img.ID, &img.ChapterID, &img.ImageOrder, &img.ImageURL, &img.StorageKey); err != nil {
			return nil, err
		}
		out = append(out, &img)
	}
	return out, rows.Err()
}

// GetStorageKeysForSeries returns every storage key referenced by a series'
// chapters. The purge job uses this to remove the series' objects.
func (s *Store) GetStorageKeysForSeries(seriesID int64) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT ci.storage_key FROM chapter_images ci
		JOIN series_chapters c ON ci.chapter_id = c.id
		WHERE c.series_id = ? AND ci.storage_key != ''`, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

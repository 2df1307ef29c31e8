package store_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/corvida/mangrove/internal/models"
	"github.com/corvida/mangrove/internal/store"
	"github.com/corvida/mangrove/internal/testutil"
)

func storedImages(n int, prefix string) []*models.StoredImage {
	var images []*models.StoredImage
	for i := 1; i <= n; i++ {
		images = append(images, &models.StoredImage{
			SourceURL:  fmt.Sprintf("https://source.test/%s/%d.jpg", prefix, i),
			StorageKey: fmt.Sprintf("images/%s-%d.jpg", prefix, i),
			PublicURL:  fmt.Sprintf("/static/images/%s-%d.jpg", prefix, i),
			Order:      i,
		})
	}
	return images
}

func TestCreateChapterWithImages(t *testing.T) {
	db := testutil.SetupTestDB(t)
	st := store.New(db)
	seriesID := testutil.InsertSeries(t, db, "Solo", "https://source.test/s", "ongoing", time.Now())

	chapter, err := st.CreateChapterWithImages(seriesID, 4, "Chapter 4", "https://source.test/s/ch-4", storedImages(3, "ch4"))
	if err != nil {
		t.Fatalf("CreateChapterWithImages failed: %v", err)
	}
	if chapter.ID == 0 || len(chapter.Images) != 3 {
		t.Fatalf("Unexpected chapter: %+v", chapter)
	}

	got, err := st.GetChapterByNumber(seriesID, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Images) != 3 {
		t.Fatalf("Expected 3 images, got %d", len(got.Images))
	}
	for i, img := range got.Images {
		if img.ImageOrder != i+1 {
			t.Errorf("Image %d out of order: %d", i, img.ImageOrder)
		}
	}
}

func TestCreateChapterRollsBackOnBadImage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	st := store.New(db)
	seriesID := testutil.InsertSeries(t, db, "Solo", "https://source.test/s", "ongoing", time.Now())

	// Two images with the same order violate the unique constraint; the
	// chapter row must roll back with them.
	images := storedImages(2, "ch4")
	images[1].Order = 1
	_, err := st.CreateChapterWithImages(seriesID, 4, "Chapter 4", "https://source.test/s/ch-4", images)
	if err == nil {
		t.Fatal("Expected insert to fail")
	}

	numbers, err := st.GetChapterNumbers(seriesID)
	if err != nil {
		t.Fatal(err)
	}
	if len(numbers) != 0 {
		t.Errorf("Chapter row survived a failed image insert: %v", numbers)
	}
	var count int
	db.QueryRow("SELECT COUNT(*) FROM chapter_images").Scan(&count)
	if count != 0 {
		t.Errorf("Expected no image rows, got %d", count)
	}
}

func TestChapterUniquePerSeries(t *testing.T) {
	db := testutil.SetupTestDB(t)
	st := store.New(db)
	seriesID := testutil.InsertSeries(t, db, "Solo", "https://source.test/s", "ongoing", time.Now())

	if _, err := st.CreateChapterWithImages(seriesID, 4, "Chapter 4", "https://source.test/s/ch-4", nil); err != nil {
		t.Fatal(err)
	}
	_, err := st.CreateChapterWithImages(seriesID, 4, "Chapter 4 again", "https://source.test/s/ch-4b", nil)
	if err == nil {
		t.Error("Expected duplicate chapter number to be rejected")
	}
}

func TestReplaceChapter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	st := store.New(db)
	seriesID := testutil.InsertSeries(t, db, "Solo", "https://source.test/s", "ongoing", time.Now())

	if _, err := st.CreateChapterWithImages(seriesID, 4, "Chapter 4", "https://source.test/s/ch-4", storedImages(2, "old")); err != nil {
		t.Fatal(err)
	}

	chapter, oldKeys, err := st.ReplaceChapter(seriesID, 4, "Chapter 4 fixed", "https://source.test/s/ch-4-fixed", storedImages(3, "new"))
	if err != nil {
		t.Fatalf("ReplaceChapter failed: %v", err)
	}
	if len(oldKeys) != 2 {
		t.Errorf("Expected 2 replaced keys, got %v", oldKeys)
	}
	if len(chapter.Images) != 3 {
		t.Errorf("Expected 3 new images, got %d", len(chapter.Images))
	}

	got, err := st.GetChapterByNumber(seriesID, 4)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Chapter 4 fixed" || got.SourceURL != "https://source.test/s/ch-4-fixed" {
		t.Errorf("Chapter metadata not updated: %+v", got)
	}
	if len(got.Images) != 3 {
		t.Fatalf("Expected 3 images after replace, got %d", len(got.Images))
	}
	for _, img := range got.Images {
		if img.StorageKey == "images/old-1.jpg" || img.StorageKey == "images/old-2.jpg" {
			t.Errorf("Old image row survived the replace: %s", img.StorageKey)
		}
	}

	// Only one chapter row may exist at this number.
	chapters, _ := st.GetChaptersBySeries(seriesID)
	if len(chapters) != 1 {
		t.Errorf("Expected 1 chapter, got %d", len(chapters))
	}
}

func TestReplaceChapterCreatesWhenMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	st := store.New(db)
	seriesID := testutil.InsertSeries(t, db, "Solo", "https://source.test/s", "ongoing", time.Now())

	chapter, oldKeys, err := st.ReplaceChapter(seriesID, 7.5, "Chapter 7.5", "https://source.test/s/ch-7-5", storedImages(1, "ch75"))
	if err != nil {
		t.Fatalf("ReplaceChapter failed: %v", err)
	}
	if len(oldKeys) != 0 {
		t.Errorf("Expected no replaced keys on create, got %v", oldKeys)
	}
	if chapter.ChapterNumber != 7.5 {
		t.Errorf("Unexpected chapter number %g", chapter.ChapterNumber)
	}
}

func TestGetStorageKeysForSeries(t *testing.T) {
	db := testutil.SetupTestDB(t)
	st := store.New(db)
	seriesID := testutil.InsertSeries(t, db, "Solo", "https://source.test/s", "ongoing", time.Now())
	otherID := testutil.InsertSeries(t, db, "Other", "https://source.test/o", "ongoing", time.Now())

	if _, err := st.CreateChapterWithImages(seriesID, 1, "", "https://source.test/s/ch-1", storedImages(2, "s1")); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateChapterWithImages(seriesID, 2, "", "https://source.test/s/ch-2", storedImages(2, "s2")); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateChapterWithImages(otherID, 1, "", "https://source.test/o/ch-1", storedImages(1, "o1")); err != nil {
		t.Fatal(err)
	}

	keys, err := st.GetStorageKeysForSeries(seriesID)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 4 {
		t.Errorf("Expected 4 keys for the series, got %v", keys)
	}
	for _, k := range keys {
		if k == "images/o1-1.jpg" {
			t.Error("Key from another series leaked into the purge set")
		}
	}
}

func TestCascadeDeleteSeries(t *testing.T) {
	db := testutil.SetupTestDB(t)
	st := store.New(db)
	seriesID := testutil.InsertSeries(t, db, "Solo", "https://source.test/s", "ongoing", time.Now())
	if _, err := st.CreateChapterWithImages(seriesID, 1, "", "https://source.test/s/ch-1", storedImages(2, "s1")); err != nil {
		t.Fatal(err)
	}

	if err := st.DeleteSeries(seriesID); err != nil {
		t.Fatal(err)
	}

	var chapters, images int
	db.QueryRow("SELECT COUNT(*) FROM series_chapters").Scan(&chapters)
	db.QueryRow("SELECT COUNT(*) FROM chapter_images").Scan(&images)
	if chapters != 0 || images != 0 {
		t.Errorf("Cascade delete left %d chapters and %d images", chapters, images)
	}
}

// Package imaging downloads chapter page images, re-encodes them into
// compact JPEGs and uploads them to object storage.
package imaging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	_ "image/gif" // Register GIF decoder
	_ "image/png" // Register PNG decoder

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp" // Register WebP decoder; many sources serve webp

	"github.com/corvida/mangrove/internal/config"
	"github.com/corvida/mangrove/internal/fetch"
	"github.com/corvida/mangrove/internal/models"
	"github.com/corvida/mangrove/internal/storage"
)

// Stage identifies where in the pipeline an image failed.
type Stage string

const (
	StageDownload Stage = "download"
	StageDecode   Stage = "decode"
	StageEncode   Stage = "encode"
	StageStore    Stage = "store"
)

// Error wraps a per-image failure with the stage it happened in.
type Error struct {
	Stage Stage
	URL   string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("image %s failed at %s: %v", e.URL, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Pipeline re-encodes source images and persists them. It is safe for
// concurrent use.
type Pipeline struct {
	fetcher *fetch.Client
	store   storage.Backend
	cfg     config.IngestConfig
}

// New creates a Pipeline.
func New(fetcher *fetch.Client, store storage.Backend, cfg config.IngestConfig) *Pipeline {
	return &Pipeline{fetcher: fetcher, store: store, cfg: cfg}
}

// Key returns the content-addressed storage key for a source image URL. The
// same source URL always maps to the same key, so re-processing a chapter
// never duplicates storage objects.
func Key(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return "images/" + hex.EncodeToString(sum[:])[:20] + ".jpg"
}

// Process downloads, re-encodes and stores a single image. If the object
// already exists under its key the download is skipped entirely.
func (p *Pipeline) Process(ctx context.Context, sourceURL string) (*models.StoredImage, error) {
	key := Key(sourceURL)

	if ok, err := p.store.Exists(key); err == nil && ok {
		return &models.StoredImage{SourceURL: sourceURL, StorageKey: key, PublicURL: p.store.PublicURL(key)}, nil
	}

	raw, err := p.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, &Error{Stage: StageDownload, URL: sourceURL, Err: err}
	}

	encoded, err := p.reencode(raw)
	if err != nil {
		return nil, err
	}

	if err := p.store.Put(key, encoded); err != nil {
		return nil, &Error{Stage: StageStore, URL: sourceURL, Err: err}
	}

	return &models.StoredImage{SourceURL: sourceURL, StorageKey: key, PublicURL: p.store.PublicURL(key)}, nil
}

func (p *Pipeline) reencode(raw []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &Error{Stage: StageDecode, Err: err}
	}

	maxWidth := p.cfg.MaxImageWidth
	if maxWidth <= 0 {
		maxWidth = 1200
	}
	if img.Bounds().Dx() > maxWidth {
		img = resize.Resize(uint(maxWidth), 0, img, resize.Lanczos3)
	}

	quality := p.cfg.JPEGQuality
	if quality <= 0 {
		quality = 80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, &Error{Stage: StageEncode, Err: err}
	}
	return buf.Bytes(), nil
}

// ProcessChapter runs Process over all page images of one chapter with
// bounded parallelism, preserving source order in the result. The first
// failure cancels the remaining work and fails the whole chapter: partial
// image sets are never returned.
func (p *Pipeline) ProcessChapter(ctx context.Context, imageURLs []string) ([]*models.StoredImage, error) {
	if len(imageURLs) == 0 {
		return nil, fmt.Errorf("chapter has no images")
	}

	workers := p.cfg.ImageWorkers
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*models.StoredImage, len(imageURLs))
	errs := make([]error, len(imageURLs))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, u := range imageURLs {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			stored, err := p.Process(ctx, u)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			stored.Order = i + 1
			results[i] = stored
		}(i, u)
	}
	wg.Wait()

	// Prefer the root-cause failure over the cancellations it triggered.
	var firstErr error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if err != context.Canceled && err != context.DeadlineExceeded {
			return nil, err
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// Shared test setup utilities, which simplify the API and pipeline tests.

package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/corvida/mangrove/internal/api"
	"github.com/corvida/mangrove/internal/config"
	"github.com/corvida/mangrove/internal/core"
	"github.com/corvida/mangrove/internal/fetch"
	"github.com/corvida/mangrove/internal/imaging"
	"github.com/corvida/mangrove/internal/reconcile"
	"github.com/corvida/mangrove/internal/store"
	"github.com/corvida/mangrove/internal/websocket"
)

// TestConfig returns a config with fast, test-friendly ingest settings.
func TestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Ingest = config.IngestConfig{
		Workers:              2,
		ImageWorkers:         2,
		DefaultCheckInterval: 60,
		FetchTimeout:         5 * time.Second,
		MaxRetries:           1,
		RetryBaseDelay:       time.Millisecond,
		MaxResponseBytes:     10 * 1024 * 1024,
		RateLimitRPS:         1000,
		MaxImageWidth:        1200,
		JPEGQuality:          80,
	}
	return cfg
}

// SetupTestApp creates a core.App backed by an in-memory database.
func SetupTestApp(t *testing.T) *core.App {
	t.Helper()
	db := SetupTestDB(t)

	hub := websocket.NewHub()
	go hub.Run()
	return core.NewForTest(TestConfig(), db, hub)
}

// SetupTestServer initializes a full core.App and api.Server for integration
// testing. The server uses an in-memory storage backend.
func SetupTestServer(t *testing.T) (*api.Server, *sql.DB) {
	t.Helper()
	app := SetupTestApp(t)

	backend := NewMemoryBackend()
	fetcher := fetch.NewClient(app.Config().Ingest)
	pipeline := imaging.New(fetcher, backend, app.Config().Ingest)
	rec := reconcile.New(store.New(app.DB()), fetcher, pipeline, app.WsHub())

	server := api.NewServer(app, rec, backend)
	return server, app.DB()
}

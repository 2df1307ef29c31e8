package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corvida/mangrove/internal/api"
	"github.com/corvida/mangrove/internal/core"
	"github.com/corvida/mangrove/internal/extract"
	"github.com/corvida/mangrove/internal/fetch"
	"github.com/corvida/mangrove/internal/imaging"
	"github.com/corvida/mangrove/internal/jobs"
	"github.com/corvida/mangrove/internal/reconcile"
	"github.com/corvida/mangrove/internal/scheduler"
	"github.com/corvida/mangrove/internal/storage"
	"github.com/corvida/mangrove/internal/store"
)

var version = "dev"

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize the core application components
	app, err := core.New(version)
	if err != nil {
		log.Fatalf("Fatal error during application setup: %v", err)
	}
	defer app.Close()

	st := store.New(app.DB())

	// Clear leases and interrupted deletions left behind by a crash so those
	// series get picked up again.
	if n, err := st.ResetStaleProcessing(); err != nil {
		log.Fatalf("Could not reset in-flight series: %v", err)
	} else if n > 0 {
		log.Printf("Reset %d series left in-flight by a previous run.", n)
	}

	// Register selector rules for known source hosts here. Hosts without an
	// entry use extract.DefaultRules.
	extract.RegisterRules("mangakakalot.com", extract.Rules{
		ChapterItem:   "div.chapter-list div.row",
		ChapterLink:   "a",
		PageImage:     "div.container-chapter-reader img",
		PageImageAttr: "src",
	})

	backend, err := storage.NewLocal(app.Config().Storage.Path, app.Config().Storage.BaseURL)
	if err != nil {
		log.Fatalf("Could not initialize storage backend: %v", err)
	}

	fetcher := fetch.NewClient(app.Config().Ingest)
	pipeline := imaging.New(fetcher, backend, app.Config().Ingest)
	rec := reconcile.New(st, fetcher, pipeline, app.WsHub())
	sched := scheduler.New(st, rec, backend, app.Config().Ingest)

	// Register the background jobs and start the tick scheduler.
	app.JobManager().Register("series-sweep", "Series Sweep", func(ctx jobs.JobContext) {
		sched.RunPass(context.Background())
	})
	app.JobManager().Register("series-purge", "Series Purge", func(ctx jobs.JobContext) {
		sched.RunPurge(context.Background())
	})
	jobs.StartJobs(app)

	// Setup the API server
	server := api.NewServer(app, rec, backend)
	addr := fmt.Sprintf(":%d", app.Config().Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		log.Printf("Starting web server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %v", err)
		}
	}()

	// Wait for an interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Create a context with a timeout to allow existing connections to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Attempt a graceful shutdown.
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}

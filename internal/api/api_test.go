package api_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/corvida/mangrove/internal/api"
	"github.com/corvida/mangrove/internal/auth"
	"github.com/corvida/mangrove/internal/fetch"
	"github.com/corvida/mangrove/internal/imaging"
	"github.com/corvida/mangrove/internal/reconcile"
	"github.com/corvida/mangrove/internal/store"
	"github.com/corvida/mangrove/internal/testutil"
)

const adminToken = "test-admin-token"

var (
	adminHashOnce sync.Once
	adminHash     string
)

// setupAdminServer builds a full server with the admin API enabled.
func setupAdminServer(t *testing.T) (http.Handler, *sql.DB, *testutil.MemoryBackend) {
	t.Helper()
	adminHashOnce.Do(func() {
		var err error
		adminHash, err = auth.HashToken(adminToken)
		if err != nil {
			panic(err)
		}
	})

	app := testutil.SetupTestApp(t)
	app.Config().Admin.TokenHash = adminHash

	backend := testutil.NewMemoryBackend()
	fetcher := fetch.NewClient(app.Config().Ingest)
	pipeline := imaging.New(fetcher, backend, app.Config().Ingest)
	rec := reconcile.New(store.New(app.DB()), fetcher, pipeline, app.WsHub())

	server := api.NewServer(app, rec, backend)
	return server.Router(), app.DB(), backend
}

// doRequest performs a request against the router, optionally as admin.
func doRequest(t *testing.T, router http.Handler, method, path string, body any, asAdmin bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if asAdmin {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
}

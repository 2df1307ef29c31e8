package storage_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/corvida/mangrove/internal/storage"
)

func TestLocalBackend(t *testing.T) {
	backend, err := storage.NewLocal(t.TempDir(), "/static/")
	if err != nil {
		t.Fatal(err)
	}

	key := "images/abc123.jpg"
	if err := backend.Put(key, []byte("jpeg-bytes")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	ok, err := backend.Exists(key)
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true", ok, err)
	}

	data, err := backend.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("Unexpected data: %q", data)
	}

	if got := backend.PublicURL(key); got != "/static/images/abc123.jpg" {
		t.Errorf("PublicURL = %q", got)
	}

	if err := backend.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := backend.Get(key); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	// Deleting a missing object is not an error.
	if err := backend.Delete(key); err != nil {
		t.Errorf("Deleting a missing object should be a no-op, got %v", err)
	}
}

func TestLocalBackendRejectsEscapingKeys(t *testing.T) {
	root := t.TempDir()
	backend, err := storage.NewLocal(filepath.Join(root, "objects"), "/static")
	if err != nil {
		t.Fatal(err)
	}

	outside := filepath.Join(root, "secret.txt")
	os.WriteFile(outside, []byte("secret"), 0o644)

	for _, key := range []string{"../secret.txt", "/etc/passwd", "."} {
		if err := backend.Put(key, []byte("x")); err == nil {
			t.Errorf("Put(%q) should be rejected", key)
		}
		if _, err := backend.Get(key); err == nil {
			t.Errorf("Get(%q) should be rejected", key)
		}
	}
}

func TestLocalPutOverwrites(t *testing.T) {
	backend, err := storage.NewLocal(t.TempDir(), "/static")
	if err != nil {
		t.Fatal(err)
	}
	key := "images/x.jpg"
	if err := backend.Put(key, []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := backend.Put(key, []byte("two")); err != nil {
		t.Fatalf("Overwriting Put failed: %v", err)
	}
	data, _ := backend.Get(key)
	if string(data) != "two" {
		t.Errorf("Expected overwritten data, got %q", data)
	}
}

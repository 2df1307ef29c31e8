// Package storage abstracts the object store that holds re-encoded page
// images. Keys are plain strings; callers never touch paths directly.
package storage

import "errors"

var ErrNotFound = errors.New("storage: object not found")

// Backend is the put/get blob API consumed by the image pipeline.
type Backend interface {
	// Put writes data under key, overwriting any existing object. Put with
	// the same key and data must be safe to repeat.
	Put(key string, data []byte) error
	Get(key string) ([]byte, error)
	Exists(key string) (bool, error)
	Delete(key string) error
	// PublicURL returns the URL readers use to fetch the object.
	PublicURL(key string) string
}

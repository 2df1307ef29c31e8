package testutil

import (
	"sync"

	"github.com/corvida/mangrove/internal/storage"
)

// MemoryBackend is an in-memory storage.Backend for tests.
type MemoryBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	// FailKeys makes Put and Delete fail for specific keys, to exercise
	// storage error paths.
	FailKeys map[string]error
	puts     int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		objects:  make(map[string][]byte),
		FailKeys: make(map[string]error),
	}
}

func (m *MemoryBackend) Put(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailKeys[key]; err != nil {
		return err
	}
	m.objects[key] = append([]byte(nil), data...)
	m.puts++
	return nil
}

func (m *MemoryBackend) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (m *MemoryBackend) Exists(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryBackend) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailKeys[key]; err != nil {
		return err
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryBackend) PublicURL(key string) string {
	return "/static/" + key
}

// PutCount returns how many Put calls succeeded.
func (m *MemoryBackend) PutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// ObjectCount returns how many objects the backend holds.
func (m *MemoryBackend) ObjectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

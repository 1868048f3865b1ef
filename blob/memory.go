package blob

import (
	"bytes"
	"context"
	"sync"

	"github.com/fieldline/fieldline"
)

// Compile-time interface check.
var _ ArchiveStore = (*Memory)(nil)

// Memory is an in-process ArchiveStore for tests and single-node setups.
// Payloads are copied on both write and read so callers can never mutate
// stored bytes.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemory creates an empty in-memory archive store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

// Put stores a copy of the payload under key.
func (m *Memory) Put(_ context.Context, key string, payload []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = bytes.Clone(payload)

	return nil
}

// Get returns a copy of the payload stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	payload, ok := m.blobs[key]
	if !ok {
		return nil, fieldline.ErrSnapshotNotFound
	}

	return bytes.Clone(payload), nil
}

// Exists reports whether a payload is stored under key.
func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[key]

	return ok, nil
}

// Len reports how many snapshots are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.blobs)
}

// Close is a no-op for the memory store.
func (m *Memory) Close() error { return nil }

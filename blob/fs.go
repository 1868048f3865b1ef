package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldline/fieldline"
)

// Compile-time interface check.
var _ ArchiveStore = (*FS)(nil)

// FS stores snapshots as JSON files under a root directory, one file per
// job at root/tenantID/jobID.json. Suited to single-node deployments that
// want snapshots on local disk where ordinary backup tooling picks them up.
type FS struct {
	root string
}

// NewFS creates the root directory if needed and returns a store over it.
func NewFS(root string) (*FS, error) {
	if root == "" {
		return nil, errors.New("blob: fs root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root %s: %w", root, err)
	}

	return &FS{root: root}, nil
}

// Root returns the directory snapshots are written under.
func (f *FS) Root() string { return f.root }

func (f *FS) path(key string) string {
	return filepath.Join(f.root, filepath.FromSlash(key)+".json")
}

// Put writes the payload to the key's file, replacing any previous one.
func (f *FS) Put(_ context.Context, key string, payload []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	p := f.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("blob: put %s: %w", key, err)
	}
	if err := os.WriteFile(p, payload, 0o644); err != nil {
		return fmt.Errorf("blob: put %s: %w", key, err)
	}

	return nil
}

// Get reads the payload stored under key.
func (f *FS) Get(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	payload, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fieldline.ErrSnapshotNotFound
		}

		return nil, fmt.Errorf("blob: get %s: %w", key, err)
	}

	return payload, nil
}

// Exists reports whether the key's file is present.
func (f *FS) Exists(_ context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	if _, err := os.Stat(f.path(key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("blob: exists %s: %w", key, err)
	}

	return true, nil
}

// Close is a no-op for the filesystem store.
func (f *FS) Close() error { return nil }

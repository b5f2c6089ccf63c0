package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStore writes files below Dir. References are PublicURL + "/" + key, and
// the router serves Dir at PublicURL.
type DiskStore struct {
	Dir       string
	PublicURL string
	MaxBytes  int64
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore creates dir if needed.
func NewDiskStore(dir, publicURL string, maxBytes int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{Dir: dir, PublicURL: publicURL, MaxBytes: maxBytes}, nil
}

// Put streams r into a temp file and renames it into place, so readers never
// see a partial upload.
func (s *DiskStore) Put(ctx context.Context, key, _ string, r io.Reader, _ int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	src := r
	if s.MaxBytes > 0 {
		src = io.LimitReader(r, s.MaxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if s.MaxBytes > 0 && n > s.MaxBytes {
		return "", ErrTooLarge
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("commit upload: %w", err)
	}
	return joinRef(s.PublicURL, key), nil
}

// Delete removes the file behind ref. A missing file is not an error.
func (s *DiskStore) Delete(_ context.Context, ref string) error {
	key, err := keyFromRef(s.PublicURL, ref)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.Dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

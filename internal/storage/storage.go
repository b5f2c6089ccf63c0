// Package storage keeps uploaded files (profile and client images) on local
// disk or in an S3-compatible bucket. A stored file is addressed by its
// reference, the public URL persisted on the owning record.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedType is returned for uploads that are not an allowed image type.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrTooLarge is returned when an upload exceeds the configured size.
	ErrTooLarge = errors.New("file too large")
	// ErrForeignRef is returned by Delete for references this store did not issue.
	ErrForeignRef = errors.New("reference not owned by this store")
)

// Store persists blobs under a key and hands back a public reference.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error)
	Delete(ctx context.Context, ref string) error
}

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// NewKey returns a fresh object key under prefix for an image of the given
// content type.
func NewKey(prefix, contentType string) (string, error) {
	ext, ok := imageExt[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", ErrUnsupportedType
	}
	return path.Join(prefix, uuid.NewString()+ext), nil
}

// keyFromRef strips base from ref. Refs that do not start with base, or that
// try to climb out of it, are not ours.
func keyFromRef(base, ref string) (string, error) {
	key, ok := strings.CutPrefix(ref, strings.TrimRight(base, "/")+"/")
	if !ok || key == "" {
		return "", ErrForeignRef
	}
	clean := path.Clean(key)
	if clean != key || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", ErrForeignRef
	}
	return key, nil
}

func joinRef(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-advisor-backend/internal/storage"
)

// Upload is an image received with a profile or client update.
type Upload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

// putImage stores up under prefix and returns its reference.
func putImage(ctx context.Context, st storage.Store, prefix string, up *Upload) (string, error) {
	if st == nil {
		return "", fmt.Errorf("%w: uploads are disabled", ErrInvalidUpload)
	}
	key, err := storage.NewKey(prefix, up.ContentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	ref, err := st.Put(ctx, key, up.ContentType, up.Body, up.Size)
	if errors.Is(err, storage.ErrTooLarge) {
		return "", fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	return ref, err
}

// dropImage removes ref, logging instead of failing.
func dropImage(ctx context.Context, st storage.Store, ref string) {
	if st == nil || ref == "" {
		return
	}
	if err := st.Delete(ctx, ref); err != nil && !errors.Is(err, storage.ErrForeignRef) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("ref", ref).Msg("could not remove old image")
	}
}

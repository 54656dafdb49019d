package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	apperrors "campusmarket/internal/errors"
)

// accepted maps sniffed MIME types to the extension used for stored files.
var accepted = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Inspect sniffs data and checks that its header decodes as an image. It
// returns the canonical MIME type and file extension.
func Inspect(data []byte) (contentType, ext string, err error) {
	mt := mimetype.Detect(data)
	for mime, e := range accepted {
		if mt.Is(mime) {
			contentType, ext = mime, e
			break
		}
	}
	if ext == "" {
		return "", "", fmt.Errorf("%w (got %s)", apperrors.ErrInvalidImage, mt.String())
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", "", fmt.Errorf("%w: %v", apperrors.ErrInvalidImage, err)
	}
	return contentType, ext, nil
}

// Uploader validates raw uploads and hands them to an ImageStore under a
// random name.
type Uploader struct {
	store    ImageStore
	maxBytes int64
}

// NewUploader creates an Uploader rejecting uploads larger than maxBytes.
func NewUploader(store ImageStore, maxBytes int64) *Uploader {
	return &Uploader{store: store, maxBytes: maxBytes}
}

// Upload reads r, validates it and stores it as <uuid><ext>.
func (u *Uploader) Upload(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, u.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > u.maxBytes {
		return "", fmt.Errorf("%w: image larger than %d bytes", apperrors.ErrInvalidInput, u.maxBytes)
	}

	contentType, ext, err := Inspect(data)
	if err != nil {
		return "", err
	}

	url, err := u.store.Save(ctx, uuid.NewString()+ext, contentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return url, nil
}

// Remove deletes a previously uploaded image.
func (u *Uploader) Remove(ctx context.Context, url string) error {
	return u.store.Delete(ctx, url)
}

package storage

import (
	"context"
	"io"
)

// ImageStore persists uploaded item images and resolves them to public URLs.
type ImageStore interface {
	// Save stores r under name and returns the URL clients should use.
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	// Delete removes the object behind url. URLs the store did not produce
	// are ignored.
	Delete(ctx context.Context, url string) error
}

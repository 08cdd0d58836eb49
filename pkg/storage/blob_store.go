package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Blob is a stored upload and the signed URL under which it can be retrieved.
type Blob struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BlobStore stores uploaded documents and hands out signed retrieval URLs.
type BlobStore struct {
	files         *LocalStorage
	signer        *SignedURLSigner
	publicBaseURL string
}

// NewBlobStore wires local storage with a URL signer.
func NewBlobStore(files *LocalStorage, signer *SignedURLSigner, publicBaseURL string) *BlobStore {
	return &BlobStore{files: files, signer: signer, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Put stores the content under a collision-free key grouped by owner and returns its signed URL.
func (b *BlobStore) Put(ctx context.Context, owner, filename string, content io.Reader) (*Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := sanitizeFilename(filename)
	key := path.Join(owner, uuid.NewString()+"-"+name)
	size, err := b.files.SaveStream(key, content)
	if err != nil {
		return nil, err
	}
	url, expiresAt, err := b.URL(owner, key)
	if err != nil {
		_ = b.files.Delete(key)
		return nil, err
	}
	return &Blob{Key: key, URL: url, Size: size, ExpiresAt: expiresAt}, nil
}

// URL signs a retrieval URL for an existing key.
func (b *BlobStore) URL(owner, key string) (string, time.Time, error) {
	token, expiresAt, err := b.signer.Generate(owner, key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign upload url: %w", err)
	}
	return b.publicBaseURL + "/" + token, expiresAt, nil
}

// Delete removes a stored blob. Missing keys are not an error.
func (b *BlobStore) Delete(key string) error {
	return b.files.Delete(key)
}

// Open validates a signed token and opens the referenced file.
func (b *BlobStore) Open(token string) (*os.File, string, error) {
	_, key, _, err := b.signer.Parse(token, false)
	if err != nil {
		return nil, "", err
	}
	file, err := b.files.Open(key)
	if err != nil {
		return nil, "", err
	}
	return file, path.Base(key), nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == "/" || base == "" {
		return "document"
	}
	var builder strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}
	return builder.String()
}

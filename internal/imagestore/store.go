// Package imagestore persists uploaded image blobs in the key-value store.
// Each image is two records: imgmeta:{key} holds JSON metadata and
// imgdata:{key} holds the raw payload.
package imagestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/tormodh/perch/internal/apperr"
	"github.com/tormodh/perch/internal/kvstore"
	"github.com/tormodh/perch/internal/models"
)

const (
	metaPrefix = "imgmeta:"
	dataPrefix = "imgdata:"

	// DefaultContentType is used when the upload declares no content type.
	DefaultContentType = "image/jpeg"
)

var unsafeFilenameRe = regexp.MustCompile(`[^A-Za-z0-9.-]`)

// SanitizeFilename replaces every character outside [A-Za-z0-9.-] with an
// underscore.
func SanitizeFilename(name string) string {
	return unsafeFilenameRe.ReplaceAllString(name, "_")
}

// DeriveKey builds the object key for an upload: {postId}-{sanitizedFilename}.
// Re-uploading the same filename under the same post id overwrites.
func DeriveKey(postID, filename string) string {
	return postID + "-" + SanitizeFilename(filename)
}

// Store reads and writes image blobs.
type Store struct {
	kv *kvstore.Store
}

// New creates a Store backed by kv.
func New(kv *kvstore.Store) *Store {
	return &Store{kv: kv}
}

// Save persists the stream under the key derived from postID and filename,
// recording content type, size, and a SHA-256 checksum. It returns the derived
// key on success.
func (s *Store) Save(_ context.Context, postID, filename string, r io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("imagestore: read upload: %w", err)
	}
	if contentType == "" {
		contentType = DefaultContentType
	}

	key := DeriveKey(postID, filename)
	sum := sha256.Sum256(data)
	meta := models.ImageMeta{
		Key:         key,
		PostID:      postID,
		ContentType: contentType,
		Size:        int64(len(data)),
		Checksum:    hex.EncodeToString(sum[:]),
		UploadedAt:  time.Now().UTC().Format(models.DateLayout),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("imagestore: encode meta %s: %w", key, err)
	}

	if err := s.kv.Put([]byte(dataPrefix+key), data); err != nil {
		return "", fmt.Errorf("imagestore: store %s: %w", key, err)
	}
	if err := s.kv.Put([]byte(metaPrefix+key), metaJSON); err != nil {
		return "", fmt.Errorf("imagestore: store meta %s: %w", key, err)
	}
	return key, nil
}

// Fetch returns the payload and metadata for key, or apperr.ErrNotFound.
func (s *Store) Fetch(_ context.Context, key string) ([]byte, *models.ImageMeta, error) {
	metaJSON, err := s.kv.Get([]byte(metaPrefix + key))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil, apperr.ErrNotFound
		}
		return nil, nil, fmt.Errorf("imagestore: fetch meta %s: %w", key, err)
	}
	var meta models.ImageMeta
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("imagestore: decode meta %s: %w", key, err)
	}
	data, err := s.kv.Get([]byte(dataPrefix + key))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil, apperr.ErrNotFound
		}
		return nil, nil, fmt.Errorf("imagestore: fetch %s: %w", key, err)
	}
	return data, &meta, nil
}

// Delete removes an image's metadata and payload. Unknown keys are a no-op.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := s.kv.Delete([]byte(metaPrefix + key)); err != nil {
		return fmt.Errorf("imagestore: delete meta %s: %w", key, err)
	}
	if err := s.kv.Delete([]byte(dataPrefix + key)); err != nil {
		return fmt.Errorf("imagestore: delete %s: %w", key, err)
	}
	return nil
}

// ListMeta returns metadata for every stored image, used by the orphan sweep.
func (s *Store) ListMeta(_ context.Context) ([]models.ImageMeta, error) {
	items, err := s.kv.ListPrefix([]byte(metaPrefix))
	if err != nil {
		return nil, fmt.Errorf("imagestore: list meta: %w", err)
	}
	out := make([]models.ImageMeta, 0, len(items))
	for _, item := range items {
		var meta models.ImageMeta
		if err := json.Unmarshal(item.Value, &meta); err != nil {
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

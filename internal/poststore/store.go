// Package poststore persists posts as JSON records in the key-value store and
// reconstructs the feed ordered by creation date.
package poststore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/tormodh/perch/internal/apperr"
	"github.com/tormodh/perch/internal/kvstore"
	"github.com/tormodh/perch/internal/models"
)

const keyPrefix = "post:"

// Store is the sole reader and writer of post records.
type Store struct {
	kv *kvstore.Store
}

// New creates a Store backed by kv.
func New(kv *kvstore.Store) *Store {
	return &Store{kv: kv}
}

func recordKey(id string) []byte {
	return []byte(keyPrefix + id)
}

// List returns all posts ordered by creation date descending (newest first).
// Records that fail to decode are skipped; a failing scan wraps
// apperr.ErrStoreUnavailable.
func (s *Store) List(_ context.Context) ([]models.Post, error) {
	items, err := s.kv.ListPrefix([]byte(keyPrefix))
	if err != nil {
		return nil, fmt.Errorf("poststore: list: %w: %w", apperr.ErrStoreUnavailable, err)
	}

	posts := make([]models.Post, 0, len(items))
	for _, item := range items {
		var p models.Post
		if err := json.Unmarshal(item.Value, &p); err != nil {
			slog.Warn("skipping undecodable post record",
				slog.String("key", string(item.Key)),
				slog.String("error", err.Error()))
			continue
		}
		posts = append(posts, p)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedTime().After(posts[j].CreatedTime())
	})
	return posts, nil
}

// Get returns the post with the given id, or apperr.ErrNotFound.
func (s *Store) Get(_ context.Context, id string) (*models.Post, error) {
	data, err := s.kv.Get(recordKey(id))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("poststore: get %s: %w", id, err)
	}
	var p models.Post
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("poststore: decode %s: %w", id, err)
	}
	return &p, nil
}

// Create writes a new post record. The caller supplies id and date.
func (s *Store) Create(_ context.Context, p models.Post) error {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("poststore: encode %s: %w", p.ID, err)
	}
	if err := s.kv.Put(recordKey(p.ID), data); err != nil {
		return fmt.Errorf("poststore: create %s: %w", p.ID, err)
	}
	return nil
}

// Update merges new tags and content onto an existing record, stamping
// updatedAt and preserving the original id and creation date.
// Returns apperr.ErrNotFound for an unknown id.
func (s *Store) Update(ctx context.Context, id string, tags []string, content string) (*models.Post, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}
	existing.Tags = tags
	existing.Content = content
	existing.UpdatedAt = time.Now().UTC().Format(models.DateLayout)

	data, err := json.Marshal(existing)
	if err != nil {
		return nil, fmt.Errorf("poststore: encode %s: %w", id, err)
	}
	if err := s.kv.Put(recordKey(id), data); err != nil {
		return nil, fmt.Errorf("poststore: update %s: %w", id, err)
	}
	return existing, nil
}

// Delete removes a post record. Deleting an unknown id is a no-op.
func (s *Store) Delete(_ context.Context, id string) error {
	if err := s.kv.Delete(recordKey(id)); err != nil {
		return fmt.Errorf("poststore: delete %s: %w", id, err)
	}
	return nil
}

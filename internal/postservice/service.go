// Package postservice coordinates post and image persistence for the admin
// workflow.
package postservice

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tormodh/perch/internal/imagestore"
	"github.com/tormodh/perch/internal/markdown"
	"github.com/tormodh/perch/internal/models"
	"github.com/tormodh/perch/internal/poststore"
	"github.com/tormodh/perch/internal/sse"
)

// Upload is an optional image attached to a create or update request.
type Upload struct {
	Filename    string
	ContentType string
	Reader      io.Reader
}

// Service coordinates the post store, the image store, and the event broker.
type Service struct {
	posts  *poststore.Store
	images *imagestore.Store
	broker *sse.Broker
}

// NewService creates a new post service. broker may be nil in tests.
func NewService(posts *poststore.Store, images *imagestore.Store, broker *sse.Broker) *Service {
	return &Service{posts: posts, images: images, broker: broker}
}

// ParseTags splits a comma-separated tag string, trims whitespace, and drops
// empties. Insertion order is preserved.
func ParseTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// attachImage stores the upload and returns content prefixed with a Markdown
// reference to it. Image storage is best-effort: on failure the submitted
// content is returned unchanged and the error is only logged, so the post
// still publishes.
func (s *Service) attachImage(ctx context.Context, postID, content string, up *Upload) string {
	if up == nil {
		return content
	}
	key, err := s.images.Save(ctx, postID, up.Filename, up.Reader, up.ContentType)
	if err != nil {
		slog.Warn("image upload failed, publishing content only",
			slog.String("post_id", postID),
			slog.String("filename", up.Filename),
			slog.String("error", err.Error()))
		return content
	}
	return markdown.ImageRef(up.Filename, key) + "\n\n" + content
}

// CreatePost persists a new post with a fresh id and creation date,
// attaching the upload when one is present.
func (s *Service) CreatePost(ctx context.Context, content, rawTags string, up *Upload) (*models.Post, error) {
	id := uuid.Must(uuid.NewV7()).String()

	post := models.Post{
		ID:      id,
		Date:    time.Now().UTC().Format(models.DateLayout),
		Tags:    ParseTags(rawTags),
		Content: s.attachImage(ctx, id, content, up),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	if s.broker != nil {
		s.broker.PublishPostEvent("created", id)
	}
	return &post, nil
}

// GetPost returns a single post by id.
func (s *Service) GetPost(ctx context.Context, id string) (*models.Post, error) {
	return s.posts.Get(ctx, id)
}

// ListPosts returns the feed, newest first.
func (s *Service) ListPosts(ctx context.Context) ([]models.Post, error) {
	return s.posts.List(ctx)
}

// UpdatePost replaces a post's tags and content, attaching a new upload when
// present. The original id and creation date are preserved; updatedAt is
// stamped. Last write wins.
func (s *Service) UpdatePost(ctx context.Context, id, content, rawTags string, up *Upload) (*models.Post, error) {
	post, err := s.posts.Update(ctx, id, ParseTags(rawTags), s.attachImage(ctx, id, content, up))
	if err != nil {
		return nil, err
	}
	if s.broker != nil {
		s.broker.PublishPostEvent("updated", id)
	}
	return post, nil
}

// DeletePost removes a post. Deleting an unknown id is a no-op. The stored
// images it referenced are left for the sweeper.
func (s *Service) DeletePost(ctx context.Context, id string) error {
	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}
	if s.broker != nil {
		s.broker.PublishPostEvent("deleted", id)
	}
	return nil
}

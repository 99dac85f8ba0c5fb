// Package sweep reconciles the image store against the post store, deleting
// blobs that no post references anymore. Creates issue two independent store
// writes with no rollback, so orphans are expected; this loop is the chosen
// cleanup policy.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/tormodh/perch/internal/imagestore"
	"github.com/tormodh/perch/internal/markdown"
	"github.com/tormodh/perch/internal/poststore"
)

// Sweeper periodically removes orphaned images.
type Sweeper struct {
	posts    *poststore.Store
	images   *imagestore.Store
	interval time.Duration
	grace    time.Duration
	logger   *slog.Logger
}

// New creates a Sweeper. grace protects images younger than that age from
// deletion so an in-flight create is never swept between its two writes.
func New(posts *poststore.Store, images *imagestore.Store, interval, grace time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{posts: posts, images: images, interval: interval, grace: grace, logger: logger}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				s.logger.Warn("image sweep failed", slog.String("error", err.Error()))
			} else if n > 0 {
				s.logger.Info("image sweep removed orphans", slog.Int("count", n))
			}
		}
	}
}

// Sweep performs one reconciliation pass and returns how many images were
// deleted. An image survives when its owning post still exists and its key is
// still referenced by that post's content.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return 0, err
	}
	referenced := make(map[string]struct{})
	for _, p := range posts {
		for _, key := range markdown.ImageKeys(p.Content) {
			referenced[key] = struct{}{}
		}
	}

	metas, err := s.images.ListMeta(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-s.grace)
	deleted := 0
	for _, meta := range metas {
		if _, ok := referenced[meta.Key]; ok {
			continue
		}
		uploaded := meta.UploadedTime()
		if uploaded.IsZero() || uploaded.After(cutoff) {
			continue
		}
		if err := s.images.Delete(ctx, meta.Key); err != nil {
			s.logger.Warn("failed to delete orphaned image",
				slog.String("key", meta.Key),
				slog.String("error", err.Error()))
			continue
		}
		deleted++
	}
	return deleted, nil
}

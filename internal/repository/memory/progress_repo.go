package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dom/streamgate/internal/domain"
	"github.com/google/uuid"
)

type progressKey struct {
	userID  uuid.UUID
	videoID uuid.UUID
}

type ProgressRepository struct {
	mu      sync.RWMutex
	entries map[progressKey]domain.WatchProgress
}

func NewProgressRepository() *ProgressRepository {
	return &ProgressRepository{entries: make(map[progressKey]domain.WatchProgress)}
}

func (r *ProgressRepository) Upsert(ctx context.Context, progress *domain.WatchProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := progressKey{userID: progress.UserID, videoID: progress.VideoID}
	now := time.Now()
	if progress.UpdatedAt.IsZero() {
		progress.UpdatedAt = now
	}
	if existing, ok := r.entries[key]; ok {
		progress.CreatedAt = existing.CreatedAt
	} else if progress.CreatedAt.IsZero() {
		progress.CreatedAt = now
	}
	r.entries[key] = *progress
	return nil
}

func (r *ProgressRepository) Get(ctx context.Context, userID, videoID uuid.UUID) (*domain.WatchProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	progress, ok := r.entries[progressKey{userID: userID, videoID: videoID}]
	if !ok {
		return nil, nil
	}
	return &progress, nil
}

func (r *ProgressRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.WatchProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := make([]*domain.WatchProgress, 0)
	for key, progress := range r.entries {
		if key.userID != userID {
			continue
		}
		p := progress
		history = append(history, &p)
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].UpdatedAt.After(history[j].UpdatedAt)
	})
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

func (r *ProgressRepository) StatsByVideo(ctx context.Context, videoID uuid.UUID) (*domain.VideoStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &domain.VideoStats{}
	for key, progress := range r.entries {
		if key.videoID != videoID {
			continue
		}
		stats.ViewCount++
		stats.TotalWatchTime += progress.SessionDuration
		if progress.Completed {
			stats.CompletionCount++
		}
	}
	return stats, nil
}

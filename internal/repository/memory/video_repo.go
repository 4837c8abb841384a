package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dom/streamgate/internal/domain"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type VideoRepository struct {
	mu     sync.RWMutex
	videos map[uuid.UUID]domain.Video
}

func NewVideoRepository() *VideoRepository {
	return &VideoRepository{videos: make(map[uuid.UUID]domain.Video)}
}

func (r *VideoRepository) CreateMany(ctx context.Context, videos []*domain.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for i, video := range videos {
		if video.ID == uuid.Nil {
			video.ID = uuid.New()
		}
		if video.CreatedAt.IsZero() {
			// Keep insertion order stable for listing.
			video.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
		r.videos[video.ID] = *video
	}
	return nil
}

func (r *VideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	video, ok := r.videos[id]
	if !ok {
		return nil, domain.ErrVideoNotFound
	}
	return &video, nil
}

func (r *VideoRepository) ListActive(ctx context.Context, limit, offset int) ([]*domain.Video, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]*domain.Video, 0, len(r.videos))
	for _, video := range r.videos {
		if !video.IsActive {
			continue
		}
		v := video
		active = append(active, &v)
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID.String() < active[j].ID.String()
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	total := int64(len(active))
	if offset >= len(active) {
		return []*domain.Video{}, total, nil
	}
	end := offset + limit
	if end > len(active) {
		end = len(active)
	}
	return active[offset:end], total, nil
}

func (r *VideoRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.videos)), nil
}

func (r *VideoRepository) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos = make(map[uuid.UUID]domain.Video)
	return nil
}

func (r *VideoRepository) UpdateSourceInfo(ctx context.Context, id uuid.UUID, durationSeconds *float64, info datatypes.JSON) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	video, ok := r.videos[id]
	if !ok {
		return domain.ErrVideoNotFound
	}
	if durationSeconds != nil {
		d := *durationSeconds
		video.DurationSeconds = &d
	}
	video.SourceInfo = info
	r.videos[id] = video
	return nil
}

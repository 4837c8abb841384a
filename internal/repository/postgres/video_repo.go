package postgres

import (
	"context"

	"github.com/dom/streamgate/internal/domain"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type videoRepository struct {
	db *gorm.DB
}

func NewVideoRepository(db *gorm.DB) *videoRepository {
	return &videoRepository{db: db}
}

func (r *videoRepository) CreateMany(ctx context.Context, videos []*domain.Video) error {
	if len(videos) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(videos).Error
}

func (r *videoRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Video, error) {
	var video domain.Video
	err := r.db.WithContext(ctx).First(&video, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, domain.ErrVideoNotFound)
	}
	return &video, nil
}

func (r *videoRepository) ListActive(ctx context.Context, limit, offset int) ([]*domain.Video, int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&domain.Video{}).Where("is_active = ?", true)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var videos []*domain.Video
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&videos).Error
	if err != nil {
		return nil, 0, err
	}
	return videos, total, nil
}

func (r *videoRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&domain.Video{}).Count(&total).Error
	return total, err
}

func (r *videoRepository) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.Video{}).Error
}

func (r *videoRepository) UpdateSourceInfo(ctx context.Context, id uuid.UUID, durationSeconds *float64, info datatypes.JSON) error {
	updates := map[string]interface{}{"source_info": info}
	if durationSeconds != nil {
		updates["duration_seconds"] = *durationSeconds
	}
	return r.db.WithContext(ctx).
		Model(&domain.Video{}).
		Where("id = ?", id).
		Updates(updates).Error
}

package postgres

import (
	"context"
	"errors"

	"github.com/dom/streamgate/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type progressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *progressRepository {
	return &progressRepository{db: db}
}

// Upsert writes the row for (user, video); the latest report wins.
func (r *progressRepository) Upsert(ctx context.Context, progress *domain.WatchProgress) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"position",
			"session_duration",
			"total_duration",
			"completed",
			"updated_at",
		}),
	}).Create(progress).Error
}

func (r *progressRepository) Get(ctx context.Context, userID, videoID uuid.UUID) (*domain.WatchProgress, error) {
	var progress domain.WatchProgress
	err := r.db.WithContext(ctx).
		First(&progress, "user_id = ? AND video_id = ?", userID, videoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *progressRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.WatchProgress, error) {
	var history []*domain.WatchProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&history).Error
	if err != nil {
		return nil, err
	}
	return history, nil
}

func (r *progressRepository) StatsByVideo(ctx context.Context, videoID uuid.UUID) (*domain.VideoStats, error) {
	var stats domain.VideoStats
	err := r.db.WithContext(ctx).
		Model(&domain.WatchProgress{}).
		Select("COUNT(*) AS view_count, "+
			"COALESCE(SUM(session_duration), 0) AS total_watch_time, "+
			"COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0) AS completion_count").
		Where("video_id = ?", videoID).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

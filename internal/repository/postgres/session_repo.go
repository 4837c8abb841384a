package postgres

import (
	"context"
	"time"

	"github.com/dom/streamgate/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.RefreshSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.RefreshSession, error) {
	var session domain.RefreshSession
	err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, domain.ErrSessionNotFound)
	}
	return &session, nil
}

// Rotate is a compare-and-swap on the generation column, so two refreshes
// racing on the same token cannot both win.
func (r *sessionRepository) Rotate(ctx context.Context, id uuid.UUID, from int, now, expiresAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.RefreshSession{}).
		Where("id = ? AND generation = ? AND revoked_at IS NULL AND expires_at > ?", id, from, now).
		Updates(map[string]interface{}{
			"generation": gorm.Expr("generation + 1"),
			"expires_at": expiresAt,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *sessionRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.RefreshSession{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at).Error
}

func (r *sessionRepository) RevokeByUserID(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.RefreshSession{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", at).Error
}

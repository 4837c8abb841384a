package repository

import (
	"context"
	"time"

	"github.com/dom/streamgate/internal/domain"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// UserRepository returns domain.ErrUserNotFound for missing users and
// domain.ErrEmailTaken when Create hits the unique email index.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.RefreshSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RefreshSession, error)
	// Rotate advances an active session from generation `from` to from+1 and
	// moves its expiry to expiresAt. It reports false when the session is
	// revoked, expired or already past that generation.
	Rotate(ctx context.Context, id uuid.UUID, from int, now, expiresAt time.Time) (bool, error)
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
	RevokeByUserID(ctx context.Context, userID uuid.UUID, at time.Time) error
}

type VideoRepository interface {
	CreateMany(ctx context.Context, videos []*domain.Video) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Video, error)
	ListActive(ctx context.Context, limit, offset int) ([]*domain.Video, int64, error)
	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) error
	UpdateSourceInfo(ctx context.Context, id uuid.UUID, durationSeconds *float64, info datatypes.JSON) error
}

// ProgressRepository stores one WatchProgress row per (user, video). Get
// returns nil, nil when nothing was recorded yet.
type ProgressRepository interface {
	Upsert(ctx context.Context, progress *domain.WatchProgress) error
	Get(ctx context.Context, userID, videoID uuid.UUID) (*domain.WatchProgress, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.WatchProgress, error)
	StatsByVideo(ctx context.Context, videoID uuid.UUID) (*domain.VideoStats, error)
}

// SourceCache keeps resolved media sources for a short time, keyed by the
// hidden source identifier.
type SourceCache interface {
	Get(ctx context.Context, sourceID string) (*domain.MediaSource, bool, error)
	Set(ctx context.Context, sourceID string, source *domain.MediaSource, ttl time.Duration) error
	Delete(ctx context.Context, sourceID string) error
}

// RateCounter counts hits per key inside a fixed window. It returns the count
// including this hit and the time left in the window.
type RateCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Repositories struct {
	User     UserRepository
	Session  SessionRepository
	Video    VideoRepository
	Progress ProgressRepository
	Health   HealthChecker
}

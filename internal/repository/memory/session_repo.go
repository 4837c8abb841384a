package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dom/streamgate/internal/domain"
	"github.com/google/uuid"
)

type SessionRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]domain.RefreshSession
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[uuid.UUID]domain.RefreshSession)}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.RefreshSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	r.sessions[session.ID] = *session
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (r *SessionRepository) Rotate(ctx context.Context, id uuid.UUID, from int, now, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok || !session.Active(now) || session.Generation != from {
		return false, nil
	}
	session.Generation++
	session.ExpiresAt = expiresAt
	session.UpdatedAt = now
	r.sessions[id] = session
	return true, nil
}

func (r *SessionRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok || session.RevokedAt != nil {
		return nil
	}
	session.RevokedAt = &at
	r.sessions[id] = session
	return nil
}

func (r *SessionRepository) RevokeByUserID(ctx context.Context, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, session := range r.sessions {
		if session.UserID != userID || session.RevokedAt != nil {
			continue
		}
		revokedAt := at
		session.RevokedAt = &revokedAt
		r.sessions[id] = session
	}
	return nil
}

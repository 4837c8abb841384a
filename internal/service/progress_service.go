package service

import (
	"context"
	"math"
	"time"

	"github.com/dom/streamgate/internal/domain"
	"github.com/dom/streamgate/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type ProgressService struct {
	progressRepo repository.ProgressRepository
	videoRepo    repository.VideoRepository
	now          func() time.Time
}

func NewProgressService(progressRepo repository.ProgressRepository, videoRepo repository.VideoRepository) *ProgressService {
	return &ProgressService{
		progressRepo: progressRepo,
		videoRepo:    videoRepo,
		now:          time.Now,
	}
}

type ReportInput struct {
	UserID          uuid.UUID
	VideoID         uuid.UUID
	Position        float64
	SessionDuration float64
	TotalDuration   float64
	Completed       bool
}

func validDuration(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Report stores the latest watch state for (user, video). The completed flag
// is the client's flag or the server-side ratio check, whichever is true.
func (s *ProgressService) Report(ctx context.Context, input ReportInput) (*domain.WatchProgress, error) {
	if !validDuration(input.Position) || !validDuration(input.SessionDuration) || !validDuration(input.TotalDuration) {
		return nil, domain.ErrInvalidProgress
	}
	if _, err := s.videoRepo.GetByID(ctx, input.VideoID); err != nil {
		return nil, err
	}

	progress := &domain.WatchProgress{
		UserID:          input.UserID,
		VideoID:         input.VideoID,
		Position:        input.Position,
		SessionDuration: input.SessionDuration,
		TotalDuration:   input.TotalDuration,
		UpdatedAt:       s.now(),
	}
	progress.Completed = input.Completed || progress.ReachedCompletion()

	if err := s.progressRepo.Upsert(ctx, progress); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":   input.UserID,
		"video_id":  input.VideoID,
		"position":  input.Position,
		"completed": progress.Completed,
	}).Debug("[ProgressService.Report] progress stored")
	return progress, nil
}

// Get returns nil, nil when the user has not watched the video yet.
func (s *ProgressService) Get(ctx context.Context, userID, videoID uuid.UUID) (*domain.WatchProgress, error) {
	return s.progressRepo.Get(ctx, userID, videoID)
}

func (s *ProgressService) History(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.WatchProgress, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.progressRepo.ListByUser(ctx, userID, limit)
}

func (s *ProgressService) Stats(ctx context.Context, videoID uuid.UUID) (*domain.VideoStats, error) {
	if _, err := s.videoRepo.GetByID(ctx, videoID); err != nil {
		return nil, err
	}
	return s.progressRepo.StatsByVideo(ctx, videoID)
}

package service

import (
	"context"
	"sync"
	"time"

	"github.com/dom/streamgate/internal/domain"
	"github.com/dom/streamgate/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 50
)

// PublicVideo is the client-facing view of a video. It carries a playback
// token for the requesting user and never the source identifier.
type PublicVideo struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	PlaybackToken   string    `json:"playback_token"`
}

type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasMore bool  `json:"has_more"`
}

type DashboardResult struct {
	Videos     []PublicVideo `json:"videos"`
	Pagination Pagination    `json:"pagination"`
}

type CatalogService struct {
	videoRepo repository.VideoRepository
	playback  *PlaybackService
	seed      []SeedVideo

	seedMu sync.Mutex
}

func NewCatalogService(videoRepo repository.VideoRepository, playback *PlaybackService, seed []SeedVideo) *CatalogService {
	if len(seed) == 0 {
		seed = DefaultSeedCatalog()
	}
	return &CatalogService{
		videoRepo: videoRepo,
		playback:  playback,
		seed:      seed,
	}
}

// ClampPage normalizes dashboard paging input: page starts at 1 and limit
// stays within 1..50, defaulting to 10 when unset.
func ClampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit == 0 {
		limit = defaultPageLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func (s *CatalogService) Dashboard(ctx context.Context, userID uuid.UUID, page, limit int) (*DashboardResult, error) {
	if err := s.EnsureSeeded(ctx); err != nil {
		return nil, err
	}

	page, limit = ClampPage(page, limit)
	videos, total, err := s.videoRepo.ListActive(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	pages := 1
	if total > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}

	result := &DashboardResult{
		Videos: make([]PublicVideo, 0, len(videos)),
		Pagination: Pagination{
			Page:    page,
			Limit:   limit,
			Total:   total,
			Pages:   pages,
			HasMore: page < pages,
		},
	}
	for _, video := range videos {
		public, err := s.toPublic(userID, video)
		if err != nil {
			return nil, err
		}
		result.Videos = append(result.Videos, *public)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"page":    page,
		"count":   len(result.Videos),
	}).Debug("[CatalogService.Dashboard] served")
	return result, nil
}

func (s *CatalogService) Info(ctx context.Context, userID, videoID uuid.UUID) (*PublicVideo, error) {
	video, err := s.videoRepo.GetByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if !video.IsActive {
		return nil, domain.ErrVideoNotFound
	}
	return s.toPublic(userID, video)
}

func (s *CatalogService) toPublic(userID uuid.UUID, video *domain.Video) (*PublicVideo, error) {
	playbackToken, err := s.playback.Mint(userID, video.ID)
	if err != nil {
		return nil, err
	}
	return &PublicVideo{
		ID:              video.ID,
		Title:           video.Title,
		Description:     video.Description,
		ThumbnailURL:    video.ThumbnailURL,
		DurationSeconds: video.DurationSeconds,
		PlaybackToken:   playbackToken,
	}, nil
}

// EnsureSeeded loads the seed catalog when the video table is empty.
func (s *CatalogService) EnsureSeeded(ctx context.Context) error {
	s.seedMu.Lock()
	defer s.seedMu.Unlock()

	count, err := s.videoRepo.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return s.insertSeed(ctx)
}

// Reseed replaces the whole catalog with the seed list and returns how many
// videos were loaded.
func (s *CatalogService) Reseed(ctx context.Context) (int, error) {
	s.seedMu.Lock()
	defer s.seedMu.Unlock()

	if err := s.videoRepo.DeleteAll(ctx); err != nil {
		return 0, err
	}
	if err := s.insertSeed(ctx); err != nil {
		return 0, err
	}
	return len(s.seed), nil
}

func (s *CatalogService) insertSeed(ctx context.Context) error {
	now := time.Now()
	videos := make([]*domain.Video, 0, len(s.seed))
	for i, entry := range s.seed {
		videos = append(videos, &domain.Video{
			ID:           uuid.New(),
			Title:        entry.Title,
			Description:  entry.Description,
			ThumbnailURL: entry.ThumbnailURL,
			SourceID:     entry.SourceID,
			IsActive:     true,
			// Listing order follows the seed order.
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
		})
	}
	if err := s.videoRepo.CreateMany(ctx, videos); err != nil {
		return err
	}
	logrus.WithField("count", len(videos)).Info("[CatalogService] catalog seeded")
	return nil
}

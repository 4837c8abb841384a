package service

import (
	"fmt"

	"github.com/dom/streamgate/internal/config"
	"github.com/dom/streamgate/internal/extractor"
	"github.com/dom/streamgate/internal/repository"
	"github.com/dom/streamgate/internal/token"
)

type Services struct {
	Tokens   *token.Codec
	Auth     *AuthService
	Playback *PlaybackService
	Catalog  *CatalogService
	Stream   *StreamService
	Progress *ProgressService
}

// NewServices builds every service over repos. cache may be nil.
func NewServices(repos *repository.Repositories, cache repository.SourceCache, ext extractor.Extractor, cfg *config.Config) (*Services, error) {
	tokens, err := token.NewCodec(token.Secrets{
		Access:   cfg.AccessTokenSecret,
		Refresh:  cfg.RefreshTokenSecret,
		Playback: cfg.PlaybackTokenSecret,
		Internal: cfg.InternalTokenSecret,
	})
	if err != nil {
		return nil, err
	}

	var seed []SeedVideo
	if cfg.SeedCatalogPath != "" {
		seed, err = LoadSeedCatalog(cfg.SeedCatalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed catalog: %w", err)
		}
	}

	playback := NewPlaybackService(tokens, cfg.PlaybackTokenTTL)

	return &Services{
		Tokens:   tokens,
		Auth:     NewAuthService(repos.User, repos.Session, tokens, cfg),
		Playback: playback,
		Catalog:  NewCatalogService(repos.Video, playback, seed),
		Stream:   NewStreamService(repos.Video, cache, ext, cfg),
		Progress: NewProgressService(repos.Progress, repos.Video),
	}, nil
}

package service

import (
	"fmt"
	"time"

	"github.com/dom/streamgate/internal/domain"
	"github.com/dom/streamgate/internal/token"
	"github.com/google/uuid"
)

// PlaybackService mints and checks tokens that authorize exactly one
// video's stream for one user.
type PlaybackService struct {
	tokens *token.Codec
	ttl    time.Duration
}

func NewPlaybackService(tokens *token.Codec, ttl time.Duration) *PlaybackService {
	return &PlaybackService{tokens: tokens, ttl: ttl}
}

func (s *PlaybackService) Mint(userID, videoID uuid.UUID) (string, error) {
	return s.tokens.Issue(token.KindPlayback, token.Claims{
		VideoID:          videoID.String(),
		RegisteredClaims: jwtSubject(userID.String()),
	}, s.ttl)
}

// Authorize returns the viewer of a playback token presented for videoID.
// Any failure, including a token scoped to another video, is
// domain.ErrUnauthorized.
func (s *PlaybackService) Authorize(playbackToken string, videoID uuid.UUID) (uuid.UUID, error) {
	claims, err := s.tokens.Verify(playbackToken, token.KindPlayback)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if claims.VideoID != videoID.String() {
		return uuid.Nil, fmt.Errorf("%w: token is scoped to another video", domain.ErrUnauthorized)
	}
	userID, err := claims.UserID()
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	return userID, nil
}

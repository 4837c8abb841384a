package service_test

import (
	"testing"
	"time"

	"github.com/dom/streamgate/internal/domain"
	"github.com/dom/streamgate/internal/service"
	"github.com/dom/streamgate/internal/token"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaybackService_Authorize(t *testing.T) {
	codec := newCodec(t)
	playback := service.NewPlaybackService(codec, 5*time.Minute)

	userID := uuid.New()
	videoA, videoB := uuid.New(), uuid.New()

	tokenA, err := playback.Mint(userID, videoA)
	require.NoError(t, err)

	accessToken, err := codec.Issue(token.KindAccess, token.Claims{RegisteredClaims: subject(userID)}, time.Minute)
	require.NoError(t, err)

	past := newCodec(t, token.WithClock(func() time.Time { return time.Now().Add(-10 * time.Minute) }))
	expired, err := service.NewPlaybackService(past, 5*time.Minute).Mint(userID, videoA)
	require.NoError(t, err)

	tests := []struct {
		name      string
		token     string
		videoID   uuid.UUID
		wantErr   bool
		wantCause error
	}{
		{name: "matching video", token: tokenA, videoID: videoA},
		{name: "other video", token: tokenA, videoID: videoB, wantErr: true},
		{name: "access token", token: accessToken, videoID: videoA, wantErr: true, wantCause: token.ErrKindMismatch},
		{name: "expired", token: expired, videoID: videoA, wantErr: true, wantCause: token.ErrExpired},
		{name: "empty", token: "", videoID: videoA, wantErr: true, wantCause: token.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := playback.Authorize(tt.token, tt.videoID)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, userID, got)
				return
			}
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
			if tt.wantCause != nil {
				assert.ErrorIs(t, err, tt.wantCause)
			}
		})
	}
}

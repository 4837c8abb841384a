package service_test

import (
	"context"
	"math"
	"testing"

	"github.com/dom/streamgate/internal/domain"
	"github.com/dom/streamgate/internal/repository/memory"
	"github.com/dom/streamgate/internal/service"
	"github.com/dom/streamgate/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressService_Report(t *testing.T) {
	repos := memory.NewRepositories()
	progress := service.NewProgressService(repos.Progress, repos.Video)
	ctx := context.Background()

	video := testutil.NewVideoBuilder().Create(t, repos.Video)
	userID := uuid.New()

	tests := []struct {
		name          string
		input         service.ReportInput
		wantCompleted bool
		wantErr       error
	}{
		{
			name:  "partial watch",
			input: service.ReportInput{Position: 120, SessionDuration: 120, TotalDuration: 600},
		},
		{
			name:          "derived completion at ninety percent",
			input:         service.ReportInput{Position: 540, SessionDuration: 420, TotalDuration: 600},
			wantCompleted: true,
		},
		{
			name:          "client asserted completion",
			input:         service.ReportInput{Position: 10, SessionDuration: 10, TotalDuration: 600, Completed: true},
			wantCompleted: true,
		},
		{
			name:  "unknown total never derives completion",
			input: service.ReportInput{Position: 999, SessionDuration: 999},
		},
		{
			name:    "negative position",
			input:   service.ReportInput{Position: -1, TotalDuration: 600},
			wantErr: domain.ErrInvalidProgress,
		},
		{
			name:    "not a number",
			input:   service.ReportInput{Position: math.NaN(), TotalDuration: 600},
			wantErr: domain.ErrInvalidProgress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			input.UserID = userID
			input.VideoID = video.ID

			got, err := progress.Report(ctx, input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCompleted, got.Completed)

			stored, err := progress.Get(ctx, userID, video.ID)
			require.NoError(t, err)
			assert.Equal(t, input.Position, stored.Position)
		})
	}
}

func TestProgressService_ReportIsIdempotent(t *testing.T) {
	repos := memory.NewRepositories()
	progress := service.NewProgressService(repos.Progress, repos.Video)
	ctx := context.Background()

	video := testutil.NewVideoBuilder().Create(t, repos.Video)
	input := service.ReportInput{UserID: uuid.New(), VideoID: video.ID, Position: 75, SessionDuration: 75, TotalDuration: 300}

	_, err := progress.Report(ctx, input)
	require.NoError(t, err)
	once, err := progress.Get(ctx, input.UserID, video.ID)
	require.NoError(t, err)

	_, err = progress.Report(ctx, input)
	require.NoError(t, err)
	twice, err := progress.Get(ctx, input.UserID, video.ID)
	require.NoError(t, err)

	assert.Equal(t, once.Position, twice.Position)
	assert.Equal(t, once.SessionDuration, twice.SessionDuration)
	assert.Equal(t, once.TotalDuration, twice.TotalDuration)
	assert.Equal(t, once.Completed, twice.Completed)

	history, err := progress.History(ctx, input.UserID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1, "one stored record")
}

func TestProgressService_UnknownVideo(t *testing.T) {
	repos := memory.NewRepositories()
	progress := service.NewProgressService(repos.Progress, repos.Video)
	ctx := context.Background()

	_, err := progress.Report(ctx, service.ReportInput{UserID: uuid.New(), VideoID: uuid.New(), Position: 1})
	assert.ErrorIs(t, err, domain.ErrVideoNotFound)

	_, err = progress.Stats(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrVideoNotFound)
}

func TestProgressService_GetFirstWatch(t *testing.T) {
	repos := memory.NewRepositories()
	progress := service.NewProgressService(repos.Progress, repos.Video)

	got, err := progress.Get(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

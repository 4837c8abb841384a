package service_test

import (
	"testing"

	"github.com/dom/streamgate/internal/repository"
	"github.com/dom/streamgate/internal/repository/memory"
	"github.com/dom/streamgate/internal/service"
	"github.com/dom/streamgate/internal/testutil"
	"github.com/dom/streamgate/internal/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newCodec(t *testing.T, opts ...token.Option) *token.Codec {
	t.Helper()
	cfg := testutil.TestConfig()
	codec, err := token.NewCodec(token.Secrets{
		Access:   cfg.AccessTokenSecret,
		Refresh:  cfg.RefreshTokenSecret,
		Playback: cfg.PlaybackTokenSecret,
		Internal: cfg.InternalTokenSecret,
	}, opts...)
	require.NoError(t, err)
	return codec
}

func newAuthService(t *testing.T) (*service.AuthService, *repository.Repositories) {
	t.Helper()
	repos := memory.NewRepositories()
	return service.NewAuthService(repos.User, repos.Session, newCodec(t), testutil.TestConfig()), repos
}

func subject(id uuid.UUID) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: id.String()}
}

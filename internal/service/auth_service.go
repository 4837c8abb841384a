package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dom/streamgate/internal/config"
	"github.com/dom/streamgate/internal/domain"
	"github.com/dom/streamgate/internal/repository"
	"github.com/dom/streamgate/internal/token"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type AuthService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	tokens      *token.Codec
	cfg         *config.Config
	now         func() time.Time

	// dummyHash is compared against on unknown emails so that a miss costs
	// the same bcrypt work as a wrong password.
	dummyHash []byte
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithAuthClock overrides the time source used for session bookkeeping.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		s.now = now
	}
}

func NewAuthService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository, tokens *token.Codec, cfg *config.Config, opts ...AuthOption) *AuthService {
	dummyHash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		logrus.WithError(err).Fatal("[AuthService] failed to prepare dummy hash")
	}

	s := &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		cfg:         cfg,
		now:         time.Now,
		dummyHash:   dummyHash,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AuthResult struct {
	User         *domain.User
	AccessToken  string
	RefreshToken string
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*AuthResult, error) {
	name := strings.TrimSpace(input.Name)
	email := NormalizeEmail(input.Email)
	if name == "" || email == "" || input.Password == "" {
		return nil, domain.ErrInvalidInput
	}
	if len(input.Password) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, domain.ErrEmailTaken
	}
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    s.now(),
	}

	// Create reports ErrEmailTaken itself when a concurrent signup wins.
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	logrus.WithField("user_id", user.ID).Info("[AuthService.Signup] user created")
	return s.startSession(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, NormalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(input.Password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return s.startSession(ctx, user)
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User) (*AuthResult, error) {
	now := s.now()
	session := &domain.RefreshSession{
		ID:        uuid.New(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	pair, err := s.issuePair(user.ID, session.ID, session.Generation)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

func (s *AuthService) issuePair(userID, sessionID uuid.UUID, generation int) (*TokenPair, error) {
	subject := userID.String()

	accessToken, err := s.tokens.Issue(token.KindAccess, token.Claims{
		RegisteredClaims: jwtSubject(subject),
	}, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.tokens.Issue(token.KindRefresh, token.Claims{
		SessionID:        sessionID.String(),
		Generation:       generation,
		RegisteredClaims: jwtSubject(subject),
	}, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh exchanges a refresh token for a new pair. Token-layer failures are
// returned as is. Presenting a token whose generation was already exchanged
// revokes the whole session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		return nil, err
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh token has no session", token.ErrMalformed)
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
		}
		return nil, err
	}

	now := s.now()
	if session.UserID != userID || !session.Active(now) {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, domain.ErrSessionRevoked)
	}

	// Each rotation extends the session by a full refresh lifetime.
	rotated, err := s.sessionRepo.Rotate(ctx, sessionID, claims.Generation, now, now.Add(s.cfg.RefreshTokenTTL))
	if err != nil {
		return nil, err
	}
	if !rotated {
		logrus.WithFields(logrus.Fields{
			"user_id":    userID,
			"session_id": sessionID,
			"generation": claims.Generation,
		}).Warn("[AuthService.Refresh] rotated-out refresh token presented, revoking session")
		if err := s.sessionRepo.Revoke(ctx, sessionID, now); err != nil {
			logrus.WithError(err).Error("[AuthService.Refresh] failed to revoke session")
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, domain.ErrSessionRevoked)
	}

	return s.issuePair(userID, sessionID, claims.Generation+1)
}

// Authenticate is the gate for every access-protected endpoint.
func (s *AuthService) Authenticate(accessToken string) (uuid.UUID, error) {
	claims, err := s.tokens.Verify(accessToken, token.KindAccess)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	return userID, nil
}

// AuthenticateInternal verifies a server-to-server token and returns the
// calling service's name.
func (s *AuthService) AuthenticateInternal(internalToken string) (string, error) {
	claims, err := s.tokens.Verify(internalToken, token.KindInternal)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	return claims.Subject, nil
}

// IssueInternal mints a short-lived server-to-server token for caller.
func (s *AuthService) IssueInternal(caller string) (string, error) {
	return s.tokens.Issue(token.KindInternal, token.Claims{
		RegisteredClaims: jwtSubject(caller),
	}, s.cfg.InternalTokenTTL)
}

func (s *AuthService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// Logout revokes the session behind refreshToken when one is given and
// belongs to userID. Without a refresh token every session of the user is
// revoked. Access tokens stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	now := s.now()
	if refreshToken == "" {
		return s.sessionRepo.RevokeByUserID(ctx, userID, now)
	}

	claims, err := s.tokens.Verify(refreshToken, token.KindRefresh)
	if err != nil {
		// The client discards its tokens regardless.
		logrus.WithError(err).WithField("user_id", userID).Debug("[AuthService.Logout] ignoring unusable refresh token")
		return nil
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil || claims.Subject != userID.String() {
		return nil
	}
	return s.sessionRepo.Revoke(ctx, sessionID, now)
}

package client

import "sync"

const (
	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Session owns the token pair of one signed-in user. All reads and writes
// of the pair go through it so a pair is never observed half-written.
type Session struct {
	mu    sync.RWMutex
	store Store
}

func NewSession(store Store) *Session {
	return &Session{store: store}
}

// Tokens returns the stored pair. Missing tokens read as empty strings.
func (s *Session) Tokens() (TokenPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	access, _, err := s.store.Get(accessTokenKey)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := s.store.Get(refreshTokenKey)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Session) Save(pair TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(accessTokenKey, pair.AccessToken); err != nil {
		return err
	}
	return s.store.Set(refreshTokenKey, pair.RefreshToken)
}

func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(accessTokenKey); err != nil {
		return err
	}
	return s.store.Delete(refreshTokenKey)
}

// SignedIn reports whether a refresh token is stored.
func (s *Session) SignedIn() bool {
	pair, err := s.Tokens()
	return err == nil && pair.RefreshToken != ""
}

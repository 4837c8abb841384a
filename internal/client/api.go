package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type AuthResult struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type Video struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	ThumbnailURL    string   `json:"thumbnail_url"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	PlaybackToken   string   `json:"playback_token"`
}

type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasMore bool  `json:"has_more"`
}

type DashboardPage struct {
	Videos     []Video    `json:"videos"`
	Pagination Pagination `json:"pagination"`
}

type Progress struct {
	UserID          string    `json:"user_id"`
	VideoID         string    `json:"video_id"`
	Position        float64   `json:"position"`
	SessionDuration float64   `json:"session_duration"`
	TotalDuration   float64   `json:"total_duration"`
	Completed       bool      `json:"completed"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Stats struct {
	ViewCount       int64   `json:"view_count"`
	TotalWatchTime  float64 `json:"total_watch_time"`
	CompletionCount int64   `json:"completion_count"`
}

type WatchReport struct {
	Position        float64 `json:"position"`
	SessionDuration float64 `json:"session_duration"`
	TotalDuration   float64 `json:"total_duration"`
	Completed       bool    `json:"completed"`
}

type WatchResult struct {
	Message  string    `json:"message"`
	Progress *Progress `json:"progress"`
	Stats    *Stats    `json:"stats"`
}

func (c *Client) Signup(ctx context.Context, name, email, password string) (*AuthResult, error) {
	return c.authenticate(ctx, "/auth/signup", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.authenticate(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body map[string]string) (*AuthResult, error) {
	var result AuthResult
	if err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, &result); err != nil {
		return nil, err
	}
	if err := c.session.Save(TokenPair{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken}); err != nil {
		return nil, fmt.Errorf("failed to store tokens: %w", err)
	}
	return &result, nil
}

// Logout revokes the current session on the server and always clears the
// local tokens, even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	pair, err := c.session.Tokens()
	if err != nil {
		return err
	}

	var serverErr error
	if pair.RefreshToken != "" {
		serverErr = c.Do(ctx, Request{
			Method:        http.MethodPost,
			Path:          "/auth/logout",
			Body:          map[string]string{"refresh_token": pair.RefreshToken},
			Authenticated: true,
		}, nil)
	}

	if err := c.session.Clear(); err != nil {
		return err
	}
	if errors.Is(serverErr, ErrSessionExpired) {
		return nil
	}
	return serverErr
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var result struct {
		User User `json:"user"`
	}
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/auth/me", Authenticated: true}, &result); err != nil {
		return nil, err
	}
	return &result.User, nil
}

func (c *Client) Dashboard(ctx context.Context, page, limit int) (*DashboardPage, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", fmt.Sprint(page))
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	path := "/dashboard"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var result DashboardPage
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Authenticated: true}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) VideoInfo(ctx context.Context, videoID string) (*Video, error) {
	var result struct {
		Video Video `json:"video"`
	}
	path := "/video/" + url.PathEscape(videoID) + "/info"
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Authenticated: true}, &result); err != nil {
		return nil, err
	}
	return &result.Video, nil
}

// Progress returns the saved position for a video, or nil on a first watch.
func (c *Client) Progress(ctx context.Context, videoID string) (*Progress, error) {
	var result struct {
		Progress *Progress `json:"progress"`
	}
	path := "/video/" + url.PathEscape(videoID) + "/progress"
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Authenticated: true}, &result); err != nil {
		return nil, err
	}
	return result.Progress, nil
}

func (c *Client) ReportWatch(ctx context.Context, videoID string, report WatchReport) (*WatchResult, error) {
	var result WatchResult
	path := "/video/" + url.PathEscape(videoID) + "/watch"
	if err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: report, Authenticated: true}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) History(ctx context.Context, limit int) ([]Progress, error) {
	path := "/history"
	if limit > 0 {
		path += "?limit=" + fmt.Sprint(limit)
	}

	var result struct {
		History []Progress `json:"history"`
	}
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Authenticated: true}, &result); err != nil {
		return nil, err
	}
	return result.History, nil
}

// StreamURL builds the playable URL for a video. Players fetch it directly,
// so the playback token travels in the query string.
func (c *Client) StreamURL(videoID, playbackToken string) string {
	return c.baseURL + "/video/" + url.PathEscape(videoID) + "/stream?token=" + url.QueryEscape(playbackToken)
}

// Reseed replaces the server catalog. It authenticates with an internal
// token instead of the session.
func (c *Client) Reseed(ctx context.Context, internalToken string) (int, error) {
	status, body, err := c.send(ctx, Request{Method: http.MethodPost, Path: "/internal/catalog/reseed"}, internalToken)
	if err != nil {
		return 0, err
	}

	var result struct {
		Count int `json:"count"`
	}
	if err := decode(status, body, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

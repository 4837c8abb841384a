// Package client is the API client used by the streamctl CLI. It keeps the
// token pair in a Session and refreshes it transparently when the server
// answers 401, coalescing concurrent refreshes onto one call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired means the stored tokens could not be refreshed and were
// cleared. The user has to log in again.
var ErrSessionExpired = errors.New("session expired, please log in again")

const refreshTimeout = 15 * time.Second

// APIError is a non-2xx answer other than a refreshable 401.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error (status %d, %s): %s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	refreshes  singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(baseURL string, session *Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		session: session,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session {
	return c.session
}

// Request describes one logical API call. Authenticated requests carry the
// stored access token and may be retried once after a refresh.
type Request struct {
	Method        string
	Path          string
	Body          interface{}
	Authenticated bool
}

// Do sends req and decodes a 2xx body into out when out is not nil.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	var accessToken string
	if req.Authenticated {
		pair, err := c.session.Tokens()
		if err != nil {
			return err
		}
		if pair.AccessToken == "" && pair.RefreshToken == "" {
			return ErrSessionExpired
		}
		accessToken = pair.AccessToken
	}

	status, body, err := c.send(ctx, req, accessToken)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && req.Authenticated {
		fresh, err := c.renew(ctx, accessToken)
		if err != nil {
			return err
		}

		status, body, err = c.send(ctx, req, fresh)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			logrus.WithField("path", req.Path).Debug("[client.Do] retried request still unauthorized")
			return c.expire()
		}
	}

	return decode(status, body, out)
}

// renew returns an access token worth retrying with. When another caller
// already replaced the token that failed, the stored one is reused without
// refreshing.
func (c *Client) renew(ctx context.Context, failedAccess string) (string, error) {
	pair, err := c.session.Tokens()
	if err != nil {
		return "", err
	}
	if pair.AccessToken != "" && pair.AccessToken != failedAccess {
		return pair.AccessToken, nil
	}
	if pair.RefreshToken == "" {
		return "", c.expire()
	}

	// The server rotates the pair as soon as it sees the exchange, so the
	// exchange runs to completion and is saved even when every waiting
	// caller has gone away.
	results := c.refreshes.DoChan(pair.RefreshToken, func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return c.refresh(refreshCtx, pair.RefreshToken)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res = <-results:
	}

	if res.Err != nil {
		var apiErr *APIError
		if errors.As(res.Err, &apiErr) && refreshRejected(apiErr.Status) {
			logrus.WithField("code", apiErr.Code).Debug("[client.renew] refresh rejected")
			return "", c.expire()
		}
		return "", res.Err
	}

	logrus.WithField("shared", res.Shared).Debug("[client.renew] tokens refreshed")
	return res.Val.(TokenPair).AccessToken, nil
}

// refreshRejected reports whether a failed refresh means the refresh token
// is no good. Rate limiting and server errors leave the tokens in place.
func refreshRejected(status int) bool {
	return status < http.StatusInternalServerError && status != http.StatusTooManyRequests
}

// refresh exchanges refreshToken unless it was already exchanged by the
// time this call runs, in which case the stored pair is current.
func (c *Client) refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	stored, err := c.session.Tokens()
	if err != nil {
		return TokenPair{}, err
	}
	if stored.RefreshToken != "" && stored.RefreshToken != refreshToken {
		return stored, nil
	}

	var pair TokenPair
	status, body, err := c.send(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   map[string]string{"refresh_token": refreshToken},
	}, "")
	if err != nil {
		return TokenPair{}, err
	}
	if err := decode(status, body, &pair); err != nil {
		return TokenPair{}, err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return TokenPair{}, fmt.Errorf("refresh returned an incomplete token pair")
	}
	if err := c.session.Save(pair); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (c *Client) expire() error {
	if err := c.session.Clear(); err != nil {
		logrus.WithError(err).Warn("[client] failed to clear stored tokens")
	}
	return ErrSessionExpired
}

func (c *Client) send(ctx context.Context, req Request, accessToken string) (int, []byte, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		jsonBody, err := json.Marshal(req.Body)
		if err != nil {
			return 0, nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, bodyReader)
	if err != nil {
		return 0, nil, err
	}
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s failed: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func decode(status int, body []byte, out interface{}) error {
	if status < 200 || status > 299 {
		apiErr := &APIError{Status: status, Message: http.StatusText(status)}
		var errBody struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(body, &errBody) == nil && errBody.Error != "" {
			apiErr.Code = errBody.Code
			apiErr.Message = errBody.Error
		}
		return apiErr
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dom/streamgate/internal/testutil"
	"github.com/dom/streamgate/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_Signup(t *testing.T) {
	ts := testutil.NewTestServer(t)
	testutil.NewUserBuilder().WithEmail("taken@example.com").BuildAndAuthenticate(t, ts)

	tests := []struct {
		name           string
		request        map[string]string
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "successful signup",
			request: map[string]string{
				"name":     "Ada",
				"email":    "Ada@Example.com",
				"password": "password123",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "email already registered",
			request: map[string]string{
				"name":     "Someone",
				"email":    "TAKEN@example.com",
				"password": "password123",
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   "EmailTaken",
		},
		{
			name: "weak password",
			request: map[string]string{
				"name":     "Bob",
				"email":    "bob@example.com",
				"password": "12345",
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "WeakPassword",
		},
		{
			name: "missing name",
			request: map[string]string{
				"email":    "noname@example.com",
				"password": "password123",
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BadRequest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, ts.URL("/auth/signup"), "", tt.request)

			if tt.expectedCode != "" {
				testutil.AssertErrorResponse(t, resp, tt.expectedStatus, tt.expectedCode)
				return
			}

			testutil.AssertStatusCode(t, resp, tt.expectedStatus)
			var body testutil.AuthResponse
			testutil.AssertJSONResponse(t, resp, &body)
			assert.Equal(t, "ada@example.com", body.User.Email)
			assert.Equal(t, "Ada", body.User.Name)
			assert.NotEmpty(t, body.AccessToken)
			assert.NotEmpty(t, body.RefreshToken)
		})
	}
}

func TestAuthHandler_Signup_EmptyBody(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp := do(t, http.MethodPost, ts.URL("/auth/signup"), "", nil)
	testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "BadRequest")
}

func TestAuthHandler_Login(t *testing.T) {
	ts := testutil.NewTestServer(t)
	testutil.NewUserBuilder().
		WithEmail("login@example.com").
		WithPassword("correct-password").
		BuildAndAuthenticate(t, ts)

	tests := []struct {
		name           string
		request        map[string]string
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "successful login",
			request:        map[string]string{"email": "login@example.com", "password": "correct-password"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "email is case-insensitive",
			request:        map[string]string{"email": " LOGIN@example.com ", "password": "correct-password"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "wrong password",
			request:        map[string]string{"email": "login@example.com", "password": "wrong-password"},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "InvalidCredentials",
		},
		{
			name:           "unknown email",
			request:        map[string]string{"email": "nobody@example.com", "password": "correct-password"},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "InvalidCredentials",
		},
		{
			name:           "missing password",
			request:        map[string]string{"email": "login@example.com"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BadRequest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, ts.URL("/auth/login"), "", tt.request)

			if tt.expectedCode != "" {
				testutil.AssertErrorResponse(t, resp, tt.expectedStatus, tt.expectedCode)
				return
			}

			testutil.AssertStatusCode(t, resp, tt.expectedStatus)
			var body testutil.AuthResponse
			testutil.AssertJSONResponse(t, resp, &body)
			assert.Equal(t, "login@example.com", body.User.Email)
			assert.NotEmpty(t, body.AccessToken)
			assert.NotEmpty(t, body.RefreshToken)
		})
	}
}

func TestAuthHandler_Login_FailuresAreIndistinguishable(t *testing.T) {
	ts := testutil.NewTestServer(t)
	testutil.NewUserBuilder().
		WithEmail("known@example.com").
		WithPassword("correct-password").
		BuildAndAuthenticate(t, ts)

	wrongPassword := do(t, http.MethodPost, ts.URL("/auth/login"), "", map[string]string{
		"email": "known@example.com", "password": "wrong-password",
	})
	unknownEmail := do(t, http.MethodPost, ts.URL("/auth/login"), "", map[string]string{
		"email": "unknown@example.com", "password": "wrong-password",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.StatusCode)
	assert.Equal(t, wrongPassword.StatusCode, unknownEmail.StatusCode)
	assert.Equal(t, wrongPassword.Header.Get("Content-Type"), unknownEmail.Header.Get("Content-Type"))
	assert.Equal(t, string(readBody(t, wrongPassword)), string(readBody(t, unknownEmail)))
}

func TestAuthHandler_Refresh(t *testing.T) {
	ts := testutil.NewTestServer(t)
	auth := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	resp := do(t, http.MethodPost, ts.URL("/auth/refresh"), "", map[string]string{
		"refresh_token": auth.RefreshToken,
	})
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	testutil.AssertJSONResponse(t, resp, &pair)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, auth.RefreshToken, pair.RefreshToken)

	// The new access token works.
	resp = do(t, http.MethodGet, ts.URL("/auth/me"), pair.AccessToken, nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
}

func TestAuthHandler_Refresh_Rejections(t *testing.T) {
	ts := testutil.NewTestServer(t)
	auth := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	expired, err := ts.Services.Tokens.Issue(token.KindRefresh, token.Claims{
		RegisteredClaims: subjectClaims(auth.User.ID),
	}, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name           string
		refreshToken   string
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "expired refresh token",
			refreshToken:   expired,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "Expired",
		},
		{
			name:           "access token presented as refresh token",
			refreshToken:   auth.AccessToken,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "KindMismatch",
		},
		{
			name:           "garbage",
			refreshToken:   "not-a-token",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "Malformed",
		},
		{
			name:           "missing token",
			refreshToken:   "",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BadRequest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, ts.URL("/auth/refresh"), "", map[string]string{
				"refresh_token": tt.refreshToken,
			})
			testutil.AssertErrorResponse(t, resp, tt.expectedStatus, tt.expectedCode)
		})
	}
}

func TestAuthHandler_Refresh_ReplayRevokesSession(t *testing.T) {
	ts := testutil.NewTestServer(t)
	auth := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	first := do(t, http.MethodPost, ts.URL("/auth/refresh"), "", map[string]string{"refresh_token": auth.RefreshToken})
	testutil.AssertStatusCode(t, first, http.StatusOK)
	var rotated struct {
		RefreshToken string `json:"refresh_token"`
	}
	testutil.AssertJSONResponse(t, first, &rotated)

	replay := do(t, http.MethodPost, ts.URL("/auth/refresh"), "", map[string]string{"refresh_token": auth.RefreshToken})
	testutil.AssertErrorResponse(t, replay, http.StatusUnauthorized, "Unauthorized")

	// The replay revoked the session, so the rotated token is dead too.
	resp := do(t, http.MethodPost, ts.URL("/auth/refresh"), "", map[string]string{"refresh_token": rotated.RefreshToken})
	testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "Unauthorized")
}

func TestAuthHandler_Me(t *testing.T) {
	ts := testutil.NewTestServer(t)
	auth := testutil.NewUserBuilder().WithName("Grace").BuildAndAuthenticate(t, ts)

	t.Run("with token", func(t *testing.T) {
		resp := do(t, http.MethodGet, ts.URL("/auth/me"), auth.AccessToken, nil)
		testutil.AssertStatusCode(t, resp, http.StatusOK)

		var body struct {
			User struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"user"`
		}
		testutil.AssertJSONResponse(t, resp, &body)
		assert.Equal(t, auth.User.ID, body.User.ID)
		assert.Equal(t, "Grace", body.User.Name)
	})

	t.Run("without token", func(t *testing.T) {
		resp := do(t, http.MethodGet, ts.URL("/auth/me"), "", nil)
		testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "Unauthorized")
	})

	t.Run("refresh token as bearer", func(t *testing.T) {
		resp := do(t, http.MethodGet, ts.URL("/auth/me"), auth.RefreshToken, nil)
		testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "Unauthorized")
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	ts := testutil.NewTestServer(t)

	t.Run("revokes the named session", func(t *testing.T) {
		auth := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

		resp := do(t, http.MethodPost, ts.URL("/auth/logout"), auth.AccessToken, map[string]string{
			"refresh_token": auth.RefreshToken,
		})
		testutil.AssertStatusCode(t, resp, http.StatusOK)

		resp = do(t, http.MethodPost, ts.URL("/auth/refresh"), "", map[string]string{"refresh_token": auth.RefreshToken})
		testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "Unauthorized")
	})

	t.Run("without body revokes every session", func(t *testing.T) {
		auth := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

		second := do(t, http.MethodPost, ts.URL("/auth/login"), "", map[string]string{
			"email":    auth.User.Email,
			"password": "testpassword123",
		})
		testutil.AssertStatusCode(t, second, http.StatusOK)
		var other testutil.AuthResponse
		testutil.AssertJSONResponse(t, second, &other)

		resp := do(t, http.MethodPost, ts.URL("/auth/logout"), auth.AccessToken, nil)
		testutil.AssertStatusCode(t, resp, http.StatusOK)

		for _, refreshToken := range []string{auth.RefreshToken, other.RefreshToken} {
			resp := do(t, http.MethodPost, ts.URL("/auth/refresh"), "", map[string]string{"refresh_token": refreshToken})
			testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "Unauthorized")
		}
	})

	t.Run("requires access token", func(t *testing.T) {
		resp := do(t, http.MethodPost, ts.URL("/auth/logout"), "", nil)
		testutil.AssertErrorResponse(t, resp, http.StatusUnauthorized, "Unauthorized")
	})
}

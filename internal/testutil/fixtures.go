package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dom/streamgate/internal/domain"
	"github.com/dom/streamgate/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	name     string
	email    string
	password string
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	suffix := uuid.New().String()[:8]
	return &UserBuilder{
		name:     fmt.Sprintf("Test User %s", suffix),
		email:    fmt.Sprintf("user_%s@example.com", suffix),
		password: "testpassword123",
	}
}

func (b *UserBuilder) WithName(name string) *UserBuilder {
	b.name = name
	return b
}

func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

func (b *UserBuilder) user(t *testing.T) *domain.User {
	t.Helper()

	// MinCost keeps fixture setup fast; login still verifies with bcrypt.
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	return &domain.User{
		ID:           uuid.New(),
		Name:         b.name,
		Email:        b.email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now(),
	}
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	user := b.user(t)
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user, b.password
}

// Create stores the user through a repository, for tests on the memory store.
func (b *UserBuilder) Create(t *testing.T, repo repository.UserRepository) (*domain.User, string) {
	t.Helper()

	user := b.user(t)
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	User struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// BuildAndAuthenticate signs the user up through the API and returns the
// tokens it was issued.
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) *AuthResponse {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"name":     b.name,
		"email":    b.email,
		"password": b.password,
	})

	resp, err := http.Post(ts.URL("/auth/signup"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to sign up user: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return &authResp
}

// VideoBuilder creates catalog entries
type VideoBuilder struct {
	title    string
	sourceID string
	inactive bool
}

func NewVideoBuilder() *VideoBuilder {
	suffix := uuid.New().String()[:8]
	return &VideoBuilder{
		title:    fmt.Sprintf("Video %s", suffix),
		sourceID: "src_" + suffix,
	}
}

func (b *VideoBuilder) WithTitle(title string) *VideoBuilder {
	b.title = title
	return b
}

func (b *VideoBuilder) WithSourceID(sourceID string) *VideoBuilder {
	b.sourceID = sourceID
	return b
}

// Inactive hides the video from listings.
func (b *VideoBuilder) Inactive() *VideoBuilder {
	b.inactive = true
	return b
}

func (b *VideoBuilder) video() *domain.Video {
	return &domain.Video{
		ID:           uuid.New(),
		Title:        b.title,
		Description:  "A test video",
		ThumbnailURL: "https://img.example.com/" + b.sourceID + ".jpg",
		SourceID:     b.sourceID,
		IsActive:     !b.inactive,
		CreatedAt:    time.Now(),
	}
}

// Build creates the video in the database
func (b *VideoBuilder) Build(t *testing.T, db *gorm.DB) *domain.Video {
	t.Helper()

	video := b.video()
	if err := db.Create(video).Error; err != nil {
		t.Fatalf("failed to create video: %v", err)
	}
	if b.inactive {
		// is_active has a database default, so false must be written explicitly.
		if err := db.Model(video).Update("is_active", false).Error; err != nil {
			t.Fatalf("failed to deactivate video: %v", err)
		}
	}
	return video
}

// Create stores the video through a repository
func (b *VideoBuilder) Create(t *testing.T, repo repository.VideoRepository) *domain.Video {
	t.Helper()

	video := b.video()
	if err := repo.CreateMany(context.Background(), []*domain.Video{video}); err != nil {
		t.Fatalf("failed to create video: %v", err)
	}
	return video
}

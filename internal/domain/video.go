package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Video struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Title        string    `json:"title" gorm:"not null"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnail_url"`
	// SourceID identifies the video at the third-party source. It must never
	// leave the server.
	SourceID        string         `json:"-" gorm:"not null"`
	DurationSeconds *float64       `json:"duration_seconds"`
	SourceInfo      datatypes.JSON `json:"-"`
	IsActive        bool           `json:"is_active" gorm:"index;not null;default:true"`
	CreatedAt       time.Time      `json:"created_at"`
}

// MediaSource is a direct, time-bounded media location produced by the
// extraction step.
type MediaSource struct {
	URL             string
	ContentType     string
	DurationSeconds float64
	FormatID        string
	Fallback        bool
}

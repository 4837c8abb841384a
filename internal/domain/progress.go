package domain

import (
	"time"

	"github.com/google/uuid"
)

// CompletionRatio is the watched fraction at which a video counts as completed.
const CompletionRatio = 0.9

type WatchProgress struct {
	UserID          uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey"`
	VideoID         uuid.UUID `json:"video_id" gorm:"type:uuid;primaryKey;index"`
	Position        float64   `json:"position" gorm:"not null;default:0"`
	SessionDuration float64   `json:"session_duration" gorm:"not null;default:0"`
	TotalDuration   float64   `json:"total_duration" gorm:"not null;default:0"`
	Completed       bool      `json:"completed" gorm:"not null;default:false"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"index"`
}

// ReachedCompletion reports whether position covers CompletionRatio of the
// total duration. Unknown totals never count.
func (p *WatchProgress) ReachedCompletion() bool {
	if p.TotalDuration <= 0 {
		return false
	}
	return p.Position/p.TotalDuration >= CompletionRatio
}

type VideoStats struct {
	ViewCount       int64   `json:"view_count"`
	TotalWatchTime  float64 `json:"total_watch_time"`
	CompletionCount int64   `json:"completion_count"`
}

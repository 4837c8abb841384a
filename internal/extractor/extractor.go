// Package extractor turns a hidden source identifier into a direct,
// time-bounded media URL.
package extractor

import (
	"context"
	"errors"

	"github.com/dom/streamgate/internal/domain"
)

var ErrNoPlayableFormat = errors.New("no progressive mp4 format available")

type Extractor interface {
	Extract(ctx context.Context, sourceID string) (*domain.MediaSource, error)
}

// Func adapts a plain function to the Extractor interface.
type Func func(ctx context.Context, sourceID string) (*domain.MediaSource, error)

func (f Func) Extract(ctx context.Context, sourceID string) (*domain.MediaSource, error) {
	return f(ctx, sourceID)
}

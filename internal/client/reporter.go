package client

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// WatchReporter tracks one visit to a playback screen. The position is read
// when the report is sent, and the report is sent at most once however many
// exit paths call Finish.
type WatchReporter struct {
	client        *Client
	videoID       string
	totalDuration float64
	started       time.Time
	now           func() time.Time

	mu       sync.Mutex
	position float64

	once   sync.Once
	result *WatchResult
	err    error
}

func (c *Client) NewWatchReporter(videoID string, totalDuration float64) *WatchReporter {
	return &WatchReporter{
		client:        c,
		videoID:       videoID,
		totalDuration: totalDuration,
		started:       time.Now(),
		now:           time.Now,
	}
}

func (r *WatchReporter) UpdatePosition(position float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.position = position
}

func (r *WatchReporter) Position() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position
}

// Finish reports the visit. Later calls return the first call's outcome.
func (r *WatchReporter) Finish(ctx context.Context) (*WatchResult, error) {
	r.once.Do(func() {
		report := WatchReport{
			Position:        r.Position(),
			SessionDuration: r.now().Sub(r.started).Seconds(),
			TotalDuration:   r.totalDuration,
		}
		r.result, r.err = r.client.ReportWatch(ctx, r.videoID, report)
		if r.err != nil {
			logrus.WithError(r.err).WithField("video_id", r.videoID).Warn("[WatchReporter.Finish] failed to report watch")
		}
	})
	return r.result, r.err
}

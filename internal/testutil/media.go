package testutil

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dom/streamgate/internal/domain"
)

const (
	RealPath     = "/real.mp4"
	FallbackPath = "/fallback.mp4"
	BrokenPath   = "/broken.mp4"
)

var (
	// RealMedia and FallbackMedia are the bytes served for the two clips, so
	// a test can tell which one reached the player.
	RealMedia     = bytes.Repeat([]byte("REAL"), 1024)
	FallbackMedia = bytes.Repeat([]byte("FALL"), 1024)
)

// MediaServer is a range-aware stand-in for the third-party media host.
type MediaServer struct {
	server   *httptest.Server
	hits     sync.Map
	failFall atomic.Bool
}

func NewMediaServer(t *testing.T) *MediaServer {
	t.Helper()

	m := &MediaServer{}
	modTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mux := http.NewServeMux()
	mux.HandleFunc(RealPath, func(w http.ResponseWriter, r *http.Request) {
		m.hit(RealPath)
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("ETag", `"real-v1"`)
		http.ServeContent(w, r, "real.mp4", modTime, bytes.NewReader(RealMedia))
	})
	mux.HandleFunc(FallbackPath, func(w http.ResponseWriter, r *http.Request) {
		m.hit(FallbackPath)
		if m.failFall.Load() {
			http.Error(w, "gone", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		http.ServeContent(w, r, "fallback.mp4", modTime, bytes.NewReader(FallbackMedia))
	})
	mux.HandleFunc(BrokenPath, func(w http.ResponseWriter, r *http.Request) {
		m.hit(BrokenPath)
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *MediaServer) hit(path string) {
	counter, _ := m.hits.LoadOrStore(path, new(atomic.Int64))
	counter.(*atomic.Int64).Add(1)
}

// Hits returns how many requests reached path.
func (m *MediaServer) Hits(path string) int64 {
	counter, ok := m.hits.Load(path)
	if !ok {
		return 0
	}
	return counter.(*atomic.Int64).Load()
}

func (m *MediaServer) URL(path string) string {
	return m.server.URL + path
}

// FailFallback makes the fallback clip answer 503.
func (m *MediaServer) FailFallback() {
	m.failFall.Store(true)
}

// StubExtractor resolves every source to a fixed URL, or fails when an
// error is set. It counts calls so tests can check caching.
type StubExtractor struct {
	mu    sync.Mutex
	url   string
	err   error
	delay time.Duration
	calls atomic.Int64
}

func NewStubExtractor(url string) *StubExtractor {
	return &StubExtractor{url: url}
}

func (s *StubExtractor) Extract(ctx context.Context, sourceID string) (*domain.MediaSource, error) {
	s.calls.Add(1)

	s.mu.Lock()
	url, err, delay := s.url, s.err, s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &domain.MediaSource{
		URL:             url,
		ContentType:     "video/mp4",
		DurationSeconds: 600,
		FormatID:        "18",
	}, nil
}

func (s *StubExtractor) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *StubExtractor) SetURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
}

func (s *StubExtractor) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *StubExtractor) Calls() int64 {
	return s.calls.Load()
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dom/streamgate/internal/config"
	"github.com/dom/streamgate/internal/domain"
	"github.com/dom/streamgate/internal/extractor"
	"github.com/dom/streamgate/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

const upstreamUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// forwardedRequestHeaders are copied from the player's request to the
// upstream so seeking works end to end.
var forwardedRequestHeaders = []string{"Range", "If-Range"}

// StreamService resolves the media behind a video and opens it upstream.
// Resolution never fails from the caller's point of view: any error is
// replaced by the configured fallback media.
type StreamService struct {
	videoRepo repository.VideoRepository
	cache     repository.SourceCache
	extractor extractor.Extractor
	cfg       *config.Config
	client    *http.Client

	group     singleflight.Group
	fallbacks metric.Int64Counter
}

// StreamOption customizes a StreamService.
type StreamOption func(*streamOptions)

type streamOptions struct {
	meterProvider metric.MeterProvider
}

// WithMeterProvider records the fallback counter and upstream client metrics
// on provider instead of the global one.
func WithMeterProvider(provider metric.MeterProvider) StreamOption {
	return func(o *streamOptions) {
		o.meterProvider = provider
	}
}

// NewStreamService wires the gateway. cache may be nil, in which case every
// stream resolves its source afresh.
func NewStreamService(videoRepo repository.VideoRepository, cache repository.SourceCache, ext extractor.Extractor, cfg *config.Config, opts ...StreamOption) *StreamService {
	options := streamOptions{meterProvider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&options)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.UpstreamTimeout

	fallbacks, err := options.meterProvider.Meter("github.com/dom/streamgate/internal/service").Int64Counter(
		"stream.source.fallbacks",
		metric.WithDescription("Streams served from the fallback media instead of the real source"),
	)
	if err != nil {
		logrus.WithError(err).Warn("[StreamService] failed to create fallback counter")
	}

	return &StreamService{
		videoRepo: videoRepo,
		cache:     cache,
		extractor: ext,
		cfg:       cfg,
		client:    &http.Client{Transport: otelhttp.NewTransport(transport, otelhttp.WithMeterProvider(options.meterProvider))},
		fallbacks: fallbacks,
	}
}

// SetHTTPClient replaces the upstream client.
func (s *StreamService) SetHTTPClient(client *http.Client) {
	s.client = client
}

func (s *StreamService) fallbackSource() *domain.MediaSource {
	return &domain.MediaSource{
		URL:         s.cfg.FallbackMediaURL,
		ContentType: "video/mp4",
		Fallback:    true,
	}
}

// Resolve returns a playable source for video, from cache, from the
// extractor, or from the fallback.
func (s *StreamService) Resolve(ctx context.Context, video *domain.Video) *domain.MediaSource {
	log := logrus.WithField("video_id", video.ID)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, video.SourceID)
		if err != nil {
			log.WithError(err).Warn("[StreamService.Resolve] source cache lookup failed")
		} else if ok {
			log.WithField("event", "source_resolved").Debug("[StreamService.Resolve] served from cache")
			return cached
		}
	}

	result, err, shared := s.group.Do(video.SourceID, func() (interface{}, error) {
		return s.extract(ctx, video)
	})
	if err != nil {
		return s.substitute(ctx, video, "extract", err)
	}

	log.WithFields(logrus.Fields{
		"event":  "source_resolved",
		"shared": shared,
	}).Info("[StreamService.Resolve] source resolved")
	return result.(*domain.MediaSource)
}

func (s *StreamService) extract(ctx context.Context, video *domain.Video) (*domain.MediaSource, error) {
	// The extraction is shared by every waiter, so one of them going away
	// must not cancel it for the rest.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ExtractTimeout)
	defer cancel()

	source, err := s.extractor.Extract(ctx, video.SourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSourceResolutionFailed, err)
	}
	if source == nil || source.URL == "" {
		return nil, fmt.Errorf("%w: extractor returned no url", domain.ErrSourceResolutionFailed)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, video.SourceID, source, s.cfg.SourceCacheTTL); err != nil {
			logrus.WithError(err).WithField("video_id", video.ID).Warn("[StreamService.extract] failed to cache source")
		}
	}
	s.recordSourceInfo(ctx, video, source)
	return source, nil
}

// recordSourceInfo fills the video's duration and format metadata the first
// time its source is resolved.
func (s *StreamService) recordSourceInfo(ctx context.Context, video *domain.Video, source *domain.MediaSource) {
	if video.DurationSeconds != nil || source.DurationSeconds <= 0 {
		return
	}

	info, err := json.Marshal(map[string]string{
		"format_id":    source.FormatID,
		"content_type": source.ContentType,
	})
	if err != nil {
		return
	}
	duration := source.DurationSeconds
	if err := s.videoRepo.UpdateSourceInfo(ctx, video.ID, &duration, datatypes.JSON(info)); err != nil {
		logrus.WithError(err).WithField("video_id", video.ID).Warn("[StreamService.recordSourceInfo] failed to store source info")
	}
}

func (s *StreamService) substitute(ctx context.Context, video *domain.Video, stage string, cause error) *domain.MediaSource {
	if s.fallbacks != nil {
		s.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	}
	logrus.WithFields(logrus.Fields{
		"event":    "source_fallback",
		"stage":    stage,
		"video_id": video.ID,
	}).WithError(cause).Warn("[StreamService] serving fallback media")
	return s.fallbackSource()
}

// Open resolves the video's source and starts the upstream request,
// forwarding range headers from header. A failing real source is retried
// once against the fallback; ErrUpstreamUnavailable means the fallback
// failed too. The caller owns the response body.
func (s *StreamService) Open(ctx context.Context, videoID uuid.UUID, header http.Header) (*http.Response, error) {
	video, err := s.videoRepo.GetByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if !video.IsActive {
		return nil, domain.ErrVideoNotFound
	}

	source := s.Resolve(ctx, video)
	resp, err := s.fetch(ctx, source, header)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if source.Fallback {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, video.SourceID); err != nil {
			logrus.WithError(err).WithField("video_id", video.ID).Warn("[StreamService.Open] failed to drop cached source")
		}
	}

	resp, err = s.fetch(ctx, s.substitute(ctx, video, "upstream", err), header)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return resp, nil
}

var errUpstreamStatus = errors.New("unexpected upstream status")

func (s *StreamService) fetch(ctx context.Context, source *domain.MediaSource, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, err
	}
	for _, name := range forwardedRequestHeaders {
		if value := header.Get(name); value != "" {
			req.Header.Set(name, value)
		}
	}
	req.Header.Set("User-Agent", upstreamUserAgent)
	if !source.Fallback {
		req.Header.Set("Referer", "https://www.youtube.com/")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent, http.StatusRequestedRangeNotSatisfiable:
		if resp.Header.Get("Content-Type") == "" && source.ContentType != "" {
			resp.Header.Set("Content-Type", source.ContentType)
		}
		return resp, nil
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", errUpstreamStatus, resp.StatusCode)
	}
}

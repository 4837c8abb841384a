package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/dom/streamgate/internal/api/respond"
	"github.com/dom/streamgate/internal/domain"
	"github.com/dom/streamgate/internal/service"
	"github.com/sirupsen/logrus"
)

// proxiedResponseHeaders are copied from the upstream media response. The
// upstream URL itself never reaches the client.
var proxiedResponseHeaders = []string{
	"Content-Length",
	"Content-Range",
	"Last-Modified",
	"ETag",
}

type StreamHandler struct {
	playbackService *service.PlaybackService
	streamService   *service.StreamService
}

func NewStreamHandler(playbackService *service.PlaybackService, streamService *service.StreamService) *StreamHandler {
	return &StreamHandler{
		playbackService: playbackService,
		streamService:   streamService,
	}
}

// Stream proxies the video bytes for a request carrying a playback token in
// the token query parameter.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(r)
	if !ok {
		respond.Error(w, r, domain.ErrVideoNotFound)
		return
	}

	playbackToken := r.URL.Query().Get("token")
	if playbackToken == "" {
		respond.Error(w, r, fmt.Errorf("%w: playback token required", domain.ErrUnauthorized))
		return
	}

	userID, err := h.playbackService.Authorize(playbackToken, videoID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"video_id": videoID,
		}).WithError(err).Warn("[StreamHandler.Stream] playback token rejected")
		respond.Error(w, r, err)
		return
	}

	resp, err := h.streamService.Open(r.Context(), videoID, r.Header)
	if err != nil {
		if r.Context().Err() != nil {
			logrus.WithField("video_id", videoID).Debug("[StreamHandler.Stream] client went away before upstream answered")
			return
		}
		respond.Error(w, r, err)
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	header.Set("Content-Type", contentType)
	header.Set("Accept-Ranges", "bytes")
	for _, name := range proxiedResponseHeaders {
		if value := resp.Header.Get(name); value != "" {
			header.Set(name, value)
		}
	}
	w.WriteHeader(resp.StatusCode)

	upstream := &upstreamReader{r: resp.Body}
	written, err := io.Copy(w, upstream)
	log := logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"video_id": videoID,
		"status":   resp.StatusCode,
		"bytes":    written,
	})
	switch {
	case err == nil:
		log.Debug("[StreamHandler.Stream] stream finished")
	case upstream.err != nil && r.Context().Err() == nil:
		log.WithError(err).Warn("[StreamHandler.Stream] upstream failed mid-stream")
	default:
		log.WithError(err).Debug("[StreamHandler.Stream] stream aborted")
	}
}

// upstreamReader remembers read failures so they can be told apart from
// write failures towards the client.
type upstreamReader struct {
	r   io.Reader
	err error
}

func (u *upstreamReader) Read(p []byte) (int, error) {
	n, err := u.r.Read(p)
	if err != nil && err != io.EOF {
		u.err = err
	}
	return n, err
}

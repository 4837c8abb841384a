package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/dom/streamgate/internal/domain"
	"github.com/sirupsen/logrus"
)

// progressiveFormat asks for a single-file MP4 with an AVC video track and
// skips HLS manifests, which mobile players cannot be proxied to.
const progressiveFormat = "best[ext=mp4][vcodec^=avc][protocol!=m3u8_native][protocol!=m3u8]/best[ext=mp4]/best"

const watchURLPrefix = "https://www.youtube.com/watch?v="

type YtDlp struct {
	path string
}

func NewYtDlp(path string) *YtDlp {
	return &YtDlp{path: path}
}

type ytdlpFormat struct {
	FormatID string `json:"format_id"`
	URL      string `json:"url"`
	Ext      string `json:"ext"`
	VCodec   string `json:"vcodec"`
	Protocol string `json:"protocol"`
}

type ytdlpInfo struct {
	ytdlpFormat
	Duration float64       `json:"duration"`
	Formats  []ytdlpFormat `json:"formats"`
}

func (y *YtDlp) Extract(ctx context.Context, sourceID string) (*domain.MediaSource, error) {
	cmd := exec.CommandContext(ctx, y.path,
		"--dump-single-json",
		"--no-warnings",
		"--no-playlist",
		"--socket-timeout", "30",
		"-f", progressiveFormat,
		watchURLPrefix+sourceID,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseInfo(output)
}

func parseInfo(output []byte) (*domain.MediaSource, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp output: %w", err)
	}

	chosen := info.ytdlpFormat
	if chosen.URL == "" {
		found := false
		for i := len(info.Formats) - 1; i >= 0; i-- {
			f := info.Formats[i]
			if isProgressiveMP4(f) {
				chosen = f
				found = true
				logrus.WithField("format_id", f.FormatID).Debug("[extractor.parseInfo] picked format from list")
				break
			}
		}
		if !found {
			return nil, ErrNoPlayableFormat
		}
	}

	return &domain.MediaSource{
		URL:             chosen.URL,
		ContentType:     contentTypeFor(chosen.Ext),
		DurationSeconds: info.Duration,
		FormatID:        chosen.FormatID,
	}, nil
}

func isProgressiveMP4(f ytdlpFormat) bool {
	return f.Ext == "mp4" &&
		f.URL != "" &&
		strings.HasPrefix(f.VCodec, "avc") &&
		!strings.Contains(strings.ToLower(f.URL), "manifest")
}

func contentTypeFor(ext string) string {
	switch ext {
	case "webm":
		return "video/webm"
	case "", "mp4", "m4v":
		return "video/mp4"
	default:
		return "video/" + ext
	}
}

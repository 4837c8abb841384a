package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dom/streamgate/internal/client"
	"github.com/dom/streamgate/internal/config"
	"github.com/dom/streamgate/internal/token"
	"github.com/golang-jwt/jwt/v5"
)

func signupCmd(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (at least 6 characters)")
	fs.Parse(args)

	result, err := c.Signup(ctx, *name, *email, *password)
	if err != nil {
		return err
	}
	fmt.Printf("Signed up as %s <%s>\n", result.User.Name, result.User.Email)
	return nil
}

func loginCmd(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password")
	fs.Parse(args)

	result, err := c.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s <%s>\n", result.User.Name, result.User.Email)
	return nil
}

func meCmd(ctx context.Context, c *client.Client) error {
	user, err := c.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("ID:      %s\nName:    %s\nEmail:   %s\nJoined:  %s\n",
		user.ID, user.Name, user.Email, user.CreatedAt.Format(time.RFC1123))
	return nil
}

func dashboardCmd(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	page := fs.Int("page", 1, "Page number")
	limit := fs.Int("limit", 10, "Videos per page (max 50)")
	fs.Parse(args)

	result, err := c.Dashboard(ctx, *page, *limit)
	if err != nil {
		return err
	}

	for _, video := range result.Videos {
		fmt.Printf("%s  %s\n", video.ID, video.Title)
	}
	p := result.Pagination
	fmt.Printf("\nPage %d of %d (%d videos)\n", p.Page, p.Pages, p.Total)
	return nil
}

func historyCmd(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of entries")
	fs.Parse(args)

	history, err := c.History(ctx, *limit)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("Nothing watched yet")
		return nil
	}
	for _, entry := range history {
		status := fmt.Sprintf("%.0fs", entry.Position)
		if entry.Completed {
			status = "completed"
		}
		fmt.Printf("%s  %-10s  %s\n", entry.VideoID, status, entry.UpdatedAt.Format(time.RFC822))
	}
	return nil
}

// watchCmd streams a video for a number of seconds and reports the watch.
// Progress is reported once, whether the run ends by timeout or Ctrl-C.
func watchCmd(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	videoID := fs.String("video", "", "Video ID")
	seconds := fs.Int("seconds", 10, "How long to watch")
	fs.Parse(args)

	if *videoID == "" {
		return errors.New("--video is required")
	}

	video, err := c.VideoInfo(ctx, *videoID)
	if err != nil {
		return err
	}

	resume := 0.0
	progress, err := c.Progress(ctx, video.ID)
	if err != nil {
		return err
	}
	if progress != nil {
		resume = progress.Position
		fmt.Printf("Resuming %q at %.0fs\n", video.Title, resume)
	} else {
		fmt.Printf("Starting %q\n", video.Title)
	}

	total := 0.0
	if video.DurationSeconds != nil {
		total = *video.DurationSeconds
	}
	reporter := c.NewWatchReporter(video.ID, total)
	reporter.UpdatePosition(resume)

	watchCtx, cancel := context.WithTimeout(ctx, time.Duration(*seconds)*time.Second)
	defer cancel()

	go func() {
		<-ctx.Done()
		// Interrupted: report before the process exits.
		reportWatch(reporter)
	}()

	started := time.Now()
	received, err := stream(watchCtx, c.StreamURL(video.ID, video.PlaybackToken), func() {
		reporter.UpdatePosition(resume + time.Since(started).Seconds())
	})
	if err != nil && watchCtx.Err() == nil {
		return err
	}
	fmt.Printf("Received %d bytes\n", received)

	reporter.UpdatePosition(resume + time.Since(started).Seconds())
	return reportWatch(reporter)
}

func reportWatch(reporter *client.WatchReporter) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := reporter.Finish(ctx)
	if err != nil {
		return err
	}
	if result != nil && result.Progress != nil {
		fmt.Printf("Saved position %.0fs (completed: %t)\n", result.Progress.Position, result.Progress.Completed)
	}
	return nil
}

func stream(ctx context.Context, streamURL string, onChunk func()) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("stream failed (status %d): %s", resp.StatusCode, body)
	}

	var received int64
	buf := make([]byte, 64*1024)
	for {
		n, err := resp.Body.Read(buf)
		received += int64(n)
		onChunk()
		if err == io.EOF {
			return received, nil
		}
		if err != nil {
			return received, err
		}
	}
}

func logoutCmd(ctx context.Context, c *client.Client) error {
	err := c.Logout(ctx)
	fmt.Println("Logged out")
	return err
}

// internalTokenCmd mints a token with the server's own secrets, so it only
// works where the server configuration is available.
func internalTokenCmd(args []string) error {
	fs := flag.NewFlagSet("internal-token", flag.ExitOnError)
	caller := fs.String("caller", "streamctl", "Name of the calling service")
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	codec, err := token.NewCodec(token.Secrets{
		Access:   cfg.AccessTokenSecret,
		Refresh:  cfg.RefreshTokenSecret,
		Playback: cfg.PlaybackTokenSecret,
		Internal: cfg.InternalTokenSecret,
	})
	if err != nil {
		return err
	}

	internalToken, err := codec.Issue(token.KindInternal, token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: *caller},
	}, cfg.InternalTokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, internalToken)
	return nil
}

func reseedCmd(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("reseed", flag.ExitOnError)
	internalToken := fs.String("token", os.Getenv("INTERNAL_TOKEN"), "Internal token (or INTERNAL_TOKEN)")
	fs.Parse(args)

	if *internalToken == "" {
		return errors.New("--token is required")
	}

	count, err := c.Reseed(ctx, *internalToken)
	if err != nil {
		return err
	}
	fmt.Printf("Catalog reseeded with %d videos\n", count)
	return nil
}

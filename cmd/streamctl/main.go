package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dom/streamgate/internal/client"
	"github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}

	// Global settings
	apiURL := "http://localhost:8080"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		apiURL = envURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(apiURL, client.NewSession(client.NewFileStore(statePath())))

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "signup":
		err = signupCmd(ctx, c, args)
	case "login":
		err = loginCmd(ctx, c, args)
	case "me":
		err = meCmd(ctx, c)
	case "dashboard":
		err = dashboardCmd(ctx, c, args)
	case "history":
		err = historyCmd(ctx, c, args)
	case "watch":
		err = watchCmd(ctx, c, args)
	case "logout":
		err = logoutCmd(ctx, c)
	case "internal-token":
		err = internalTokenCmd(args)
	case "reseed":
		err = reseedCmd(ctx, c, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func statePath() string {
	if path := os.Getenv("STREAMCTL_STATE"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".streamctl.json"
	}
	return filepath.Join(home, ".streamctl.json")
}

func printUsage() {
	fmt.Println(`streamctl - command line client for the streamgate API

USAGE:
  streamctl <command> [options]

COMMANDS:
  signup          Create an account and store its tokens
  login           Log in and store the tokens
  me              Show the signed-in user
  dashboard       List videos
  history         Show recently watched videos
  watch           Stream a video for a while and report progress
  logout          Revoke the session and forget the tokens
  internal-token  Mint a server-to-server token from INTERNAL_TOKEN_SECRET
  reseed          Reload the server catalog with an internal token
  help            Show this help message

ENVIRONMENT:
  API_URL          Backend API URL (default: http://localhost:8080)
  STREAMCTL_STATE  Token file (default: ~/.streamctl.json)

EXAMPLES:
  streamctl signup --name=Ada --email=ada@example.com --password=secret123
  streamctl dashboard --page=2
  streamctl watch --video=<id> --seconds=30
  streamctl reseed --token=$(streamctl internal-token)`)
}

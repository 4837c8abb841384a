package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/dom/streamgate/internal/api"
	"github.com/dom/streamgate/internal/api/handlers"
	"github.com/dom/streamgate/internal/config"
	"github.com/dom/streamgate/internal/repository"
	"github.com/dom/streamgate/internal/repository/memory"
	repoPostgres "github.com/dom/streamgate/internal/repository/postgres"
	repoRedis "github.com/dom/streamgate/internal/repository/redis"
	"github.com/dom/streamgate/internal/service"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer and returns a migrated
// connection. The test is skipped when no container provider is available.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_streamgate"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	testDB := &TestDB{Container: container}
	t.Cleanup(testDB.Cleanup)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := repoPostgres.Migrate(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB.DB = db
	testDB.DSN = dsn
	return testDB
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		tdb.Container.Terminate(context.Background())
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	tables := []string{
		"watch_progresses",
		"refresh_sessions",
		"videos",
		"users",
	}

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}

// NewMockDB returns a gorm handle backed by sqlmock for asserting the SQL a
// repository emits.
func NewMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open gorm over sqlmock: %v", err)
	}
	return db, mock
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:        "0", // Random port
		Environment: "test",
		LogLevel:    "error",
		DatabaseURL: "memory://",

		AccessTokenSecret:   "test-access-secret",
		RefreshTokenSecret:  "test-refresh-secret",
		PlaybackTokenSecret: "test-playback-secret",
		InternalTokenSecret: "test-internal-secret",

		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
		PlaybackTokenTTL: 5 * time.Minute,
		InternalTokenTTL: time.Minute,

		FallbackMediaURL: config.DefaultFallbackMediaURL,
		YtDlpPath:        "yt-dlp",
		ExtractTimeout:   2 * time.Second,
		UpstreamTimeout:  2 * time.Second,
		SourceCacheTTL:   5 * time.Minute,

		SignupRateLimit:  100,
		LoginRateLimit:   100,
		RefreshRateLimit: 100,
		RateLimitWindow:  time.Minute,
	}
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server    *httptest.Server
	Media     *MediaServer
	Redis     *miniredis.Miniredis
	Extractor *StubExtractor
	Repos     *repository.Repositories
	Services  *service.Services
	Config    *config.Config
}

type ServerOption func(*config.Config)

// WithConfig lets a test adjust the configuration before wiring.
func WithConfig(fn func(cfg *config.Config)) ServerOption {
	return ServerOption(fn)
}

// NewTestServer wires the full API over the in-memory store, a miniredis
// cache and a local media upstream. The stub extractor resolves every
// source to the media server's real clip until told otherwise.
func NewTestServer(t *testing.T, opts ...ServerOption) *TestServer {
	t.Helper()

	media := NewMediaServer(t)
	cfg := TestConfig()
	cfg.FallbackMediaURL = media.URL(FallbackPath)
	for _, opt := range opts {
		opt(cfg)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	redisClient := repoRedis.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { redisClient.Close() })

	extractor := NewStubExtractor(media.URL(RealPath))
	repos := memory.NewRepositories()

	services, err := service.NewServices(repos, repoRedis.NewSourceCache(redisClient), extractor, cfg)
	if err != nil {
		t.Fatalf("failed to build services: %v", err)
	}

	health := handlers.HealthChecks{
		"database": repos.Health,
		"cache":    repoRedis.NewHealthChecker(redisClient),
	}
	router := api.NewRouter(services, health, repoRedis.NewRateCounter(redisClient), cfg)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestServer{
		Server:    server,
		Media:     media,
		Redis:     mr,
		Extractor: extractor,
		Repos:     repos,
		Services:  services,
		Config:    cfg,
	}
}

// URL returns the full URL for a given path
func (ts *TestServer) URL(path string) string {
	return ts.Server.URL + path
}

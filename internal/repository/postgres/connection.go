package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dom/streamgate/internal/domain"
	"github.com/dom/streamgate/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection opens the database, retrying with exponential backoff while
// it is still coming up, and migrates the schema.
func NewConnection(databaseURL string) (*gorm.DB, error) {
	var db *gorm.DB

	connect := func() error {
		var err error
		db, err = gorm.Open(postgres.Open(databaseURL), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Warn),
			TranslateError: true,
		})
		if err != nil {
			logrus.WithError(err).Warn("[postgres.NewConnection] database not ready, retrying")
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.RefreshSession{},
		&domain.Video{},
		&domain.WatchProgress{},
	)
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		User:     NewUserRepository(db),
		Session:  NewSessionRepository(db),
		Video:    NewVideoRepository(db),
		Progress: NewProgressRepository(db),
		Health:   &healthChecker{db: db},
	}
}

type healthChecker struct {
	db *gorm.DB
}

func (h *healthChecker) Ping(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

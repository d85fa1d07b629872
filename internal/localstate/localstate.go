// Package localstate contains a durable key/value store for state kept between sessions.
package localstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var log = logrus.WithField("layer", "localstate").WithField("package", "localstate")

const (
	authTokenKey         = "auth_token"
	hasLoggedInBeforeKey = "has_logged_in_before"
)

// entry is a single persisted value.
type entry struct {
	Key       string `gorm:"primarykey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (entry) TableName() string {
	return "local_state"
}

// Store ...
type Store struct {
	db *gorm.DB
}

// Open opens the store described by url.
// Supported urls are sqlite://<path> and postgres://<dsn>; a bare value is treated as a sqlite path.
func Open(url string) (*Store, error) {
	var dialector gorm.Dialector

	switch {
	case strings.HasPrefix(url, "postgres://"):
		dialector = postgres.Open(url)
	case strings.HasPrefix(url, "sqlite://"):
		dialector = sqlite.Open(strings.TrimPrefix(url, "sqlite://"))
	case url != "":
		dialector = sqlite.Open(url)
	default:
		return nil, errors.New("local state url is empty")
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local state: %w", err)
	}

	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate local state: %w", err)
	}

	log.WithField("dialect", dialector.Name()).Debug("local state opened")

	return &Store{db: db}, nil
}

// AuthToken returns the cached auth token. It returns an empty string when there is none.
func (s *Store) AuthToken(ctx context.Context) (string, error) {
	v, _, err := s.get(ctx, authTokenKey)
	return v, err
}

// SetAuthToken ...
func (s *Store) SetAuthToken(ctx context.Context, token string) error {
	return s.set(ctx, authTokenKey, token)
}

// ClearAuthToken ...
func (s *Store) ClearAuthToken(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Delete(&entry{Key: authTokenKey}).Error; err != nil {
		return fmt.Errorf("failed to clear auth token: %w", err)
	}
	return nil
}

// HasLoggedInBefore ...
func (s *Store) HasLoggedInBefore(ctx context.Context) (bool, error) {
	v, ok, err := s.get(ctx, hasLoggedInBeforeKey)
	if err != nil {
		return false, err
	}
	return ok && v == "true", nil
}

// MarkHasLoggedInBefore ...
func (s *Store) MarkHasLoggedInBefore(ctx context.Context) error {
	return s.set(ctx, hasLoggedInBeforeKey, "true")
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close ...
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var e entry
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&e).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	return e.Value, true, nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	return nil
}

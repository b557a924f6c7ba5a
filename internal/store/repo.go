package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ykvlv/reminder-bot/internal/domain"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Supported drivers for Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

// Repo defines storage operations for users and reminders. Every method is
// atomic with respect to concurrent callers.
type Repo interface {
	// RegisterUser inserts chatID if unknown; created reports a new row.
	RegisterUser(ctx context.Context, chatID int64, at time.Time) (created bool, err error)
	GetUser(ctx context.Context, chatID int64) (*domain.User, error)
	// CreateReminder stores r and returns its assigned id.
	CreateReminder(ctx context.Context, r *domain.Reminder) (int64, error)
	// FetchDue returns reminders with from < remind_at <= to, oldest first.
	FetchDue(ctx context.Context, from, to time.Time) ([]domain.Reminder, error)
	// DeleteReminder removes a reminder; unknown ids are not an error.
	DeleteReminder(ctx context.Context, id int64) error
	// PurgeBefore removes reminders with remind_at <= cutoff.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// Open opens the backend selected by driver. dsn is a file path for sqlite
// and bolt, a connection string for postgres.
func Open(ctx context.Context, driver, dsn string) (Repo, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	case DriverBolt:
		return OpenBolt(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// unavailable tags err as a storage failure, leaving nil and ErrNotFound alone.
func unavailable(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

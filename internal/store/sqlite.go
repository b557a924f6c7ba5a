package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/ykvlv/reminder-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single connection: SQLite is a single-writer engine and this serializes
	// every statement issued by the dispatcher and request handlers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// RegisterUser inserts the chat if it is not known yet.
func (r *SQLiteRepo) RegisterUser(ctx context.Context, chatID int64, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (chat_id, created_at) VALUES (?, ?)`,
		chatID, formatCreated(at),
	)
	if err != nil {
		return false, unavailable("register user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("register user", err)
	}
	return n > 0, nil
}

// GetUser returns the user row for chatID or ErrNotFound.
func (r *SQLiteRepo) GetUser(ctx context.Context, chatID int64) (*domain.User, error) {
	var created string
	err := r.db.QueryRowContext(ctx,
		`SELECT created_at FROM users WHERE chat_id = ?`, chatID,
	).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get user", err)
	}
	return &domain.User{ChatID: chatID, CreatedAt: parseCreated(created)}, nil
}

// CreateReminder appends a reminder row and returns its id.
func (r *SQLiteRepo) CreateReminder(ctx context.Context, rem *domain.Reminder) (int64, error) {
	if rem == nil {
		return 0, errors.New("nil reminder")
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO reminders (chat_id, text, remind_at, created_at)
		VALUES (?, ?, ?, ?)`,
		rem.ChatID, rem.Text, domain.FormatMinute(rem.RemindAt), formatCreated(rem.CreatedAt),
	)
	if err != nil {
		return 0, unavailable("create reminder", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, unavailable("create reminder", err)
	}
	return id, nil
}

// FetchDue returns reminders with from < remind_at <= to ordered by remind_at.
func (r *SQLiteRepo) FetchDue(ctx context.Context, from, to time.Time) ([]domain.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, text, remind_at, created_at
		FROM reminders
		WHERE remind_at <= ?
		  AND remind_at > ?
		ORDER BY remind_at ASC, id ASC`,
		domain.FormatMinute(to), domain.FormatMinute(from),
	)
	if err != nil {
		return nil, unavailable("fetch due", err)
	}
	defer rows.Close()

	var res []domain.Reminder
	for rows.Next() {
		var row reminderRow
		if err := rows.Scan(&row.id, &row.chatID, &row.text, &row.remindAt, &row.createdAt); err != nil {
			return nil, unavailable("fetch due", err)
		}
		rem, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("reminder %d: %w", row.id, err)
		}
		res = append(res, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("fetch due", err)
	}
	return res, nil
}

// DeleteReminder removes a reminder by id.
func (r *SQLiteRepo) DeleteReminder(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	return unavailable("delete reminder", err)
}

// PurgeBefore removes reminders due at or before cutoff.
func (r *SQLiteRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE remind_at <= ?`, domain.FormatMinute(cutoff),
	)
	if err != nil {
		return 0, unavailable("purge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("purge", err)
	}
	return n, nil
}

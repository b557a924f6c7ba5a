package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ykvlv/reminder-bot/internal/domain"
)

// PostgresRepo implements Repo on top of a pgx connection pool.
type PostgresRepo struct{ pool *pgxpool.Pool }

// OpenPostgres connects to dsn, pings the server and applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepo, error) {
	if dsn == "" {
		return nil, errors.New("postgres: empty DSN")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := applyPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &PostgresRepo{pool: pool}, nil
}

func applyPostgresMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}

	migs, err := loadMigrations(DriverPostgres)
	if err != nil {
		return err
	}
	for _, m := range migs {
		var exists bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename=$1)`, m.name,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			continue
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations(filename) VALUES($1)`, m.name); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the pool.
func (r *PostgresRepo) Close() error {
	r.pool.Close()
	return nil
}

// RegisterUser inserts the chat if it is not known yet.
func (r *PostgresRepo) RegisterUser(ctx context.Context, chatID int64, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO users (chat_id, created_at) VALUES ($1, $2) ON CONFLICT (chat_id) DO NOTHING`,
		chatID, formatCreated(at),
	)
	if err != nil {
		return false, unavailable("register user", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetUser returns the user row for chatID or ErrNotFound.
func (r *PostgresRepo) GetUser(ctx context.Context, chatID int64) (*domain.User, error) {
	var created string
	err := r.pool.QueryRow(ctx, `SELECT created_at FROM users WHERE chat_id = $1`, chatID).Scan(&created)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get user", err)
	}
	return &domain.User{ChatID: chatID, CreatedAt: parseCreated(created)}, nil
}

// CreateReminder appends a reminder row and returns its id.
func (r *PostgresRepo) CreateReminder(ctx context.Context, rem *domain.Reminder) (int64, error) {
	if rem == nil {
		return 0, errors.New("nil reminder")
	}
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO reminders (chat_id, text, remind_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		rem.ChatID, rem.Text, domain.FormatMinute(rem.RemindAt), formatCreated(rem.CreatedAt),
	).Scan(&id)
	if err != nil {
		return 0, unavailable("create reminder", err)
	}
	return id, nil
}

// FetchDue returns reminders with from < remind_at <= to ordered by remind_at.
func (r *PostgresRepo) FetchDue(ctx context.Context, from, to time.Time) ([]domain.Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, chat_id, text, remind_at, created_at
		FROM reminders
		WHERE remind_at <= $1
		  AND remind_at > $2
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
func (r *PostgresRepo) DeleteReminder(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	return unavailable("delete reminder", err)
}

// PurgeBefore removes reminders due at or before cutoff.
func (r *PostgresRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reminders WHERE remind_at <= $1`, domain.FormatMinute(cutoff))
	if err != nil {
		return 0, unavailable("purge", err)
	}
	return tag.RowsAffected(), nil
}

// Package attempts journals sign-up submissions in Postgres.
// Passwords and phone numbers are never stored.
package attempts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/signupbot/core/logger"
)

// Attempt is a single journaled submission.
type Attempt struct {
	ID         int64     `db:"id"`
	TelegramID int64     `db:"telegram_id"`
	Login      string    `db:"login"`
	Role       string    `db:"role"`
	Outcome    string    `db:"outcome"`
	CreatedAt  time.Time `db:"created_at"`
}

// Journal stores attempts in the signup_attempts table.
type Journal struct {
	db *sqlx.DB
}

// NewJournal wraps an open connection pool.
func NewJournal(db *sqlx.DB) *Journal {
	return &Journal{db: db}
}

const insertAttempt = `
INSERT INTO signup_attempts (telegram_id, login, role, outcome)
VALUES (:telegram_id, :login, :role, :outcome)
RETURNING id, created_at`

// Record inserts a and fills its ID and CreatedAt.
func (j *Journal) Record(ctx context.Context, a *Attempt) error {
	start := time.Now()
	stmt, err := j.db.PrepareNamedContext(ctx, insertAttempt)
	if err != nil {
		return fmt.Errorf("attempts: prepare insert: %w", err)
	}
	defer stmt.Close()

	if err := stmt.QueryRowxContext(ctx, a).Scan(&a.ID, &a.CreatedAt); err != nil {
		logger.Error(ctx, "attempts", "attempts.record",
			slog.String("status", "fail"),
			slog.String("outcome", a.Outcome),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("attempts: insert: %w", err)
	}
	logger.Debug(ctx, "attempts", "attempts.record",
		slog.String("status", "ok"),
		slog.String("outcome", a.Outcome),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

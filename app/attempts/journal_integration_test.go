package attempts

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// TestJournal_Integration runs against a live PostgreSQL given by DATABASE_URL
// with the migrations from ./migrations applied.
func TestJournal_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	var exists bool
	if err := db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'signup_attempts')`); err != nil {
		t.Fatalf("schema check: %v", err)
	}
	if !exists {
		t.Skip("database schema missing; run migrations: migrate -path migrations -database \"$DATABASE_URL\" up")
	}

	telegramID := time.Now().UnixNano()
	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE FROM signup_attempts WHERE telegram_id = $1`, telegramID)
	})

	j := NewJournal(db)
	first := &Attempt{TelegramID: telegramID, Login: "alice", Role: "user", Outcome: "server_error"}
	if err := j.Record(ctx, first); err != nil {
		t.Fatalf("record first: %v", err)
	}
	second := &Attempt{TelegramID: telegramID, Login: "alice", Role: "user", Outcome: "created"}
	if err := j.Record(ctx, second); err != nil {
		t.Fatalf("record second: %v", err)
	}
	if first.ID == 0 || second.ID == 0 || first.CreatedAt.IsZero() {
		t.Fatalf("expected ids and timestamps to be filled: %+v %+v", first, second)
	}

	var recent []Attempt
	err = db.SelectContext(ctx, &recent, `
SELECT id, telegram_id, login, role, outcome, created_at
FROM signup_attempts
WHERE telegram_id = $1
ORDER BY created_at DESC, id DESC`, telegramID)
	if err != nil {
		t.Fatalf("select attempts: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(recent))
	}
	if recent[0].Outcome != "created" {
		t.Fatalf("expected newest attempt first, got %+v", recent[0])
	}
}

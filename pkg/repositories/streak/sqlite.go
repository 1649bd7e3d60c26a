package streak

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fadedpez/caminata/pkg/entities"
	_ "github.com/mattn/go-sqlite3"
)

const createStreaksTableSQL = `
	CREATE TABLE IF NOT EXISTS streaks (
		account_id TEXT PRIMARY KEY,
		current INTEGER NOT NULL DEFAULT 0,
		longest INTEGER NOT NULL DEFAULT 0,
		last_active_date TEXT,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

const sqliteTimeFormat = "2006-01-02 15:04:05"

// SQLiteRepository implements Repository using SQLite
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite streak repository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if _, err := db.Exec(createStreaksTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating streaks table: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// GetStreak retrieves the streak record for an account
func (r *SQLiteRepository) GetStreak(ctx context.Context, accountID string) (*entities.Streak, error) {
	query := `SELECT account_id, current, longest, last_active_date, updated_at FROM streaks WHERE account_id = ?`

	var streak entities.Streak
	var lastActive sql.NullString
	var updatedAt string

	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&streak.AccountID,
		&streak.Current,
		&streak.Longest,
		&lastActive,
		&updatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStreakNotFound
		}
		return nil, fmt.Errorf("error getting streak: %w", err)
	}

	streak.LastActiveDate = lastActive.String

	streak.UpdatedAt, err = time.Parse(sqliteTimeFormat, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("error parsing timestamp '%s': %w", updatedAt, err)
	}

	return &streak, nil
}

// SaveStreak creates or updates the streak record for an account
func (r *SQLiteRepository) SaveStreak(ctx context.Context, streak *entities.Streak) error {
	formattedTime := time.Now().Format(sqliteTimeFormat)

	var lastActive sql.NullString
	if streak.LastActiveDate != "" {
		lastActive = sql.NullString{String: streak.LastActiveDate, Valid: true}
	}

	query := `
		INSERT INTO streaks (account_id, current, longest, last_active_date, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			current = ?,
			longest = ?,
			last_active_date = ?,
			updated_at = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		streak.AccountID, streak.Current, streak.Longest, lastActive, formattedTime,
		streak.Current, streak.Longest, lastActive, formattedTime,
	)
	if err != nil {
		return fmt.Errorf("error saving streak: %w", err)
	}

	return nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

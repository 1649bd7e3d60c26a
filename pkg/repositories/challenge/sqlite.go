package challenge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fadedpez/caminata/pkg/entities"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

const createClaimsTableSQL = `
	CREATE TABLE IF NOT EXISTS challenge_claims (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		reward_key TEXT NOT NULL,
		period_key TEXT NOT NULL DEFAULT '',
		client_request_id TEXT,
		claimed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (account_id, reward_key, period_key)
	)`

const createClaimIndexesSQL = `
	CREATE INDEX IF NOT EXISTS idx_claims_account ON challenge_claims(account_id)
	`

const sqliteTimeFormat = "2006-01-02 15:04:05"

// SQLiteRepository implements Repository using SQLite
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite claim repository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if _, err := db.Exec(createClaimsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating claims table: %w", err)
	}

	if _, err := db.Exec(createClaimIndexesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating claim indexes: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// GetClaim retrieves the claim for (account, key, period)
func (r *SQLiteRepository) GetClaim(ctx context.Context, accountID, key, periodKey string) (*entities.ChallengeClaim, error) {
	query := `
		SELECT id, account_id, reward_key, period_key, client_request_id, claimed_at
		FROM challenge_claims
		WHERE account_id = ? AND reward_key = ? AND period_key = ?`

	var claim entities.ChallengeClaim
	var requestID sql.NullString
	var claimedAt string

	err := r.db.QueryRowContext(ctx, query, accountID, key, periodKey).Scan(
		&claim.ID,
		&claim.AccountID,
		&claim.Key,
		&claim.PeriodKey,
		&requestID,
		&claimedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("error getting claim: %w", err)
	}

	claim.ClientRequestID = requestID.String

	claim.ClaimedAt, err = time.Parse(sqliteTimeFormat, claimedAt)
	if err != nil {
		return nil, fmt.Errorf("error parsing timestamp '%s': %w", claimedAt, err)
	}

	return &claim, nil
}

// InsertClaim records a new claim, relying on the unique constraint to
// pick one winner under concurrent inserts
func (r *SQLiteRepository) InsertClaim(ctx context.Context, claim *entities.ChallengeClaim) error {
	if claim.ID == "" {
		claim.ID = uuid.New().String()
	}
	if claim.ClaimedAt.IsZero() {
		claim.ClaimedAt = time.Now()
	}

	var requestID sql.NullString
	if claim.ClientRequestID != "" {
		requestID = sql.NullString{String: claim.ClientRequestID, Valid: true}
	}

	query := `
		INSERT INTO challenge_claims (id, account_id, reward_key, period_key, client_request_id, claimed_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		claim.ID,
		claim.AccountID,
		claim.Key,
		claim.PeriodKey,
		requestID,
		claim.ClaimedAt.Format(sqliteTimeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateClaim
		}
		return fmt.Errorf("error inserting claim: %w", err)
	}

	return nil
}

// CountClaims counts the claims an account holds for a reward key
func (r *SQLiteRepository) CountClaims(ctx context.Context, accountID, key string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM challenge_claims WHERE account_id = ? AND reward_key = ?`,
		accountID, key).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting claims: %w", err)
	}
	return count, nil
}

// ListClaims retrieves all claims for an account
func (r *SQLiteRepository) ListClaims(ctx context.Context, accountID string) ([]*entities.ChallengeClaim, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, reward_key, period_key, client_request_id, claimed_at
		FROM challenge_claims
		WHERE account_id = ?
		ORDER BY claimed_at`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying claims: %w", err)
	}
	defer rows.Close()

	var claims []*entities.ChallengeClaim
	for rows.Next() {
		var claim entities.ChallengeClaim
		var requestID sql.NullString
		var claimedAt string

		err := rows.Scan(
			&claim.ID,
			&claim.AccountID,
			&claim.Key,
			&claim.PeriodKey,
			&requestID,
			&claimedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning claim row: %w", err)
		}

		claim.ClientRequestID = requestID.String

		claim.ClaimedAt, err = time.Parse(sqliteTimeFormat, claimedAt)
		if err != nil {
			return nil, fmt.Errorf("error parsing timestamp '%s': %w", claimedAt, err)
		}

		claims = append(claims, &claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claim rows: %w", err)
	}

	return claims, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

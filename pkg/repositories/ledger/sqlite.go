package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fadedpez/caminata/pkg/entities"
	"github.com/mattn/go-sqlite3"
)

// SQLite table schemas
const (
	createWalletsTableSQL = `
	CREATE TABLE IF NOT EXISTS wallets (
		account_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		balance INTEGER NOT NULL DEFAULT 0,
		total_earned INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (account_id, kind)
	)`

	createEntriesTableSQL = `
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		delta INTEGER NOT NULL,
		type TEXT NOT NULL,
		reason TEXT,
		metadata TEXT,
		balance_after INTEGER NOT NULL,
		client_request_id TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

	createUsageTableSQL = `
	CREATE TABLE IF NOT EXISTS daily_usage (
		account_id TEXT NOT NULL,
		date_key TEXT NOT NULL,
		used INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (account_id, date_key)
	)`

	createEarnedTableSQL = `
	CREATE TABLE IF NOT EXISTS daily_earned (
		account_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		date_key TEXT NOT NULL,
		earned INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (account_id, kind, date_key)
	)`

	createEntryIndexesSQL = `
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_request
		ON ledger_entries(account_id, kind, client_request_id)
		WHERE client_request_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_entries_account ON ledger_entries(account_id, kind, id DESC);
	CREATE INDEX IF NOT EXISTS idx_entries_created ON ledger_entries(created_at)
	`
)

const sqliteTimeFormat = "2006-01-02 15:04:05"

// SQLiteRepository implements Repository using SQLite
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite repository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating database directory: %w", err)
	}

	// Open database. The busy timeout keeps concurrent writers queued
	// instead of failing immediately with SQLITE_BUSY.
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Create tables if they don't exist
	for _, schema := range []string{createWalletsTableSQL, createEntriesTableSQL, createUsageTableSQL, createEarnedTableSQL, createEntryIndexesSQL} {
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("error creating schema: %w", err)
		}
	}

	return &SQLiteRepository{db: db}, nil
}

// GetWallet retrieves a wallet by account and kind
func (r *SQLiteRepository) GetWallet(ctx context.Context, accountID string, kind entities.EconomyKind) (*entities.Wallet, error) {
	query := `SELECT account_id, kind, balance, total_earned, updated_at FROM wallets WHERE account_id = ? AND kind = ?`

	var wallet entities.Wallet
	var updatedAt string

	err := r.db.QueryRowContext(ctx, query, accountID, string(kind)).Scan(
		&wallet.AccountID,
		&wallet.Kind,
		&wallet.Balance,
		&wallet.TotalEarned,
		&updatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("error getting wallet: %w", err)
	}

	wallet.LastUpdated, err = parseTimestamp(updatedAt)
	if err != nil {
		return nil, err
	}

	return &wallet, nil
}

// CreateWallet creates a wallet only if it does not already exist
func (r *SQLiteRepository) CreateWallet(ctx context.Context, accountID string, kind entities.EconomyKind, initialBalance int64) (*entities.Wallet, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Format(sqliteTimeFormat)

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO wallets (account_id, kind, balance, total_earned, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		accountID, string(kind), initialBalance, initialBalance, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("error creating wallet: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("error getting rows affected: %w", err)
	}

	created := rows > 0
	if created && initialBalance > 0 {
		metadata := &entities.EntryMetadata{
			Init: &entities.InitMetadata{ImportedBalance: initialBalance},
		}
		if _, err := insertEntry(ctx, tx, ApplyParams{
			AccountID: accountID,
			Kind:      kind,
			Delta:     initialBalance,
			Type:      entities.EntryTypeInit,
			Reason:    "wallet registration",
			Metadata:  metadata,
		}, initialBalance); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("error committing transaction: %w", err)
	}

	wallet, err := r.GetWallet(ctx, accountID, kind)
	if err != nil {
		return nil, false, err
	}
	return wallet, created, nil
}

// ApplyDelta atomically applies a signed delta and appends a ledger entry
func (r *SQLiteRepository) ApplyDelta(ctx context.Context, params ApplyParams) (*entities.LedgerEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := applyInTx(ctx, tx, params)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing transaction: %w", err)
	}
	return entry, nil
}

// ApplyDeltaWithCap applies a spend and increments daily usage in one unit
func (r *SQLiteRepository) ApplyDeltaWithCap(ctx context.Context, params ApplyParams, dateKey string, limit int64) (*entities.LedgerEntry, int64, error) {
	amount := -params.Delta
	if amount <= 0 {
		return nil, 0, fmt.Errorf("capped apply requires a negative delta, got %d", params.Delta)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	// Checked before the cap: a duplicate of a spend that already applied
	// must surface as a duplicate even when today's cap is exhausted.
	if err := checkRequestInTx(ctx, tx, params); err != nil {
		return nil, 0, err
	}

	var used int64
	err = tx.QueryRowContext(ctx, `SELECT used FROM daily_usage WHERE account_id = ? AND date_key = ?`,
		params.AccountID, dateKey).Scan(&used)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("error reading daily usage: %w", err)
	}

	if used+amount > limit {
		return nil, 0, &CapExceededError{Used: used, Limit: limit}
	}

	params.Metadata = &entities.EntryMetadata{
		Cap: &entities.CapMetadata{DateKey: dateKey, Used: used + amount, Limit: limit},
	}

	entry, err := applyInTx(ctx, tx, params)
	if err != nil {
		return nil, 0, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_usage (account_id, date_key, used) VALUES (?, ?, ?)
		ON CONFLICT(account_id, date_key) DO UPDATE SET used = used + ?`,
		params.AccountID, dateKey, amount, amount,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("error updating daily usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("error committing transaction: %w", err)
	}
	return entry, used + amount, nil
}

// SyncDailyEarned applies the positive difference of a client-reported
// earned-today value against the recorded high-water mark
func (r *SQLiteRepository) SyncDailyEarned(ctx context.Context, params ApplyParams, dateKey string, reported int64) (*entities.LedgerEntry, int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	// Checked before the no-op short-circuit so a duplicate replays the
	// recorded entry instead of reading as a fresh stale report.
	if err := checkRequestInTx(ctx, tx, params); err != nil {
		return nil, 0, err
	}

	var previous int64
	err = tx.QueryRowContext(ctx, `SELECT earned FROM daily_earned WHERE account_id = ? AND kind = ? AND date_key = ?`,
		params.AccountID, string(params.Kind), dateKey).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("error reading daily earned: %w", err)
	}

	if reported <= previous {
		return nil, 0, nil
	}

	diff := reported - previous
	params.Delta = diff
	params.Metadata = &entities.EntryMetadata{
		Sync: &entities.SyncMetadata{DateKey: dateKey, Reported: reported, Previous: previous},
	}

	entry, err := applyInTx(ctx, tx, params)
	if err != nil {
		return nil, 0, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_earned (account_id, kind, date_key, earned) VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, kind, date_key) DO UPDATE SET earned = ?`,
		params.AccountID, string(params.Kind), dateKey, reported, reported,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("error updating daily earned: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("error committing transaction: %w", err)
	}
	return entry, diff, nil
}

// applyInTx performs the idempotency check, the conditional balance update,
// and the history append inside the caller's transaction.
func applyInTx(ctx context.Context, tx *sql.Tx, params ApplyParams) (*entities.LedgerEntry, error) {
	if err := checkRequestInTx(ctx, tx, params); err != nil {
		return nil, err
	}

	now := time.Now().Format(sqliteTimeFormat)

	// Lazy bootstrap at zero
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO wallets (account_id, kind, updated_at) VALUES (?, ?, ?)`,
		params.AccountID, string(params.Kind), now)
	if err != nil {
		return nil, fmt.Errorf("error bootstrapping wallet: %w", err)
	}

	// The conditional update is what keeps the balance from going negative
	// under concurrent spends.
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance + ?,
			total_earned = total_earned + CASE WHEN ? > 0 THEN ? ELSE 0 END,
			updated_at = ?
		WHERE account_id = ? AND kind = ? AND balance + ? >= 0`,
		params.Delta, params.Delta, params.Delta, now,
		params.AccountID, string(params.Kind), params.Delta,
	)
	if err != nil {
		return nil, fmt.Errorf("error updating balance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("error getting rows affected: %w", err)
	}

	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE account_id = ? AND kind = ?`,
		params.AccountID, string(params.Kind)).Scan(&balance)
	if err != nil {
		return nil, fmt.Errorf("error reading balance: %w", err)
	}

	if rows == 0 {
		return nil, &InsufficientBalanceError{Balance: balance, Required: -params.Delta}
	}

	return insertEntry(ctx, tx, params, balance)
}

// checkRequestInTx returns ErrDuplicateRequest when the request ID has
// already been recorded for this account and kind
func checkRequestInTx(ctx context.Context, tx *sql.Tx, params ApplyParams) error {
	if params.ClientRequestID == "" {
		return nil
	}
	var existing int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM ledger_entries WHERE account_id = ? AND kind = ? AND client_request_id = ?`,
		params.AccountID, string(params.Kind), params.ClientRequestID).Scan(&existing)
	if err == nil {
		return ErrDuplicateRequest
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("error checking request id: %w", err)
	}
	return nil
}

// insertEntry appends a ledger entry with the given balance_after.
func insertEntry(ctx context.Context, tx *sql.Tx, params ApplyParams, balanceAfter int64) (*entities.LedgerEntry, error) {
	var metadataJSON sql.NullString
	if params.Metadata != nil {
		encoded, err := json.Marshal(params.Metadata)
		if err != nil {
			return nil, fmt.Errorf("error encoding metadata: %w", err)
		}
		metadataJSON = sql.NullString{String: string(encoded), Valid: true}
	}

	var requestID sql.NullString
	if params.ClientRequestID != "" {
		requestID = sql.NullString{String: params.ClientRequestID, Valid: true}
	}

	createdAt := time.Now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (account_id, kind, delta, type, reason, metadata, balance_after, client_request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.AccountID, string(params.Kind), params.Delta, string(params.Type),
		params.Reason, metadataJSON, balanceAfter, requestID, createdAt.Format(sqliteTimeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRequest
		}
		return nil, fmt.Errorf("error adding ledger entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("error getting entry id: %w", err)
	}

	return &entities.LedgerEntry{
		ID:              id,
		AccountID:       params.AccountID,
		Kind:            params.Kind,
		Delta:           params.Delta,
		Type:            params.Type,
		Reason:          params.Reason,
		Metadata:        params.Metadata,
		BalanceAfter:    balanceAfter,
		ClientRequestID: params.ClientRequestID,
		CreatedAt:       createdAt,
	}, nil
}

// GetEntryByRequestID retrieves the entry recorded for an idempotency key
func (r *SQLiteRepository) GetEntryByRequestID(ctx context.Context, accountID string, kind entities.EconomyKind, requestID string) (*entities.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, kind, delta, type, reason, metadata, balance_after, client_request_id, created_at
		FROM ledger_entries
		WHERE account_id = ? AND kind = ? AND client_request_id = ?`,
		accountID, string(kind), requestID,
	)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return entry, nil
}

// GetEntries retrieves the most recent entries for an account and kind
func (r *SQLiteRepository) GetEntries(ctx context.Context, accountID string, kind entities.EconomyKind, limit int) ([]*entities.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, kind, delta, type, reason, metadata, balance_after, client_request_id, created_at
		FROM ledger_entries
		WHERE account_id = ? AND kind = ?
		ORDER BY id DESC
		LIMIT ?`,
		accountID, string(kind), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetDailyUsage retrieves the capped usage recorded for a date
func (r *SQLiteRepository) GetDailyUsage(ctx context.Context, accountID, dateKey string) (int64, error) {
	var used int64
	err := r.db.QueryRowContext(ctx, `SELECT used FROM daily_usage WHERE account_id = ? AND date_key = ?`,
		accountID, dateKey).Scan(&used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("error reading daily usage: %w", err)
	}
	return used, nil
}

// GetEntriesAfter retrieves entries for the archiver in ID order
func (r *SQLiteRepository) GetEntriesAfter(ctx context.Context, afterID int64, cutoff time.Time, limit int) ([]*entities.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, kind, delta, type, reason, metadata, balance_after, client_request_id, created_at
		FROM ledger_entries
		WHERE id > ? AND created_at <= ?
		ORDER BY id
		LIMIT ?`,
		afterID, cutoff.Format(sqliteTimeFormat), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*entities.LedgerEntry, error) {
	var entry entities.LedgerEntry
	var reason, metadataJSON, requestID sql.NullString
	var createdAt string

	err := row.Scan(
		&entry.ID,
		&entry.AccountID,
		&entry.Kind,
		&entry.Delta,
		&entry.Type,
		&reason,
		&metadataJSON,
		&entry.BalanceAfter,
		&requestID,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Reason = reason.String
	entry.ClientRequestID = requestID.String

	if metadataJSON.Valid && metadataJSON.String != "" {
		var metadata entities.EntryMetadata
		if err := json.Unmarshal([]byte(metadataJSON.String), &metadata); err != nil {
			return nil, fmt.Errorf("error decoding metadata: %w", err)
		}
		entry.Metadata = &metadata
	}

	entry.CreatedAt, err = parseTimestamp(createdAt)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func scanEntries(rows *sql.Rows) ([]*entities.LedgerEntry, error) {
	var entries []*entities.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning entry row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}
	return entries, nil
}

// parseTimestamp parses timestamps in the formats SQLite may store them in
func parseTimestamp(value string) (time.Time, error) {
	formats := []string{
		sqliteTimeFormat,
		"2006-01-02T15:04:05Z",
		time.RFC3339,
	}

	var parseErr error
	for _, format := range formats {
		var parsed time.Time
		parsed, parseErr = time.Parse(format, value)
		if parseErr == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("error parsing timestamp '%s': %w", value, parseErr)
}

// isUniqueViolation reports whether err is a SQLite uniqueness constraint
// failure, which the idempotency and claim registries rely on to pick one
// winner under concurrent inserts.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

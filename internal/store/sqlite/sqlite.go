package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/akovalev/netchat-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS transfers (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id        TEXT NOT NULL,
	sender         TEXT NOT NULL,
	recipient      TEXT NOT NULL,
	filename       TEXT NOT NULL,
	final_filename TEXT NOT NULL,
	size           INTEGER NOT NULL,
	outcome        TEXT NOT NULL,
	reason         TEXT NOT NULL DEFAULT '',
	enqueued_at    DATETIME NOT NULL,
	finished_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transfers_recipient ON transfers(recipient);
`

// New opens (or creates) the SQLite database and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordTransfer appends one finished transfer to the audit trail.
func (s *SQLiteStore) RecordTransfer(ctx context.Context, rec *store.TransferRecord) error {
	query := `
		INSERT INTO transfers
			(task_id, sender, recipient, filename, final_filename, size, outcome, reason, enqueued_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		rec.TaskID,
		rec.Sender,
		rec.Recipient,
		rec.Filename,
		rec.FinalFilename,
		int64(rec.Size),
		string(rec.Outcome),
		rec.Reason,
		rec.EnqueuedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// RecentTransfers returns the most recently finished transfers, newest first.
func (s *SQLiteStore) RecentTransfers(ctx context.Context, limit int) ([]store.TransferRecord, error) {
	query := `
		SELECT id, task_id, sender, recipient, filename, final_filename, size, outcome, reason, enqueued_at, finished_at
		FROM transfers
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var records []store.TransferRecord
	for rows.Next() {
		var rec store.TransferRecord
		var size int64
		var outcome string
		if err := rows.Scan(
			&rec.ID,
			&rec.TaskID,
			&rec.Sender,
			&rec.Recipient,
			&rec.Filename,
			&rec.FinalFilename,
			&size,
			&outcome,
			&rec.Reason,
			&rec.EnqueuedAt,
			&rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		rec.Size = uint64(size)
		rec.Outcome = store.TransferOutcome(outcome)
		records = append(records, rec)
	}
	return records, rows.Err()
}

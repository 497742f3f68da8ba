package studio

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStorage implements PrivateStorage on a single SQLite table.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens dbPath (":memory:" is allowed) and creates the
// schema when missing.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// An in-memory database only exists on its own connection.
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS private_data (
		document_id TEXT NOT NULL,
		entry_key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (document_id, entry_key)
	) WITHOUT ROWID;
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) PrivateData(ctx context.Context, documentID string) (PrivateData, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_key, value FROM private_data WHERE document_id = ?`, documentID)
	if err != nil {
		return nil, fmt.Errorf("read private data: %w", err)
	}
	defer func() { _ = rows.Close() }()

	data := PrivateData{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan private data: %w", err)
		}
		data[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read private data: %w", err)
	}
	return data, nil
}

func (s *SQLiteStorage) SetPrivateData(ctx context.Context, documentID string, data PrivateData) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM private_data WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("clear private data: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO private_data (document_id, entry_key, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for key, value := range data {
		if _, err = stmt.ExecContext(ctx, documentID, key, value); err != nil {
			return fmt.Errorf("write private data %q: %w", key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit private data: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

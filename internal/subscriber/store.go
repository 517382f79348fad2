package subscriber

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bridgebot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.SubscriberStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS subscribers (
		foreign_id           TEXT PRIMARY KEY,
		first_name           TEXT,
		last_name            TEXT,
		avatar_attachment_id TEXT,
		locale               TEXT,
		updated_at           DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert inserts or refreshes a subscriber profile.
func (s *SQLiteStore) Upsert(ctx context.Context, p domain.SubscriberProfile) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers (foreign_id, first_name, last_name, avatar_attachment_id, locale, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(foreign_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			avatar_attachment_id = excluded.avatar_attachment_id,
			locale = excluded.locale,
			updated_at = excluded.updated_at`,
		p.ForeignID, p.FirstName, p.LastName, p.AvatarAttachmentID, p.Locale, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert subscriber %s: %w", p.ForeignID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, foreignID string) (*domain.SubscriberProfile, error) {
	var p domain.SubscriberProfile
	err := s.db.QueryRowContext(ctx,
		`SELECT foreign_id, first_name, last_name, avatar_attachment_id, locale, updated_at
		 FROM subscribers WHERE foreign_id = ?`, foreignID,
	).Scan(&p.ForeignID, &p.FirstName, &p.LastName, &p.AvatarAttachmentID, &p.Locale, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber %s: %w", foreignID, err)
	}
	return &p, nil
}

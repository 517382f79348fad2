package attachment

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bridgebot/internal/domain"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Config configures the attachment service.
type Config struct {
	StoragePath   string // base directory for stored attachments
	PublicBaseURL string // base URL under which stored files are served
	MaxSizeBytes  int64  // max file size in bytes (default: 50MB)
	DBPath        string // sqlite metadata database
	Logger        *slog.Logger
}

// Service stores attachment streams on disk with sqlite metadata and
// resolves durable attachment ids back to fetchable URLs.
type Service struct {
	storagePath   string
	publicBaseURL string
	maxSizeBytes  int64
	db            *sql.DB
	client        *http.Client
	logger        *slog.Logger
}

// New creates the attachment service, its storage directory and its
// metadata database.
func New(cfg Config) (*Service, error) {
	storage := cfg.StoragePath
	if storage == "" {
		home, _ := os.UserHomeDir()
		storage = filepath.Join(home, ".bridgebot", "attachments")
	}
	if err := os.MkdirAll(storage, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment storage: %w", err)
	}

	maxSize := cfg.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = 50 * 1024 * 1024 // 50MB default
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(storage, "attachments.db")
	}
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open attachment database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Service{
		storagePath:   storage,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		maxSizeBytes:  maxSize,
		db:            db,
		client:        &http.Client{Timeout: 30 * time.Second},
		logger:        cfg.Logger,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("attachment database migration failed: %w", err)
	}

	return s, nil
}

func (s *Service) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attachments (
		id           TEXT PRIMARY KEY,
		filename     TEXT NOT NULL,
		mime_type    TEXT,
		size         INTEGER DEFAULT 0,
		storage_path TEXT NOT NULL,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_attachments_created ON attachments(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Service) Close() error {
	return s.db.Close()
}

// Store saves an attachment stream to disk and records it in the database.
func (s *Service) Store(ctx context.Context, r io.Reader, meta domain.AttachmentMeta) (*domain.StoredAttachment, error) {
	id := uuid.NewString()

	ext := filepath.Ext(meta.Filename)
	if ext == "" {
		ext = extensionForMime(meta.MimeType)
	}
	storageName := id + ext
	storagePath := filepath.Join(s.storagePath, storageName)

	outFile, err := os.Create(storagePath)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	limitedReader := io.LimitReader(r, s.maxSizeBytes+1)
	written, err := io.Copy(outFile, limitedReader)
	outFile.Close()
	if err != nil {
		os.Remove(storagePath)
		return nil, fmt.Errorf("write file: %w", err)
	}
	if written > s.maxSizeBytes {
		os.Remove(storagePath)
		return nil, fmt.Errorf("attachment too large: %d bytes (max: %d)", written, s.maxSizeBytes)
	}

	info := &domain.StoredAttachment{
		ID:          id,
		Filename:    meta.Filename,
		MimeType:    meta.MimeType,
		Size:        written,
		StoragePath: storagePath,
		CreatedAt:   time.Now(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attachments (id, filename, mime_type, size, storage_path)
		 VALUES (?, ?, ?, ?, ?)`,
		info.ID, info.Filename, info.MimeType, info.Size, info.StoragePath,
	)
	if err != nil {
		s.logger.Warn("failed to record attachment in database", "err", err)
	}

	s.logger.Info("attachment stored",
		"id", info.ID,
		"filename", meta.Filename,
		"size", written,
		"mime_type", meta.MimeType,
	)

	return info, nil
}

// ResolveURL turns a durable attachment id into a fetchable URL. With a
// public base URL configured the result is servable externally;
// otherwise the local storage path is returned, which Open understands.
func (s *Service) ResolveURL(ctx context.Context, id string) (string, error) {
	var storagePath string
	err := s.db.QueryRowContext(ctx,
		`SELECT storage_path FROM attachments WHERE id = ?`, id,
	).Scan(&storagePath)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("attachment not found: %s", id)
	}
	if err != nil {
		return "", fmt.Errorf("resolve attachment %s: %w", id, err)
	}

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + filepath.Base(storagePath), nil
	}
	return storagePath, nil
}

// Get returns the metadata record for a stored attachment.
func (s *Service) Get(ctx context.Context, id string) (*domain.StoredAttachment, error) {
	var a domain.StoredAttachment
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, mime_type, size, storage_path, created_at
		 FROM attachments WHERE id = ?`, id,
	).Scan(&a.ID, &a.Filename, &a.MimeType, &a.Size, &a.StoragePath, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("attachment not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Open fetches the content behind a resolved URL: http(s) URLs are
// downloaded, anything else is treated as a local storage path.
func (s *Service) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build fetch request: %w", err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
		}
		return resp.Body, nil
	}

	f, err := os.Open(url)
	if err != nil {
		return nil, fmt.Errorf("open stored attachment: %w", err)
	}
	return f, nil
}

// extensionForMime maps common MIME types to a file extension for
// stored files whose original filename had none.
func extensionForMime(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}

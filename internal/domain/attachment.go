package domain

import (
	"context"
	"io"
	"time"
)

// StoredAttachment describes an attachment persisted by the platform.
type StoredAttachment struct {
	ID          string
	Filename    string
	MimeType    string
	Size        int64
	StoragePath string
	CreatedAt   time.Time
}

// AttachmentMeta accompanies an attachment stream on Store.
type AttachmentMeta struct {
	Filename string
	MimeType string
}

// AttachmentService persists attachment streams and resolves durable
// references back to fetchable URLs.
type AttachmentService interface {
	Store(ctx context.Context, r io.Reader, meta AttachmentMeta) (*StoredAttachment, error)
	ResolveURL(ctx context.Context, id string) (string, error)

	// Open fetches the content behind a resolved URL (http(s) or a
	// local storage path).
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// LanguageService supplies the platform default locale for new
// subscriber profiles.
type LanguageService interface {
	DefaultLanguage() string
}

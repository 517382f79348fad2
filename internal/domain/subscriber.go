package domain

import (
	"context"
	"time"
)

// SubscriberProfile is the persisted identity of a conversation
// participant. Guild conversations surface the server/channel pair as
// the name; direct messages surface the human author.
type SubscriberProfile struct {
	ForeignID          string
	FirstName          string
	LastName           string
	AvatarAttachmentID string // stored attachment id, empty when the avatar fetch failed
	Locale             string
	UpdatedAt          time.Time
}

// SubscriberStore persists subscriber profiles.
type SubscriberStore interface {
	Upsert(ctx context.Context, p SubscriberProfile) error
	Get(ctx context.Context, foreignID string) (*SubscriberProfile, error)
}

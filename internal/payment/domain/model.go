// Package domain defines payment provider webhook ingestion: signature
// verification, event normalization, and the stored event record.
package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidProvider  = errors.New("invalid_provider")
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrInvalidOwner     = errors.New("invalid_billing_owner")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrDuplicateEvent   = errors.New("duplicate_event")
)

// EventRecord archives one accepted webhook event. Payload holds the raw
// provider body, snappy-compressed; ProviderEventID carries the provider's
// idempotency key.
type EventRecord struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	Provider        string       `json:"provider" gorm:"type:text;not null;index"`
	ProviderEventID string       `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex"`
	EventType       string       `json:"event_type" gorm:"type:text;not null"`
	BillingOwnerID  snowflake.ID `json:"billing_owner_id" gorm:"not null;index"`
	Payload         []byte       `json:"-" gorm:"type:bytea"`
	ReceivedAt      time.Time    `json:"received_at" gorm:"not null"`
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "payment_events" }

type Service interface {
	// IngestWebhook verifies, deduplicates, archives, and applies one
	// provider webhook delivery. Replays and ignored event types return nil
	// so the provider stops retrying.
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error

	// RecentEvents lists the newest archived events for a billing owner,
	// most recent first.
	RecentEvents(ctx context.Context, ownerID snowflake.ID, limit int) ([]*EventRecord, error)
}

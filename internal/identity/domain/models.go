// Package domain defines API token credentials and the verified identity
// attached to authenticated requests.
package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTokenExpired       = errors.New("token_expired")
	ErrInvalidCredentials = errors.New("invalid_credentials")
)

// TokenPrefix marks bearer tokens issued by this platform.
const TokenPrefix = "rc_"

// APIToken stores the hash of an issued bearer token. The plaintext is shown
// once at issuance and never persisted.
type APIToken struct {
	ID         snowflake.ID   `json:"id" gorm:"primaryKey"`
	AccountID  snowflake.ID   `json:"account_id" gorm:"not null;index"`
	Name       string         `json:"name" gorm:"type:text;not null"`
	TokenHash  string         `json:"-" gorm:"type:text;not null;uniqueIndex"`
	Scopes     pq.StringArray `json:"scopes" gorm:"type:text[]"`
	IsActive   bool           `json:"is_active" gorm:"not null;default:true"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	LastUsedAt *time.Time     `json:"last_used_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (APIToken) TableName() string { return "api_tokens" }

// HashToken derives the stored lookup key from a plaintext token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Identity is the authenticated principal of a request.
type Identity struct {
	AccountID snowflake.ID
	Email     string
	Role      catalogdomain.Role
	Scopes    []string
}

type IssueRequest struct {
	AccountID snowflake.ID
	Name      string
	Scopes    []string
	TTL       time.Duration
}

type Service interface {
	// IssueToken mints a bearer token for an account. The returned plaintext
	// is the only copy.
	IssueToken(ctx context.Context, req IssueRequest) (string, *APIToken, error)
	// Verify resolves a bearer token to the account behind it.
	Verify(ctx context.Context, bearer string) (*Identity, error)
	RevokeToken(ctx context.Context, accountID, tokenID snowflake.ID) error

	SetPassword(ctx context.Context, accountID snowflake.ID, plaintext string) error
	// VerifyPassword authenticates an email/password pair.
	VerifyPassword(ctx context.Context, email, plaintext string) (*Identity, error)
}

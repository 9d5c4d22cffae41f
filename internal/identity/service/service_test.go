package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/rollcallhq/rollcall/internal/account/domain"
	accountrepository "github.com/rollcallhq/rollcall/internal/account/repository"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	"github.com/rollcallhq/rollcall/internal/clock"
	"github.com/rollcallhq/rollcall/internal/identity/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc  domain.Service
	db   *gorm.DB
	node *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&accountdomain.Account{},
		&domain.APIToken{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       clock.SystemClock{},
		Node:        node,
		AccountRepo: accountrepository.NewAccountRepository(),
	})
	return &fixture{svc: svc, db: db, node: node}
}

func (f *fixture) seedAccount(t *testing.T, email string, role catalogdomain.Role) *accountdomain.Account {
	t.Helper()
	account := &accountdomain.Account{
		ID:    f.node.Generate(),
		Role:  role,
		Email: email,
	}
	account.BillingOwnerID = account.ID
	require.NoError(t, f.db.Create(account).Error)
	return account
}

func TestIssueAndVerifyToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.seedAccount(t, "admin@district.example", catalogdomain.RoleDistrictAdmin)

	plaintext, token, err := f.svc.IssueToken(ctx, domain.IssueRequest{
		AccountID: account.ID,
		Name:      "ci token",
		Scopes:    []string{"accounts:read", "usage:read"},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(plaintext, domain.TokenPrefix))
	require.NotNil(t, token)
	assert.NotEqual(t, plaintext, token.TokenHash)
	assert.Nil(t, token.ExpiresAt)

	identity, err := f.svc.Verify(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, account.ID, identity.AccountID)
	assert.Equal(t, account.Email, identity.Email)
	assert.Equal(t, catalogdomain.RoleDistrictAdmin, identity.Role)
	assert.Equal(t, []string{"accounts:read", "usage:read"}, identity.Scopes)

	var stored domain.APIToken
	require.NoError(t, f.db.First(&stored, "id = ?", token.ID).Error)
	assert.NotNil(t, stored.LastUsedAt)
}

func TestVerifyRejectsMalformedTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Verify(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.Verify(ctx, "Bearer something")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.Verify(ctx, domain.TokenPrefix+"deadbeef")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerifyRejectsRevokedToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.seedAccount(t, "parent@example.com", catalogdomain.RoleParent)

	plaintext, token, err := f.svc.IssueToken(ctx, domain.IssueRequest{AccountID: account.ID, Name: "app"})
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeToken(ctx, account.ID, token.ID))

	_, err = f.svc.Verify(ctx, plaintext)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// Revoking again, or revoking someone else's token, reports unauthorized.
	assert.ErrorIs(t, f.svc.RevokeToken(ctx, account.ID, token.ID), domain.ErrUnauthorized)
	assert.ErrorIs(t, f.svc.RevokeToken(ctx, f.node.Generate(), token.ID), domain.ErrUnauthorized)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.seedAccount(t, "hr@acme.example", catalogdomain.RoleHR)

	plaintext, _, err := f.svc.IssueToken(ctx, domain.IssueRequest{
		AccountID: account.ID,
		Name:      "short lived",
		TTL:       time.Hour,
	})
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, plaintext)
	require.NoError(t, err)

	later := clock.WithFrozenTime(ctx, time.Now().UTC().Add(2*time.Hour))
	_, err = f.svc.Verify(later, plaintext)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestIssueTokenUnknownAccount(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.IssueToken(context.Background(), domain.IssueRequest{AccountID: f.node.Generate(), Name: "x"})
	assert.ErrorIs(t, err, accountdomain.ErrNotFound)
}

func TestPasswordRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.seedAccount(t, "owner@example.com", catalogdomain.RoleParent)

	assert.ErrorIs(t, f.svc.SetPassword(ctx, account.ID, "short"), domain.ErrInvalidCredentials)
	require.NoError(t, f.svc.SetPassword(ctx, account.ID, "correct horse battery"))

	identity, err := f.svc.VerifyPassword(ctx, "owner@example.com", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, account.ID, identity.AccountID)

	_, err = f.svc.VerifyPassword(ctx, "owner@example.com", "wrong password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.VerifyPassword(ctx, "nobody@example.com", "correct horse battery")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

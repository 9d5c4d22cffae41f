package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/rollcallhq/rollcall/internal/account/domain"
	"github.com/rollcallhq/rollcall/internal/clock"
	"github.com/rollcallhq/rollcall/internal/identity/domain"
	"github.com/rollcallhq/rollcall/internal/identity/password"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tokenRandomBytes = 32

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Node        *snowflake.Node
	AccountRepo accountdomain.Repository
}

type service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	node        *snowflake.Node
	accountRepo accountdomain.Repository
}

func NewService(p ServiceParam) domain.Service {
	return &service{
		db:          p.DB,
		log:         p.Log.Named("identity.service"),
		clock:       p.Clock,
		node:        p.Node,
		accountRepo: p.AccountRepo,
	}
}

func (s *service) IssueToken(ctx context.Context, req domain.IssueRequest) (string, *domain.APIToken, error) {
	account, err := s.accountRepo.FindByID(ctx, s.db, req.AccountID)
	if err != nil {
		return "", nil, err
	}
	if account == nil {
		return "", nil, accountdomain.ErrNotFound
	}

	raw := make([]byte, tokenRandomBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, err
	}
	plaintext := domain.TokenPrefix + hex.EncodeToString(raw)

	token := &domain.APIToken{
		ID:        s.node.Generate(),
		AccountID: account.ID,
		Name:      strings.TrimSpace(req.Name),
		TokenHash: domain.HashToken(plaintext),
		Scopes:    req.Scopes,
		IsActive:  true,
	}
	if req.TTL > 0 {
		expires := s.clock.Now(ctx).Add(req.TTL)
		token.ExpiresAt = &expires
	}

	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return "", nil, err
	}

	s.log.Info("api token issued",
		zap.String("account_id", account.ID.String()),
		zap.String("token_id", token.ID.String()))
	return plaintext, token, nil
}

func (s *service) Verify(ctx context.Context, bearer string) (*domain.Identity, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" || !strings.HasPrefix(bearer, domain.TokenPrefix) {
		return nil, domain.ErrUnauthorized
	}

	hash := domain.HashToken(bearer)
	var token domain.APIToken
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND is_active = ?", hash, true).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(token.TokenHash), []byte(hash)) != 1 {
		return nil, domain.ErrUnauthorized
	}

	now := s.clock.Now(ctx)
	if token.ExpiresAt != nil && !token.ExpiresAt.After(now) {
		return nil, domain.ErrTokenExpired
	}

	account, err := s.accountRepo.FindByID(ctx, s.db, token.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrUnauthorized
	}

	// Best effort; a stale LastUsedAt never blocks authentication.
	_ = s.db.WithContext(ctx).
		Model(&domain.APIToken{}).
		Where("id = ?", token.ID).
		Update("last_used_at", now).Error

	return &domain.Identity{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
		Scopes:    token.Scopes,
	}, nil
}

func (s *service) RevokeToken(ctx context.Context, accountID, tokenID snowflake.ID) error {
	result := s.db.WithContext(ctx).
		Model(&domain.APIToken{}).
		Where("id = ? AND account_id = ?", tokenID, accountID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrUnauthorized
	}
	s.log.Info("api token revoked",
		zap.String("account_id", accountID.String()),
		zap.String("token_id", tokenID.String()))
	return nil
}

func (s *service) SetPassword(ctx context.Context, accountID snowflake.ID, plaintext string) error {
	if len(plaintext) < 8 {
		return domain.ErrInvalidCredentials
	}
	account, err := s.accountRepo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return accountdomain.ErrNotFound
	}

	hash, err := password.Hash(plaintext)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&accountdomain.Account{}).
		Where("id = ?", accountID).
		Update("password_hash", hash).Error
}

func (s *service) VerifyPassword(ctx context.Context, email, plaintext string) (*domain.Identity, error) {
	account, err := s.accountRepo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if account == nil || account.PasswordHash == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if !password.Verify(plaintext, account.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return &domain.Identity{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
	}, nil
}

package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/rollcallhq/rollcall/internal/account/domain"
	"github.com/rollcallhq/rollcall/pkg/db/option"
	pkgrepository "github.com/rollcallhq/rollcall/pkg/repository"
	"gorm.io/gorm"
)

type accountRepository struct{}

func NewAccountRepository() domain.Repository {
	return &accountRepository{}
}

func (r *accountRepository) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	if err := db.WithContext(ctx).Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *accountRepository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.Account, error) {
	var accounts []*domain.Account
	for _, chunk := range pkgrepository.ChunkIDs(ids) {
		var batch []*domain.Account
		if err := option.WithIn("id", chunk).Apply(db.WithContext(ctx)).Find(&batch).Error; err != nil {
			return nil, err
		}
		accounts = append(accounts, batch...)
	}
	return accounts, nil
}

func (r *accountRepository) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) ListByBillingOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]*domain.Account, error) {
	var accounts []*domain.Account
	err := db.WithContext(ctx).
		Where("billing_owner_id = ?", ownerID).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepository) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Account{}).Error
}

func (r *accountRepository) InsertChildLink(ctx context.Context, db *gorm.DB, link *domain.ChildLink) error {
	return db.WithContext(ctx).Create(link).Error
}

func (r *accountRepository) ListChildLinksByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]*domain.ChildLink, error) {
	var links []*domain.ChildLink
	err := db.WithContext(ctx).
		Where("billing_owner_id = ?", ownerID).
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *accountRepository) ListChildLinksByParent(ctx context.Context, db *gorm.DB, parentID snowflake.ID) ([]*domain.ChildLink, error) {
	var links []*domain.ChildLink
	err := db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *accountRepository) DeleteChildLinksFor(ctx context.Context, db *gorm.DB, accountID snowflake.ID) error {
	return db.WithContext(ctx).
		Where("parent_id = ? OR child_id = ?", accountID, accountID).
		Delete(&domain.ChildLink{}).Error
}

func (r *accountRepository) CountByOrganization(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("organization_id = ?", orgID).
		Count(&count).Error
	return count, err
}

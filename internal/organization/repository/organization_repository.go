package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/rollcallhq/rollcall/internal/organization/domain"
	"github.com/rollcallhq/rollcall/pkg/db/option"
	pkgrepository "github.com/rollcallhq/rollcall/pkg/repository"
	"gorm.io/gorm"
)

type organizationRepository struct{}

func NewOrganizationRepository() domain.Repository {
	return &organizationRepository{}
}

func (r *organizationRepository) Insert(ctx context.Context, db *gorm.DB, org *domain.Organization) error {
	return db.WithContext(ctx).Create(org).Error
}

func (r *organizationRepository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepository) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.Organization, error) {
	var orgs []*domain.Organization
	for _, chunk := range pkgrepository.ChunkIDs(ids) {
		var batch []*domain.Organization
		if err := option.WithIn("id", chunk).Apply(db.WithContext(ctx)).Find(&batch).Error; err != nil {
			return nil, err
		}
		orgs = append(orgs, batch...)
	}
	return orgs, nil
}

func (r *organizationRepository) ListByBillingOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]*domain.Organization, error) {
	var orgs []*domain.Organization
	err := db.WithContext(ctx).
		Where("billing_owner_id = ?", ownerID).
		Find(&orgs).Error
	if err != nil {
		return nil, err
	}
	return orgs, nil
}

func (r *organizationRepository) CountChildren(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Organization{}).
		Where("parent_organization_id = ?", id).
		Count(&count).Error
	return count, err
}

func (r *organizationRepository) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Organization{}).Error
}

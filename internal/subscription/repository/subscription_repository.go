package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/rollcallhq/rollcall/internal/subscription/domain"
	"github.com/rollcallhq/rollcall/pkg/db/option"
	"gorm.io/gorm"
)

type subscriptionRepository struct{}

func NewSubscriptionRepository() domain.Repository {
	return &subscriptionRepository{}
}

func (r *subscriptionRepository) Insert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	if err := db.WithContext(ctx).Create(sub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *subscriptionRepository) FindByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (*domain.Subscription, error) {
	return r.findByOwner(ctx, db, ownerID)
}

func (r *subscriptionRepository) FindByOwnerForUpdate(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (*domain.Subscription, error) {
	return r.findByOwner(ctx, option.WithLockForUpdate().Apply(db), ownerID)
}

func (r *subscriptionRepository) findByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).
		Where("billing_owner_id = ?", ownerID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) Save(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Save(sub).Error
}

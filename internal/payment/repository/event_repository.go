package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/rollcallhq/rollcall/internal/payment/domain"
	"github.com/rollcallhq/rollcall/pkg/db/option"
	pkgrepository "github.com/rollcallhq/rollcall/pkg/repository"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *domain.EventRecord) error
	ListRecentByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, limit int) ([]*domain.EventRecord, error)
	DeleteByID(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}

// eventRepository persists webhook deliveries through the generic record
// store.
type eventRepository struct{}

func NewEventRepository() Repository {
	return &eventRepository{}
}

func (r *eventRepository) store(db *gorm.DB) pkgrepository.Repository[domain.EventRecord] {
	return pkgrepository.ProvideStore[domain.EventRecord](db)
}

func (r *eventRepository) Insert(ctx context.Context, db *gorm.DB, record *domain.EventRecord) error {
	if err := r.store(db).Create(ctx, record); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateEvent
		}
		return err
	}
	return nil
}

func (r *eventRepository) ListRecentByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, limit int) ([]*domain.EventRecord, error) {
	return r.store(db).Find(ctx, &domain.EventRecord{BillingOwnerID: ownerID},
		option.WithOrder("received_at DESC"),
		option.WithLimit(limit))
}

func (r *eventRepository) DeleteByID(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return r.store(db).Delete(ctx, id.String())
}

// Package repository provides a generic gorm-backed record store. It is the
// directory layer the domain repositories are built on: keyed writes,
// equality filters, and bounded in-list lookups.
package repository

import (
	"context"

	"github.com/rollcallhq/rollcall/pkg/db/option"
)

// MaxInListSize bounds a single batched in-list lookup. Larger id sets are
// chunked by the caller via ChunkIDs.
const MaxInListSize = 10

// ChunkIDs splits ids into slices of at most MaxInListSize elements.
func ChunkIDs[T any](ids []T) [][]T {
	var chunks [][]T
	for len(ids) > MaxInListSize {
		chunks = append(chunks, ids[:MaxInListSize])
		ids = ids[MaxInListSize:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

type Repository[T any] interface {
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	Count(ctx context.Context, query *T) (int64, error)
	Create(ctx context.Context, resource *T) error
	Delete(ctx context.Context, resourceID string) error
}

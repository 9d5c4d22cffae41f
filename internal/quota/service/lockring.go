package service

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

const lockStripes = 256

// lockRing serializes admission per billing owner. Tenants are fully isolated
// by owner id, so cross-tenant requests only contend on stripe collisions.
type lockRing struct {
	stripes [lockStripes]sync.Mutex
}

func (r *lockRing) lock(ownerID snowflake.ID) func() {
	stripe := &r.stripes[uint64(ownerID)%lockStripes]
	stripe.Lock()
	return stripe.Unlock
}

// Package clock abstracts time so subscription periods and token expiry
// are testable against a frozen instant.
package clock

import (
	"context"
	"time"
)

type Clock interface {
	Now(ctx context.Context) time.Time
}

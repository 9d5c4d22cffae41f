package clock

import (
	"context"
	"time"
)

type frozenKey struct{}

// WithFrozenTime pins Now for the duration of the context. Test helper.
func WithFrozenTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, frozenKey{}, t)
}

type SystemClock struct{}

func (SystemClock) Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(frozenKey{}).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}

package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Dedup remembers which event ids a consumer has already handled.
type Dedup struct {
	R       redis.Cmdable
	Service string
}

// First reports whether eventID is seen for the first time, marking it.
func (d *Dedup) First(ctx context.Context, eventID string) (bool, error) {
	return MarkOnce(ctx, d.R, fmt.Sprintf(KeyDedup, d.Service, eventID), "1", TTLDedup)
}

// Forget drops the mark so a redelivered event is handled again.
func (d *Dedup) Forget(ctx context.Context, eventID string) error {
	return d.R.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID)).Err()
}

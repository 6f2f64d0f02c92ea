package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var ErrUnknownToken = errors.New("unknown or expired token")

// SessionVerifier resolves bearer tokens to the email they were issued for.
// The identity provider writes session:{token} with its own TTL.
type SessionVerifier struct {
	R redis.Cmdable
}

func (v *SessionVerifier) Verify(ctx context.Context, token string) (string, error) {
	email, err := v.R.Get(ctx, fmt.Sprintf(KeySession, token)).Result()
	if errors.Is(err, redis.Nil) || (err == nil && email == "") {
		return "", ErrUnknownToken
	}
	if err != nil {
		return "", fmt.Errorf("session lookup: %w", err)
	}
	return email, nil
}

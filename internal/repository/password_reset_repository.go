package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrResetTokenNotFound signals an unknown, expired or consumed reset token.
var ErrResetTokenNotFound = errors.New("password reset token not found")

// PasswordResetToken is the short-lived credential for a password reset.
type PasswordResetToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PasswordResetRepository stores reset tokens with a TTL.
type PasswordResetRepository interface {
	Save(ctx context.Context, token *PasswordResetToken) error
	Get(ctx context.Context, token string) (*PasswordResetToken, error)
	Consume(ctx context.Context, token string) error
}

type passwordResetRepository struct {
	client *redis.Client
}

// NewPasswordResetRepository returns a Redis-backed store. Expiry is enforced
// by the key TTL, so stale tokens disappear without a cleanup job.
func NewPasswordResetRepository(client *redis.Client) PasswordResetRepository {
	return &passwordResetRepository{client: client}
}

func resetKey(token string) string {
	return "helpdesk:password_reset:" + token
}

func (r *passwordResetRepository) Save(ctx context.Context, token *PasswordResetToken) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return err
	}
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return errors.New("reset token already expired")
	}
	return r.client.Set(ctx, resetKey(token.Token), payload, ttl).Err()
}

func (r *passwordResetRepository) Get(ctx context.Context, token string) (*PasswordResetToken, error) {
	payload, err := r.client.Get(ctx, resetKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResetTokenNotFound
		}
		return nil, err
	}
	var result PasswordResetToken
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *passwordResetRepository) Consume(ctx context.Context, token string) error {
	deleted, err := r.client.Del(ctx, resetKey(token)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrResetTokenNotFound
	}
	return nil
}

// Package auth verifies participant session tokens. Sessions live in Redis
// so any API instance can verify a token issued by another.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"truckflow/pkg/conn"
)

const sessionKeyPrefix = "session:"

// Identity is the authenticated participant behind a token.
type Identity struct {
	ParticipantID string    `json:"participant_id"`
	Role          conn.Role `json:"role"`
}

// ErrUnauthorized indicates a missing, unknown, or expired token.
var ErrUnauthorized = errors.New("unauthorized")

// Verifier resolves tokens to identities.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (Identity, error)
}

// RedisVerifier verifies tokens against Redis-backed sessions.
type RedisVerifier struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisVerifier creates a verifier. ttl bounds session lifetime.
func NewRedisVerifier(client *redis.Client, ttl time.Duration) *RedisVerifier {
	return &RedisVerifier{client: client, ttl: ttl}
}

// VerifyToken resolves the token's session.
func (v *RedisVerifier) VerifyToken(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthorized
	}
	data, err := v.client.Get(ctx, sessionKeyPrefix+token).Result()
	if err == redis.Nil {
		return Identity{}, ErrUnauthorized
	}
	if err != nil {
		return Identity{}, fmt.Errorf("session lookup: %w", err)
	}
	var id Identity
	if err := json.Unmarshal([]byte(data), &id); err != nil {
		return Identity{}, ErrUnauthorized
	}
	if id.ParticipantID == "" || (id.Role != conn.RoleVendor && id.Role != conn.RoleCustomer) {
		return Identity{}, ErrUnauthorized
	}
	return id, nil
}

// CreateSession stores the identity under a fresh token and returns it.
func (v *RedisVerifier) CreateSession(ctx context.Context, id Identity) (string, error) {
	data, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := v.client.Set(ctx, sessionKeyPrefix+token, data, v.ttl).Err(); err != nil {
		return "", fmt.Errorf("session create: %w", err)
	}
	return token, nil
}

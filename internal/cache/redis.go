package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/petroasset/apiserver/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects to redis and pings it once.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// BlacklistStore is the durable source of truth for revoked tokens.
type BlacklistStore interface {
	Add(ctx context.Context, token, userID string, expiresAt time.Time) error
	Contains(ctx context.Context, token string) (bool, error)
}

const (
	blacklistPrefix = "token:blacklist:"
	revokedValue    = "1"
	activeValue     = "0"

	// activeTTL bounds how long a "not revoked" answer is trusted.
	activeTTL = 30 * time.Second
)

// TokenBlacklist answers revocation checks from redis when available and
// falls back to the durable store. A nil client disables caching.
type TokenBlacklist struct {
	store  BlacklistStore
	client *redis.Client
}

func NewTokenBlacklist(store BlacklistStore, client *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{store: store, client: client}
}

func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return blacklistPrefix + hex.EncodeToString(sum[:])
}

// Revoke records token as revoked until expiresAt.
func (b *TokenBlacklist) Revoke(ctx context.Context, token, userID string, expiresAt time.Time) error {
	if err := b.store.Add(ctx, token, userID, expiresAt); err != nil {
		return err
	}
	if b.client == nil {
		return nil
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = activeTTL
	}
	if err := b.client.Set(ctx, blacklistKey(token), revokedValue, ttl).Err(); err != nil {
		zap.L().Warn("cache revoked token", zap.Error(err))
	}
	return nil
}

// IsRevoked reports whether token has been revoked.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	if b.client == nil {
		return b.store.Contains(ctx, token)
	}

	key := blacklistKey(token)
	cached, err := b.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached == revokedValue, nil
	case !errors.Is(err, redis.Nil):
		zap.L().Warn("read token blacklist cache", zap.Error(err))
	}

	revoked, err := b.store.Contains(ctx, token)
	if err != nil {
		return false, err
	}
	if revoked {
		if err := b.client.Set(ctx, key, revokedValue, activeTTL).Err(); err != nil {
			zap.L().Warn("cache token blacklist entry", zap.Error(err))
		}
		return true, nil
	}
	// A revocation written since the store read must win over this answer.
	if err := b.client.SetNX(ctx, key, activeValue, activeTTL).Err(); err != nil {
		zap.L().Warn("cache token blacklist entry", zap.Error(err))
	}
	return false, nil
}

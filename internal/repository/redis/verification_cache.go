package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"blog-service/internal/client"
	"blog-service/internal/util"
)

// The img:/sms: key namespaces are owned by the verification coordinator;
// this cache only adds the resend lock prefix.
const sendFlagPrefix = "send_flag:"

// VerificationCache stores short-lived image and SMS challenge codes.
// It implements verification.Cache.
type VerificationCache struct {
	client *client.RedisClient
}

func NewVerificationCache(client *client.RedisClient) *VerificationCache {
	return &VerificationCache{client: client}
}

func (c *VerificationCache) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	val, err := c.client.Get(ctx, key)
	if err != nil {
		if strings.HasPrefix(err.Error(), "key not found") {
			return "", false, nil
		}
		util.Error("Failed to get verification code",
			zap.String("key", key),
			zap.Error(err))
		return "", false, fmt.Errorf("failed to get verification code: %w", err)
	}
	return val, true, nil
}

func (c *VerificationCache) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl); err != nil {
		util.Error("Failed to set verification code",
			zap.String("key", key),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return fmt.Errorf("failed to set verification code: %w", err)
	}
	util.Debug("Verification code cached",
		zap.String("key", key),
		zap.Duration("ttl", ttl))
	return nil
}

func (c *VerificationCache) Del(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.client.Del(ctx, key); err != nil {
		util.Error("Failed to delete verification code",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to delete verification code: %w", err)
	}
	return nil
}

// AcquireSendFlag sets the per-mobile resend lock. Returns false when a
// lock is already held, i.e. the caller is re-sending too frequently.
func (c *VerificationCache) AcquireSendFlag(ctx context.Context, mobile string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ok, err := c.client.SetNX(ctx, sendFlagPrefix+mobile, "1", ttl)
	if err != nil {
		util.Error("Failed to set send flag",
			zap.String("mobile", mobile),
			zap.Error(err))
		return false, fmt.Errorf("failed to set send flag: %w", err)
	}
	return ok, nil
}

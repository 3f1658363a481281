package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"blog-service/internal/client"
	"blog-service/internal/model"
	"blog-service/internal/util"
)

const (
	sessionDataPrefix  = "session:"
	userSessionsPrefix = "user_sessions:"
)

// SessionCache stores login sessions in Redis with per-session TTL
type SessionCache struct {
	client *client.RedisClient
}

func NewSessionCache(client *client.RedisClient) *SessionCache {
	return &SessionCache{client: client}
}

func (c *SessionCache) SetSession(ctx context.Context, session *model.Session, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, sessionDataPrefix+session.SessionID, string(data), ttl)
	userKey := userSessionsPrefix + session.UserID
	pipe.SAdd(ctx, userKey, session.SessionID)
	pipe.Expire(ctx, userKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to set session",
			zap.String("user_id", session.UserID),
			zap.String("session_id", session.SessionID),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return fmt.Errorf("failed to set session: %w", err)
	}

	util.Debug("Session stored",
		zap.String("user_id", session.UserID),
		zap.String("session_id", session.SessionID),
		zap.Duration("ttl", ttl))
	return nil
}

func (c *SessionCache) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	data, err := c.client.Get(ctx, sessionDataPrefix+sessionID)
	if err != nil {
		if strings.HasPrefix(err.Error(), "key not found") {
			return nil, nil
		}
		util.Error("Failed to get session",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session := &model.Session{}
	if err := json.Unmarshal([]byte(data), session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return session, nil
}

func (c *SessionCache) InvalidateSession(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	session, err := c.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	pipe := c.client.Pipeline()
	pipe.Del(ctx, sessionDataPrefix+sessionID)
	if session != nil {
		pipe.SRem(ctx, userSessionsPrefix+session.UserID, sessionID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to invalidate session",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return fmt.Errorf("failed to invalidate session: %w", err)
	}

	util.Debug("Session invalidated", zap.String("session_id", sessionID))
	return nil
}

// InvalidateAllUserSessions drops every session for a user, used after a
// password reset
func (c *SessionCache) InvalidateAllUserSessions(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	userKey := userSessionsPrefix + userID
	sessionIDs, err := c.client.Client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	pipe := c.client.Pipeline()
	for _, id := range sessionIDs {
		pipe.Del(ctx, sessionDataPrefix+id)
	}
	pipe.Del(ctx, userKey)
	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to invalidate user sessions",
			zap.String("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to invalidate user sessions: %w", err)
	}
	return nil
}

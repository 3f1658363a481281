package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"blog-service/internal/client"
	"blog-service/internal/model"
)

func newTestSessionCache(t *testing.T) (*SessionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := client.NewRedisClientFromExisting(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	return NewSessionCache(rc), mr
}

func testSession(id, userID string) *model.Session {
	return &model.Session{
		SessionID: id,
		UserID:    userID,
		Username:  "13800000000",
		CreatedAt: time.Now().UTC(),
	}
}

func TestSessionRoundTrip(t *testing.T) {
	cache, _ := newTestSessionCache(t)
	ctx := context.Background()

	stored := testSession("s1", "user-1")
	if err := cache.SetSession(ctx, stored, time.Hour); err != nil {
		t.Fatalf("SetSession: %v", err)
	}

	got, err := cache.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.SessionID != stored.SessionID || got.UserID != stored.UserID || got.Username != stored.Username {
		t.Errorf("got %+v, want %+v", got, stored)
	}
}

func TestGetSessionMissing(t *testing.T) {
	cache, _ := newTestSessionCache(t)

	got, err := cache.GetSession(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil session, got %+v", got)
	}
}

func TestSessionExpires(t *testing.T) {
	cache, mr := newTestSessionCache(t)
	ctx := context.Background()

	if err := cache.SetSession(ctx, testSession("s1", "user-1"), time.Minute); err != nil {
		t.Fatalf("SetSession: %v", err)
	}
	mr.FastForward(61 * time.Second)

	got, err := cache.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Fatal("expected session to have expired")
	}
}

func TestInvalidateSession(t *testing.T) {
	cache, _ := newTestSessionCache(t)
	ctx := context.Background()

	if err := cache.SetSession(ctx, testSession("s1", "user-1"), time.Hour); err != nil {
		t.Fatalf("SetSession: %v", err)
	}
	if err := cache.InvalidateSession(ctx, "s1"); err != nil {
		t.Fatalf("InvalidateSession: %v", err)
	}

	got, err := cache.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Fatal("expected session to be gone")
	}
}

func TestInvalidateAllUserSessions(t *testing.T) {
	cache, _ := newTestSessionCache(t)
	ctx := context.Background()

	for _, id := range []string{"s1", "s2", "s3"} {
		if err := cache.SetSession(ctx, testSession(id, "user-1"), time.Hour); err != nil {
			t.Fatalf("SetSession(%s): %v", id, err)
		}
	}
	if err := cache.SetSession(ctx, testSession("other", "user-2"), time.Hour); err != nil {
		t.Fatalf("SetSession(other): %v", err)
	}

	if err := cache.InvalidateAllUserSessions(ctx, "user-1"); err != nil {
		t.Fatalf("InvalidateAllUserSessions: %v", err)
	}

	for _, id := range []string{"s1", "s2", "s3"} {
		if got, _ := cache.GetSession(ctx, id); got != nil {
			t.Errorf("session %s should have been invalidated", id)
		}
	}
	if got, _ := cache.GetSession(ctx, "other"); got == nil {
		t.Error("sessions of other users must survive")
	}
}

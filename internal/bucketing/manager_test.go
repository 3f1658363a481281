package bucketing

import (
	"fmt"
	"testing"

	"blog-service/internal/config"
)

func newTestManager() *Manager {
	cfg := &config.Config{}
	cfg.Bucketing.UserBuckets = 64
	cfg.Bucketing.EventBuckets = 16
	return NewManager(cfg)
}

func TestUserBucketStable(t *testing.T) {
	m := newTestManager()

	first := m.UserBucket("user-key")
	for i := 0; i < 100; i++ {
		if got := m.UserBucket("user-key"); got != first {
			t.Fatalf("bucket changed between calls: %d != %d", got, first)
		}
	}
}

func TestBucketsWithinRange(t *testing.T) {
	m := newTestManager()

	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("key-%d", i)
		if b := m.UserBucket(key); b < 0 || b >= 64 {
			t.Fatalf("UserBucket(%q) = %d, out of range", key, b)
		}
		if b := m.EventBucket(key); b < 0 || b >= 16 {
			t.Fatalf("EventBucket(%q) = %d, out of range", key, b)
		}
	}
}

func TestBucketsSpread(t *testing.T) {
	m := newTestManager()

	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		seen[m.UserBucket(fmt.Sprintf("key-%d", i))] = true
	}
	// 1000 keys over 64 buckets should touch most of them
	if len(seen) < 32 {
		t.Fatalf("only %d of 64 buckets used; hashing looks degenerate", len(seen))
	}
}

func TestZeroBucketsFallsBackToZero(t *testing.T) {
	cfg := &config.Config{}
	m := NewManager(cfg)

	if got := m.UserBucket("anything"); got != 0 {
		t.Fatalf("UserBucket = %d, want 0 when unconfigured", got)
	}
}

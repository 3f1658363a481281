package bucketing

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"

	"blog-service/internal/config"
)

// Manager assigns stable bucket numbers. User buckets spread the users
// table across Scylla partitions; event buckets shard analytics events.
type Manager struct {
	userBuckets  int
	eventBuckets int
	hasherPool   sync.Pool
}

func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		userBuckets:  cfg.Bucketing.UserBuckets,
		eventBuckets: cfg.Bucketing.EventBuckets,
	}

	// Pool of hash functions to avoid allocation overhead
	m.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return m
}

// UserBucket returns the consistent bucket for a user key (0 to userBuckets-1)
func (m *Manager) UserBucket(key string) int {
	return m.bucket(key, m.userBuckets)
}

// EventBucket returns the bucket for an analytics event subject
func (m *Manager) EventBucket(subject string) int {
	return m.bucket(subject, m.eventBuckets)
}

func (m *Manager) bucket(key string, buckets int) int {
	if buckets <= 0 {
		return 0
	}

	h := m.hasherPool.Get().(hash.Hash64)
	defer m.hasherPool.Put(h)

	h.Reset()
	_, _ = h.Write([]byte(key))
	return int(h.Sum64() % uint64(buckets))
}

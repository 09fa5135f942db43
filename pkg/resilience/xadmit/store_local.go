package xadmit

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// 本地桶存储
// =============================================================================

// LocalStore 进程内的令牌桶存储。
//
// 与 RedisStore 实现同一套区间补给语义，用于单实例部署和测试。
// 多实例下各进程独立计数，配额不共享。
type LocalStore struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	clock   Clock
	cache   *configCache
}

var _ Store = (*LocalStore)(nil)

type localBucket struct {
	tokens int64
	// lastRefill Unix 毫秒
	lastRefill int64
}

// LocalStoreOption LocalStore 配置选项
type LocalStoreOption func(*LocalStore)

// WithLocalClock 注入时钟
func WithLocalClock(clock Clock) LocalStoreOption {
	return func(s *LocalStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewLocalStore 创建本地桶存储
func NewLocalStore(opts ...LocalStoreOption) *LocalStore {
	s := &LocalStore{
		buckets: make(map[string]*localBucket),
		clock:   time.Now,
		cache:   newConfigCache(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// refresh 对桶执行惰性区间补给，返回补给后的状态。
// 调用方必须持有 s.mu。
func refresh(b *localBucket, args bucketArgs, nowMS int64) {
	elapsed := nowMS - b.lastRefill
	if elapsed < args.periodMS {
		return
	}
	windows := elapsed / args.periodMS
	tokens := b.tokens + windows*args.refill
	if tokens > args.capacity {
		tokens = args.capacity
	}
	b.tokens = tokens
	b.lastRefill += windows * args.periodMS
}

// bucket 返回 key 对应的桶，不存在时按满桶初始化。
// 调用方必须持有 s.mu。
func (s *LocalStore) bucket(key string, args bucketArgs, nowMS int64) *localBucket {
	b, ok := s.buckets[key]
	if !ok {
		b = &localBucket{tokens: args.capacity, lastRefill: nowMS}
		s.buckets[key] = b
		return b
	}
	refresh(b, args, nowMS)
	return b
}

// TryConsume 实现 Store 接口
func (s *LocalStore) TryConsume(_ context.Context, key string, policy Policy, n int64) (ConsumeResult, error) {
	args := s.cache.argsFor(policy)
	nowMS := s.clock().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.bucket(key, args, nowMS)
	if b.tokens >= n {
		b.tokens -= n
		return ConsumeResult{Allowed: true, Capacity: args.capacity, Remaining: b.tokens}, nil
	}

	retry := b.lastRefill + args.periodMS - nowMS
	if retry < 0 {
		retry = 0
	}
	return ConsumeResult{
		Capacity:   args.capacity,
		Remaining:  b.tokens,
		RetryAfter: time.Duration(retry) * time.Millisecond,
	}, nil
}

// Status 实现 Store 接口
func (s *LocalStore) Status(_ context.Context, key string, policy Policy) (BucketStatus, error) {
	args := s.cache.argsFor(policy)
	nowMS := s.clock().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		return BucketStatus{Capacity: args.capacity, Remaining: args.capacity}, nil
	}

	// 只读视图: 在副本上补给，不改写桶状态，保证查询幂等
	view := *b
	refresh(&view, args, nowMS)

	st := BucketStatus{Capacity: args.capacity, Remaining: view.tokens}
	if view.tokens <= 0 {
		retry := view.lastRefill + args.periodMS - nowMS
		if retry < 0 {
			retry = 0
		}
		st.RetryAfter = time.Duration(retry) * time.Millisecond
	}
	return st, nil
}

// Reset 实现 Store 接口
func (s *LocalStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// Close 实现 Store 接口
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[string]*localBucket)
	return nil
}

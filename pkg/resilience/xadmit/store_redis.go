package xadmit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// Redis 桶存储
// =============================================================================

// RedisStore 基于 Redis 的分布式令牌桶存储。
//
// 桶状态存在一个 hash 里 (tokens, last_refill)，补给与扣减由
// Lua 脚本原子执行。多实例共享同一个 Redis 时，同名桶的配额
// 全局一致。
type RedisStore struct {
	rdb   redis.UniversalClient
	clock Clock
	cache *configCache
}

var _ Store = (*RedisStore)(nil)

// RedisStoreOption RedisStore 配置选项
type RedisStoreOption func(*RedisStore)

// WithClock 注入时钟，测试中用于推进虚拟时间。
//
// 时间以参数形式传进 Lua 脚本，而不是在脚本里调 TIME:
// 一是脚本保持纯函数便于测试，二是避免脚本因非确定性命令
// 在复制场景受限。
func WithClock(clock Clock) RedisStoreOption {
	return func(s *RedisStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewRedisStore 创建 Redis 桶存储
func NewRedisStore(rdb redis.UniversalClient, opts ...RedisStoreOption) (*RedisStore, error) {
	if rdb == nil {
		return nil, ErrNilClient
	}
	initScripts()

	s := &RedisStore{
		rdb:   rdb,
		clock: time.Now,
		cache: newConfigCache(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Warmup 预加载脚本到 Redis 脚本缓存。
//
// 可选: 不调用也能工作，首次 EVALSHA 失败时 go-redis 自动回退
// EVAL 并缓存。
func (s *RedisStore) Warmup(ctx context.Context) error {
	for _, script := range []*redis.Script{tryConsumeScript, bucketStatusScript} {
		if err := script.Load(ctx, s.rdb).Err(); err != nil {
			return fmt.Errorf("xadmit: load script: %w", err)
		}
	}
	return nil
}

// TryConsume 实现 Store 接口
func (s *RedisStore) TryConsume(ctx context.Context, key string, policy Policy, n int64) (ConsumeResult, error) {
	args := s.cache.argsFor(policy)
	nowMS := s.clock().UnixMilli()

	raw, err := tryConsumeScript.Run(ctx, s.rdb, []string{key},
		args.capacity, args.refill, args.periodMS, n, nowMS, args.ttlMS).Result()
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("xadmit: try_consume script: %w", err)
	}

	vals, err := parseScriptReply(raw, 3)
	if err != nil {
		return ConsumeResult{}, err
	}
	return ConsumeResult{
		Allowed:    vals[0] == 1,
		Capacity:   args.capacity,
		Remaining:  vals[1],
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// Status 实现 Store 接口
func (s *RedisStore) Status(ctx context.Context, key string, policy Policy) (BucketStatus, error) {
	args := s.cache.argsFor(policy)
	nowMS := s.clock().UnixMilli()

	raw, err := bucketStatusScript.Run(ctx, s.rdb, []string{key},
		args.capacity, args.refill, args.periodMS, nowMS).Result()
	if err != nil {
		return BucketStatus{}, fmt.Errorf("xadmit: status script: %w", err)
	}

	vals, err := parseScriptReply(raw, 2)
	if err != nil {
		return BucketStatus{}, err
	}
	return BucketStatus{
		Capacity:   args.capacity,
		Remaining:  vals[0],
		RetryAfter: time.Duration(vals[1]) * time.Millisecond,
	}, nil
}

// Reset 实现 Store 接口
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("xadmit: reset bucket: %w", err)
	}
	return nil
}

// Close 实现 Store 接口。
// 客户端由调用方注入，生命周期也归调用方，这里不关闭连接。
func (s *RedisStore) Close() error {
	return nil
}

// parseScriptReply 解析脚本返回的整数数组
func parseScriptReply(raw any, want int) ([]int64, error) {
	arr, ok := raw.([]any)
	if !ok || len(arr) != want {
		return nil, fmt.Errorf("xadmit: unexpected script reply %T", raw)
	}
	vals := make([]int64, want)
	for i, v := range arr {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("xadmit: unexpected script reply element %T", v)
		}
		vals[i] = n
	}
	return vals, nil
}

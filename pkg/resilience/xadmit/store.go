package xadmit

import (
	"context"
	"time"
)

// =============================================================================
// 桶存储抽象
// =============================================================================

// Clock 可注入的时钟，测试中用于推进虚拟时间
type Clock func() time.Time

// ConsumeResult 一次扣减的结果
type ConsumeResult struct {
	// Allowed 是否允许通过
	Allowed bool
	// Capacity 桶容量
	Capacity int64
	// Remaining 扣减后的剩余令牌数
	Remaining int64
	// RetryAfter 距下一个补给周期的等待时长，仅拒绝时有意义
	RetryAfter time.Duration
	// FailedOpen 是否因存储故障放行
	FailedOpen bool
}

// RetryAfterSeconds 返回等待时长的整秒数，向上取整且至少 1 秒
func (r ConsumeResult) RetryAfterSeconds() int64 {
	return retryAfterSeconds(r.RetryAfter)
}

// BucketStatus 桶的只读状态
type BucketStatus struct {
	// Capacity 桶容量
	Capacity int64
	// Remaining 当前可用令牌数（含惰性补给后的结果）
	Remaining int64
	// RetryAfter 令牌耗尽时距下一个补给周期的等待时长
	RetryAfter time.Duration
}

// Exhausted 返回桶是否已耗尽
func (s BucketStatus) Exhausted() bool {
	return s.Remaining <= 0
}

// RetryAfterSeconds 返回等待时长的整秒数，向上取整且至少 1 秒
func (s BucketStatus) RetryAfterSeconds() int64 {
	return retryAfterSeconds(s.RetryAfter)
}

// Store 分布式令牌桶存储。
//
// TryConsume 必须原子执行 "补给+扣减": 并发扣减不能出现
// 超发或负令牌，任意时刻 0 <= tokens <= capacity。
// 同一 key 在多实例间共享同一个桶。
type Store interface {
	// TryConsume 尝试从桶中扣减 n 个令牌。
	// 桶不存在时按满桶初始化。拒绝不是 error，看 ConsumeResult.Allowed。
	TryConsume(ctx context.Context, key string, policy Policy, n int64) (ConsumeResult, error)

	// Status 查询桶状态，不扣减令牌，幂等
	Status(ctx context.Context, key string, policy Policy) (BucketStatus, error)

	// Reset 删除桶状态。下一次访问按满桶重新初始化
	Reset(ctx context.Context, key string) error

	// Close 释放存储资源
	Close() error
}

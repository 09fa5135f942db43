package xadmit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/gatekit/pkg/observability/xlog"
)

// =============================================================================
// fail-open 存储装饰器
// =============================================================================

// 熔断参数
const (
	// breakerConsecutiveFailures 连续失败多少次后熔断
	breakerConsecutiveFailures = 5
	// breakerOpenTimeout 熔断后多久进入半开
	breakerOpenTimeout = 10 * time.Second
	// breakerHalfOpenRequests 半开状态放行的探测请求数
	breakerHalfOpenRequests = 3
)

// DefaultStoreTimeout 单次存储往返的默认超时
const DefaultStoreTimeout = 500 * time.Millisecond

// failOpenStore 包装底层存储，提供超时、熔断与 fail-open。
//
// TryConsume 的任何存储错误都转为放行: 限流层故障不应放大为
// 业务不可用。熔断器让存储宕机时请求不再逐个等到超时,
// 直接走放行路径。
//
// Status 和 Reset 如实上抛错误: 运维操作必须看到真实的存储状态,
// 不能被兜底结果掩盖。
type failOpenStore struct {
	inner   Store
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[ConsumeResult]
	logger  xlog.Logger
	metrics *Metrics
}

var _ Store = (*failOpenStore)(nil)

func newFailOpenStore(inner Store, timeout time.Duration, logger xlog.Logger, metrics *Metrics) *failOpenStore {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	s := &failOpenStore{
		inner:   inner,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
	s.breaker = gobreaker.NewCircuitBreaker[ConsumeResult](gobreaker.Settings{
		Name:        "xadmit-store",
		MaxRequests: breakerHalfOpenRequests,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			// 调用方取消不算存储故障，不计入熔断
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "bucket store breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return s
}

// TryConsume 实现 Store 接口。存储错误时放行并打上 FailedOpen 标记。
func (s *failOpenStore) TryConsume(ctx context.Context, key string, policy Policy, n int64) (ConsumeResult, error) {
	res, err := s.breaker.Execute(func() (ConsumeResult, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.inner.TryConsume(callCtx, key, policy, n)
	})
	if err == nil {
		return res, nil
	}

	reason := classifyStoreError(err)
	s.logger.Error(ctx, "bucket store unavailable, failing open",
		xlog.Err(err),
		xlog.Operation("try_consume"),
		slog.String("key", key),
		slog.String("policy", policy.Name),
		slog.String("reason", reason),
	)
	s.metrics.RecordFailOpen(ctx, reason)

	remaining := policy.Capacity - n
	if remaining < 0 {
		remaining = 0
	}
	return ConsumeResult{
		Allowed:    true,
		Capacity:   policy.Capacity,
		Remaining:  remaining,
		FailedOpen: true,
	}, nil
}

// Status 实现 Store 接口
func (s *failOpenStore) Status(ctx context.Context, key string, policy Policy) (BucketStatus, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	st, err := s.inner.Status(callCtx, key, policy)
	if err != nil {
		return BucketStatus{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return st, nil
}

// Reset 实现 Store 接口
func (s *failOpenStore) Reset(ctx context.Context, key string) error {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.inner.Reset(callCtx, key); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Close 实现 Store 接口
func (s *failOpenStore) Close() error {
	return s.inner.Close()
}

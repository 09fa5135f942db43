package xadmit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/sony/gobreaker/v2"
)

// =============================================================================
// 预定义错误
// =============================================================================

// 预定义错误，使用 errors.Is 进行比较
var (
	// ErrQuotaExceeded 表示请求被限流拒绝
	ErrQuotaExceeded = errors.New("xadmit: quota exceeded")

	// ErrStoreUnavailable 表示桶存储不可用
	ErrStoreUnavailable = errors.New("xadmit: bucket store unavailable")

	// ErrInvalidPolicy 表示限流策略无效
	ErrInvalidPolicy = errors.New("xadmit: invalid policy")

	// ErrUnknownPolicy 表示引用了未注册的策略名
	ErrUnknownPolicy = errors.New("xadmit: unknown policy")

	// ErrBadKeyExpr 表示自定义键表达式无效
	ErrBadKeyExpr = errors.New("xadmit: invalid custom key expression")

	// ErrInvalidRoute 表示路由表项无效
	ErrInvalidRoute = errors.New("xadmit: invalid route")

	// ErrNilClient 表示 Redis 客户端为空
	ErrNilClient = errors.New("xadmit: nil redis client")

	// ErrNilStore 表示桶存储为空
	ErrNilStore = errors.New("xadmit: nil store")

	// ErrConfigNotFound 表示配置文件不存在
	ErrConfigNotFound = errors.New("xadmit: config not found")
)

// =============================================================================
// 限流拒绝错误
// =============================================================================

// QuotaError 限流拒绝错误
//
// Enforce 在配额耗尽时返回此错误，携带拒绝的详细信息。
// 实现了 error 接口和 errors.Is 支持。
type QuotaError struct {
	// Key 被限流的桶键
	Key string
	// Policy 触发限流的策略名称
	Policy string
	// Limit 桶容量
	Limit int64
	// RetryAfter 距下一个补给周期的等待时长
	RetryAfter time.Duration
	// Message 策略配置的拒绝提示
	Message string
}

// Error 实现 error 接口
func (e *QuotaError) Error() string {
	return fmt.Sprintf("xadmit: quota exceeded by policy %q, key=%s, limit=%d, retry after %ds",
		e.Policy, e.Key, e.Limit, e.RetryAfterSeconds())
}

// Is 支持 errors.Is 检查
func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// Unwrap 返回底层错误
func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}

// RetryAfterSeconds 返回等待时长的整秒数，向上取整且至少 1 秒。
func (e *QuotaError) RetryAfterSeconds() int64 {
	return retryAfterSeconds(e.RetryAfter)
}

// =============================================================================
// 错误检查函数
// =============================================================================

// IsQuotaExceeded 检查错误是否为限流拒绝
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// storeRelatedErrors 包含所有需要检查的存储相关错误
var storeRelatedErrors = []error{
	ErrStoreUnavailable,
	gobreaker.ErrOpenState,
	gobreaker.ErrTooManyRequests,
	context.DeadlineExceeded,
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.EPIPE,
	syscall.ETIMEDOUT,
	io.EOF,
	io.ErrUnexpectedEOF,
}

// IsStoreError 检查是否是桶存储相关错误
//
// 使用类型断言和错误链检查，而不是字符串匹配。
// 存储错误触发 fail-open，不同于限流拒绝。
func IsStoreError(err error) bool {
	if err == nil {
		return false
	}

	if IsQuotaExceeded(err) {
		return false
	}

	// 检查已知的错误类型
	for _, target := range storeRelatedErrors {
		if errors.Is(err, target) {
			return true
		}
	}

	// 检查网络相关错误
	return isNetworkError(err)
}

// isNetworkError 检查是否是网络相关错误
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// classifyStoreError 将存储错误归类为指标维度
func classifyStoreError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case isNetworkError(err):
		return "network"
	default:
		return "other"
	}
}

// retryAfterSeconds 把等待时长换算为整秒，向上取整且至少 1 秒。
//
// 响应头 Retry-After 只接受整秒，亚秒等待对调用方没有意义,
// 统一向上取整避免客户端过早重试。
func retryAfterSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

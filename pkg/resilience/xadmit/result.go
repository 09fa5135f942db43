package xadmit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// =============================================================================
// 准入决定与响应写回
// =============================================================================

// 限流响应头
const (
	// HeaderLimit 桶容量
	HeaderLimit = "X-RateLimit-Limit"
	// HeaderRemaining 剩余令牌数
	HeaderRemaining = "X-RateLimit-Remaining"
	// HeaderRetryAfter 标准重试等待头（整秒）
	HeaderRetryAfter = "Retry-After"
	// HeaderRateLimitRetryAfter 与 Retry-After 等值的限流命名空间副本
	HeaderRateLimitRetryAfter = "X-RateLimit-Retry-After"
)

// Decision 一次准入检查的决定
type Decision struct {
	// Allowed 是否放行
	Allowed bool
	// Policy 生效的策略（已填充默认值）
	Policy Policy
	// Key 派生出的完整桶键
	Key string
	// Limit 桶容量
	Limit int64
	// Remaining 剩余令牌数
	Remaining int64
	// RetryAfter 拒绝时距下一个补给周期的等待时长
	RetryAfter time.Duration
	// FailedOpen 是否因存储故障放行
	FailedOpen bool
}

// RetryAfterSeconds 返回等待时长的整秒数，向上取整且至少 1 秒
func (d *Decision) RetryAfterSeconds() int64 {
	return retryAfterSeconds(d.RetryAfter)
}

// rejectBody 拒绝响应的 JSON 负载
type rejectBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int64  `json:"retryAfter"`
}

// writeAllowed 在放行响应上写限流头
func (d *Decision) writeAllowed(w http.ResponseWriter) {
	h := w.Header()
	h.Set(HeaderLimit, strconv.FormatInt(d.Limit, 10))
	h.Set(HeaderRemaining, strconv.FormatInt(d.Remaining, 10))
}

// writeRejected 写拒绝响应: 状态码、限流头和 JSON 负载
func (d *Decision) writeRejected(w http.ResponseWriter) {
	retry := d.RetryAfterSeconds()

	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set(HeaderRetryAfter, strconv.FormatInt(retry, 10))
	h.Set(HeaderRateLimitRetryAfter, strconv.FormatInt(retry, 10))
	h.Set(HeaderRemaining, "0")

	w.WriteHeader(d.Policy.ExceededStatus)

	// 编码写入失败时响应已经开始，只能放弃
	_ = json.NewEncoder(w).Encode(rejectBody{
		Error:      "Rate limit exceeded",
		Message:    d.Policy.ExceededMessage,
		RetryAfter: retry,
	})
}

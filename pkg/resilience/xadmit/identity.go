package xadmit

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// =============================================================================
// 请求身份的 context 传递
// =============================================================================

// 认证层在 context 中注入请求身份，键派生优先读取 context,
// 其次回退到请求头。

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyAPIKey
	ctxKeySessionID
	ctxKeyRequestID
)

// WithUserID 在 context 中注入已认证的用户标识
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, userID)
}

// UserIDFromContext 读取 context 中的用户标识
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyUserID).(string)
	return v, ok && v != ""
}

// WithAPIKey 在 context 中注入 API 凭证
func WithAPIKey(ctx context.Context, apiKey string) context.Context {
	return context.WithValue(ctx, ctxKeyAPIKey, apiKey)
}

// APIKeyFromContext 读取 context 中的 API 凭证
func APIKeyFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyAPIKey).(string)
	return v, ok && v != ""
}

// WithSessionID 在 context 中注入会话标识
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, sessionID)
}

// SessionIDFromContext 读取 context 中的会话标识
func SessionIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeySessionID).(string)
	return v, ok && v != ""
}

// WithRequestID 在 context 中注入请求关联 ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestIDFromContext 读取 context 中的请求关联 ID
func RequestIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyRequestID).(string)
	return v, ok && v != ""
}

// =============================================================================
// 请求关联中间件
// =============================================================================

// HeaderRequestID 请求关联 ID 的头名称
const HeaderRequestID = "X-Request-ID"

// CorrelationMiddleware 为每个请求建立关联 ID。
//
// 优先沿用上游传入的 X-Request-ID，否则生成新的 UUID。
// ID 写入 context 和响应头，供日志与下游服务关联同一次请求。
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)
		ctx := WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

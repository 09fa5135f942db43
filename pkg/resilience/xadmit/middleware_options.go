package xadmit

import (
	"net/http"
)

// MiddlewareOptions HTTP 中间件配置选项
type MiddlewareOptions struct {
	// Policy 调用点策略名。设置后此中间件包裹的所有请求
	// 强制使用该策略，优先级高于任何路由绑定
	Policy string

	// DenyHandler 自定义拒绝处理器
	// 当请求被限流时调用
	DenyHandler func(w http.ResponseWriter, r *http.Request, d *Decision)

	// SkipFunc 跳过函数
	// 返回 true 时跳过准入检查
	SkipFunc func(r *http.Request) bool

	// EnableHeaders 是否在响应中添加限流头
	EnableHeaders bool
}

// MiddlewareOption 中间件选项函数
type MiddlewareOption func(*MiddlewareOptions)

// defaultMiddlewareOptions 返回默认的中间件选项
func defaultMiddlewareOptions() *MiddlewareOptions {
	return &MiddlewareOptions{
		EnableHeaders: true,
		DenyHandler:   defaultDenyHandler,
	}
}

// defaultDenyHandler 默认的拒绝处理器: 按策略写状态码、
// 限流头和 JSON 负载
func defaultDenyHandler(w http.ResponseWriter, _ *http.Request, d *Decision) {
	d.writeRejected(w)
}

// WithMiddlewarePolicy 设置调用点策略。
// 包裹单个 handler 时相当于方法级的策略标注
func WithMiddlewarePolicy(name string) MiddlewareOption {
	return func(opts *MiddlewareOptions) {
		opts.Policy = name
	}
}

// WithDenyHandler 设置自定义拒绝处理器
func WithDenyHandler(handler func(w http.ResponseWriter, r *http.Request, d *Decision)) MiddlewareOption {
	return func(opts *MiddlewareOptions) {
		opts.DenyHandler = handler
	}
}

// WithSkipFunc 设置跳过函数
func WithSkipFunc(skipFunc func(r *http.Request) bool) MiddlewareOption {
	return func(opts *MiddlewareOptions) {
		opts.SkipFunc = skipFunc
	}
}

// WithMiddlewareHeaders 设置是否启用限流头
func WithMiddlewareHeaders(enable bool) MiddlewareOption {
	return func(opts *MiddlewareOptions) {
		opts.EnableHeaders = enable
	}
}

package xadmit

import (
	"net/http"
)

// Middleware 创建 HTTP 准入中间件。
//
// 逐请求执行: 解析策略 → 派生键 → 扣减令牌。放行时写
// X-RateLimit-Limit / X-RateLimit-Remaining 头，拒绝时按策略
// 写状态码、Retry-After 头和 JSON 负载。
//
// 示例:
//
//	adm, _ := xadmit.New(store, xadmit.WithPolicies(...), xadmit.WithDefaultPolicy("standard"))
//	mux := http.NewServeMux()
//	mux.Handle("/api/", adm.Middleware()(apiHandler))
//	mux.Handle("/upload", adm.Middleware(xadmit.WithMiddlewarePolicy("strict"))(uploadHandler))
func (a *Admitter) Middleware(opts ...MiddlewareOption) func(http.Handler) http.Handler {
	mopts := defaultMiddlewareOptions()
	for _, opt := range opts {
		opt(mopts)
	}

	// 调用点策略在构造时校验，悬空引用是编程错误
	var forced *compiledPolicy
	if mopts.Policy != "" {
		cp, ok := a.policies[mopts.Policy]
		if !ok {
			panic("xadmit: Middleware references unknown policy " + mopts.Policy)
		}
		forced = cp
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if mopts.SkipFunc != nil && mopts.SkipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			d := a.checkHTTP(r, forced)

			if !d.Allowed {
				mopts.DenyHandler(w, r, d)
				return
			}
			if mopts.EnableHeaders && d.Limit > 0 {
				d.writeAllowed(w)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MiddlewareFunc 创建 HTTP 准入中间件（函数式）
// 适用于需要 http.HandlerFunc 的场景
func (a *Admitter) MiddlewareFunc(opts ...MiddlewareOption) func(http.HandlerFunc) http.HandlerFunc {
	middleware := a.Middleware(opts...)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return middleware(next).ServeHTTP
	}
}

// checkHTTP 对 HTTP 请求执行准入检查，forced 非空时跳过路由解析
func (a *Admitter) checkHTTP(r *http.Request, forced *compiledPolicy) *Decision {
	if !a.enabled {
		return &Decision{Allowed: true}
	}

	cp := forced
	if cp == nil {
		resolved, ok := a.resolvePolicy(r.URL.Path)
		if !ok {
			return &Decision{Allowed: true}
		}
		cp = resolved
	}
	return a.consume(r.Context(), RequestFromHTTP(r), cp)
}
